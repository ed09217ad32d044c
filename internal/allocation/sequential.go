package allocation

import (
	"sort"

	"github.com/serantau/payflow/internal/money"
)

type lessFunc func(a, b Document) bool

// sequentialStrategy walks documents in a fixed order, allocating
// min(remaining payment, outstanding) to each until the payment or the
// documents run out. FIFO, LIFO, OldestFirst, LargestFirst and
// SmallestFirst are all instances with different orderings.
type sequentialStrategy struct {
	less lessFunc
}

func (s sequentialStrategy) Allocate(payment money.Money, docs []Document, _ map[string]money.Money) (*Result, error) {
	open := openDocuments(docs)
	sort.SliceStable(open, func(i, j int) bool { return s.less(open[i], open[j]) })

	allocations := make(map[string]money.Money)
	remaining := payment

	for _, doc := range open {
		if !remaining.IsPositive() {
			break
		}
		take, err := remaining.Min(doc.OutstandingAmount())
		if err != nil {
			return nil, err
		}
		allocations[doc.DocumentID()] = take
		remaining, err = remaining.Sub(take)
		if err != nil {
			return nil, err
		}
	}

	return buildResult(payment, allocations)
}

// FIFO: document date ascending, id ascending on equal dates.
func byDocumentDateAsc(a, b Document) bool {
	if !a.DocumentDate().Equal(b.DocumentDate()) {
		return a.DocumentDate().Before(b.DocumentDate())
	}
	return a.DocumentID() < b.DocumentID()
}

// LIFO: document date descending, id ascending on equal dates.
func byDocumentDateDesc(a, b Document) bool {
	if !a.DocumentDate().Equal(b.DocumentDate()) {
		return a.DocumentDate().After(b.DocumentDate())
	}
	return a.DocumentID() < b.DocumentID()
}

// OldestFirst: due date ascending, document date ascending on equal due
// dates.
func byDueDateAsc(a, b Document) bool {
	if !a.DueDate().Equal(b.DueDate()) {
		return a.DueDate().Before(b.DueDate())
	}
	return a.DocumentDate().Before(b.DocumentDate())
}

// LargestFirst: outstanding amount descending, id ascending on ties.
func byOutstandingDesc(a, b Document) bool {
	av, bv := a.OutstandingAmount().MinorUnits(), b.OutstandingAmount().MinorUnits()
	if av != bv {
		return av > bv
	}
	return a.DocumentID() < b.DocumentID()
}

// SmallestFirst: outstanding amount ascending, id ascending on ties.
func byOutstandingAsc(a, b Document) bool {
	av, bv := a.OutstandingAmount().MinorUnits(), b.OutstandingAmount().MinorUnits()
	if av != bv {
		return av < bv
	}
	return a.DocumentID() < b.DocumentID()
}
