package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/serantau/payflow/internal/money"
)

// proportionalStrategy gives each document payment x (outstanding /
// totalOutstanding), rounded half-up to the currency minor unit. The
// rounding remainder from summing the rounded shares lands on the document
// with the largest outstanding balance, spilling to the next largest when
// that document is already at its outstanding cap, so that the allocated
// total equals min(payment, totalOutstanding) exactly.
type proportionalStrategy struct{}

func (proportionalStrategy) Allocate(payment money.Money, docs []Document, _ map[string]money.Money) (*Result, error) {
	open := openDocuments(docs)
	currency := payment.Currency()

	var totalOutstanding int64
	for _, doc := range open {
		totalOutstanding += doc.OutstandingAmount().MinorUnits()
	}

	allocations := make(map[string]money.Money)

	// Payment covers every document: allocate each in full and report the
	// excess as unallocated.
	if payment.MinorUnits() >= totalOutstanding {
		for _, doc := range open {
			allocations[doc.DocumentID()] = doc.OutstandingAmount()
		}
		return buildResult(payment, allocations)
	}

	totalDec := decimal.New(totalOutstanding, 0)
	paymentDec := decimal.New(payment.MinorUnits(), 0)

	shares := make(map[string]int64, len(open))
	var allocated int64
	for _, doc := range open {
		share := paymentDec.
			Mul(decimal.New(doc.OutstandingAmount().MinorUnits(), 0)).
			DivRound(totalDec, 0).
			IntPart()
		shares[doc.DocumentID()] = share
		allocated += share
	}

	// Distribute the rounding remainder, largest outstanding balance first.
	remainder := payment.MinorUnits() - allocated
	if remainder != 0 {
		ordered := make([]Document, len(open))
		copy(ordered, open)
		sort.SliceStable(ordered, func(i, j int) bool { return byOutstandingDesc(ordered[i], ordered[j]) })

		for _, doc := range ordered {
			if remainder == 0 {
				break
			}
			id := doc.DocumentID()
			if remainder > 0 {
				capacity := doc.OutstandingAmount().MinorUnits() - shares[id]
				add := remainder
				if add > capacity {
					add = capacity
				}
				shares[id] += add
				remainder -= add
			} else {
				take := -remainder
				if take > shares[id] {
					take = shares[id]
				}
				shares[id] -= take
				remainder += take
			}
		}
	}

	for id, units := range shares {
		if units > 0 {
			allocations[id] = money.MustNew(units, currency)
		}
	}

	return buildResult(payment, allocations)
}
