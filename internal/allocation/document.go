package allocation

import (
	"time"

	"github.com/serantau/payflow/internal/money"
)

// Document is the read-only view of an allocatable document (invoice,
// bill) exposed by the document provider. The engine never mutates
// documents; applying an allocation result is the caller's job.
type Document interface {
	DocumentID() string
	OutstandingAmount() money.Money
	OriginalAmount() money.Money
	DocumentDate() time.Time
	DueDate() time.Time
}

// openDocuments filters out fully-paid documents. Every strategy consumes
// only documents with a positive outstanding balance.
func openDocuments(docs []Document) []Document {
	open := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if doc.OutstandingAmount().IsPositive() {
			open = append(open, doc)
		}
	}
	return open
}
