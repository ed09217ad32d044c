package allocation

import (
	"fmt"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

// Method identifies an allocation strategy.
type Method string

const (
	MethodFIFO          Method = "FIFO"
	MethodLIFO          Method = "LIFO"
	MethodOldestFirst   Method = "OLDEST_FIRST"
	MethodLargestFirst  Method = "LARGEST_FIRST"
	MethodSmallestFirst Method = "SMALLEST_FIRST"
	MethodProportional  Method = "PROPORTIONAL"
	MethodManual        Method = "MANUAL"
)

// Result is the pure output of an allocation run. The engine never
// persists it; conservation holds: AllocatedAmount + UnallocatedAmount ==
// TotalAmount and the allocations map sums to AllocatedAmount.
type Result struct {
	TotalAmount       money.Money            `json:"total_amount"`
	AllocatedAmount   money.Money            `json:"allocated_amount"`
	UnallocatedAmount money.Money            `json:"unallocated_amount"`
	Allocations       map[string]money.Money `json:"allocations"`
	IsFullyAllocated  bool                   `json:"is_fully_allocated"`
}

// Strategy matches a payment amount against outstanding documents.
// Strategies are stateless; manual carries the caller-supplied map and is
// nil for every method except MANUAL.
type Strategy interface {
	Allocate(payment money.Money, docs []Document, manual map[string]money.Money) (*Result, error)
}

// Engine validates allocation requests and dispatches to the registered
// strategy for the requested method.
type Engine struct {
	strategies map[Method]Strategy
}

// NewEngine creates an engine with the seven built-in strategies
// registered.
func NewEngine() *Engine {
	e := &Engine{strategies: make(map[Method]Strategy)}
	e.RegisterStrategy(MethodFIFO, sequentialStrategy{less: byDocumentDateAsc})
	e.RegisterStrategy(MethodLIFO, sequentialStrategy{less: byDocumentDateDesc})
	e.RegisterStrategy(MethodOldestFirst, sequentialStrategy{less: byDueDateAsc})
	e.RegisterStrategy(MethodLargestFirst, sequentialStrategy{less: byOutstandingDesc})
	e.RegisterStrategy(MethodSmallestFirst, sequentialStrategy{less: byOutstandingAsc})
	e.RegisterStrategy(MethodProportional, proportionalStrategy{})
	e.RegisterStrategy(MethodManual, manualStrategy{})
	return e
}

// RegisterStrategy adds or replaces the strategy for a method. Registering
// over a built-in method overrides it.
func (e *Engine) RegisterStrategy(method Method, s Strategy) {
	e.strategies[method] = s
}

// Validate applies the pre-strategy rules and returns every violation
// found. An empty slice means the request is allocatable.
func (e *Engine) Validate(payment money.Money, docs []Document, method Method, manual map[string]money.Money) []string {
	var errs []string

	if !payment.IsPositive() {
		errs = append(errs, "Payment amount must be positive")
	}
	if len(docs) == 0 {
		errs = append(errs, "No documents provided for allocation")
		return errs
	}

	currency := docs[0].OutstandingAmount().Currency()
	for _, doc := range docs[1:] {
		if doc.OutstandingAmount().Currency() != currency {
			errs = append(errs, "All documents must have the same currency")
			break
		}
	}
	if payment.Currency() != currency {
		errs = append(errs, fmt.Sprintf("Payment currency %s does not match document currency %s",
			payment.Currency(), currency))
	}

	anyOpen := false
	for _, doc := range docs {
		if doc.OutstandingAmount().IsPositive() {
			anyOpen = true
			break
		}
	}
	if !anyOpen {
		errs = append(errs, "All documents are already fully paid")
	}

	if method == MethodManual && manual == nil {
		errs = append(errs, "Manual allocation method requires explicit allocation specifications")
	}

	if _, ok := e.strategies[method]; !ok {
		errs = append(errs, fmt.Sprintf("Unsupported allocation method: %s", method))
	}

	return errs
}

// Allocate validates the request and runs the strategy for the requested
// method. Any validation failure surfaces as an AllocationError before a
// single unit is allocated.
func (e *Engine) Allocate(payment money.Money, docs []Document, method Method, manual map[string]money.Money) (*Result, error) {
	if errs := e.Validate(payment, docs, method, manual); len(errs) > 0 {
		return nil, &domain.AllocationError{Message: errs[0]}
	}
	return e.strategies[method].Allocate(payment, docs, manual)
}

// Preview is identical to Allocate: the engine has no persistence side
// effects of its own. The separate name keeps the caller's intent visible.
func (e *Engine) Preview(payment money.Money, docs []Document, method Method, manual map[string]money.Money) (*Result, error) {
	return e.Allocate(payment, docs, method, manual)
}

// buildResult derives the totals from an allocation map. addErr paths are
// unreachable after validation pinned all currencies together.
func buildResult(payment money.Money, allocations map[string]money.Money) (*Result, error) {
	allocated := money.Zero(payment.Currency())
	for _, amt := range allocations {
		sum, err := allocated.Add(amt)
		if err != nil {
			return nil, err
		}
		allocated = sum
	}

	unallocated, err := payment.Sub(allocated)
	if err != nil {
		return nil, err
	}

	return &Result{
		TotalAmount:       payment,
		AllocatedAmount:   allocated,
		UnallocatedAmount: unallocated,
		Allocations:       allocations,
		IsFullyAllocated:  unallocated.IsZero(),
	}, nil
}
