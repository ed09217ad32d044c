package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// exponents maps ISO 4217 codes to the number of minor-unit digits.
// Currencies not listed here default to 2.
var exponents = map[string]int32{
	"BHD": 3,
	"IDR": 2,
	"JPY": 0,
	"KRW": 0,
	"KWD": 3,
	"OMR": 3,
	"VND": 0,
}

// CurrencyMismatchError is returned when arithmetic is attempted between
// amounts in different currencies.
type CurrencyMismatchError struct {
	Left  string
	Right string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: %s vs %s", e.Left, e.Right)
}

// Money is an immutable amount in a single currency, held as minor units
// (cents, sen) to keep arithmetic exact. The zero value is 0 units of no
// currency and is only useful as a placeholder.
type Money struct {
	amount   int64
	currency string
}

// New creates a Money from minor units and a 3-letter currency code.
func New(minorUnits int64, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return Money{}, fmt.Errorf("invalid currency code: %q", currency)
	}
	return Money{amount: minorUnits, currency: code}, nil
}

// MustNew is New but panics on an invalid currency code. For literals in
// tests and seed data.
func MustNew(minorUnits int64, currency string) Money {
	m, err := New(minorUnits, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseDecimal converts a major-unit decimal string ("12.50") into Money.
// The string must not carry more precision than the currency's exponent.
func ParseDecimal(s, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return Money{}, fmt.Errorf("invalid currency code: %q", currency)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	exp := int32(2)
	if e, ok := exponents[code]; ok {
		exp = e
	}
	shifted := d.Shift(exp)
	if !shifted.Equal(shifted.Truncate(0)) {
		return Money{}, fmt.Errorf("amount %q has more precision than %s allows", s, code)
	}
	return Money{amount: shifted.IntPart(), currency: code}, nil
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{amount: 0, currency: strings.ToUpper(currency)}
}

// MinorUnits returns the amount in minor units.
func (m Money) MinorUnits() int64 { return m.amount }

// Currency returns the 3-letter currency code.
func (m Money) Currency() string { return m.currency }

// Exponent returns the number of minor-unit digits for the currency.
func (m Money) Exponent() int32 {
	if e, ok := exponents[m.currency]; ok {
		return e
	}
	return 2
}

func (m Money) IsZero() bool     { return m.amount == 0 }
func (m Money) IsPositive() bool { return m.amount > 0 }
func (m Money) IsNegative() bool { return m.amount < 0 }

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return &CurrencyMismatchError{Left: m.currency, Right: o.currency}
	}
	return nil
}

// Add returns m + o.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount + o.amount, currency: m.currency}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount - o.amount, currency: m.currency}, nil
}

// Cmp compares two amounts: -1 if m < o, 0 if equal, 1 if m > o.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	switch {
	case m.amount < o.amount:
		return -1, nil
	case m.amount > o.amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equal reports whether both amount and currency match.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount == o.amount
}

// Min returns the smaller of m and o.
func (m Money) Min(o Money) (Money, error) {
	c, err := m.Cmp(o)
	if err != nil {
		return Money{}, err
	}
	if c <= 0 {
		return m, nil
	}
	return o, nil
}

// MulDecimal multiplies by an arbitrary decimal factor, rounding half-up to
// the nearest minor unit.
func (m Money) MulDecimal(factor decimal.Decimal) Money {
	product := decimal.New(m.amount, 0).Mul(factor)
	return Money{amount: product.Round(0).IntPart(), currency: m.currency}
}

// MulRatio multiplies by num/den, rounding half-up to the nearest minor
// unit. den must be non-zero.
func (m Money) MulRatio(num, den int64) Money {
	product := decimal.New(m.amount, 0).
		Mul(decimal.New(num, 0)).
		DivRound(decimal.New(den, 0), 0)
	return Money{amount: product.IntPart(), currency: m.currency}
}

// Decimal returns the amount in major units as a decimal (e.g. 12.50 for
// 1250 minor units of a 2-exponent currency).
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.amount, -m.Exponent())
}

// String formats as "12.50 MYR".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(m.Exponent()), m.currency)
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := New(raw.Amount, raw.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
