package currency

import "fmt"

// ratesPerUSD maps currency codes to the number of local currency units
// per 1 USD. Static snapshot rates; the engine only captures the rate in
// effect at creation time, it never converts amounts.
var ratesPerUSD = map[string]float64{
	"USD": 1.0,
	"MYR": 4.70,   // Malaysian Ringgit
	"SGD": 1.35,   // Singapore Dollar
	"IDR": 15600,  // Indonesian Rupiah
	"THB": 35.8,   // Thai Baht
	"KES": 129.5,  // Kenyan Shilling
	"NGN": 1580.0, // Nigerian Naira
}

// Rate returns the exchange rate for a given currency (units per 1 USD).
func Rate(currency string) (float64, error) {
	rate, ok := ratesPerUSD[currency]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", currency)
	}
	return rate, nil
}

// Known reports whether a capture rate exists for the currency.
func Known(currency string) bool {
	_, ok := ratesPerUSD[currency]
	return ok
}
