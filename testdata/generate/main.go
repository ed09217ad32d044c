package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// Generates sample bulk-import files for the payments import endpoint:
// testdata/payments.csv and testdata/payments.json.
func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	type group struct {
		currency  string
		method    string
		direction string
		prefix    string
		count     int
	}

	groups := []group{
		{"MYR", "BANK_TRANSFER", "INBOUND", "INV", 40},
		{"MYR", "CARD", "INBOUND", "INV", 25},
		{"SGD", "EWALLET", "INBOUND", "INV", 20},
		{"MYR", "BANK_TRANSFER", "OUTBOUND", "BILL", 15},
	}

	type row struct {
		TenantID   string `json:"tenant_id"`
		Reference  string `json:"reference"`
		Direction  string `json:"direction"`
		Amount     string `json:"amount"`
		Currency   string `json:"currency"`
		MethodType string `json:"method_type"`
		PayerID    string `json:"payer_id"`
		PayeeID    string `json:"payee_id"`
	}

	var rows []row
	seq := 0
	for _, g := range groups {
		for i := 0; i < g.count; i++ {
			seq++

			// Amount between 5.00 and 500.00 major units.
			amount := fmt.Sprintf("%d.%02d", 5+rng.Intn(495), rng.Intn(100))

			r := row{
				TenantID:   "tenant-1",
				Reference:  fmt.Sprintf("%s-2024-%04d", g.prefix, seq),
				Direction:  g.direction,
				Amount:     amount,
				Currency:   g.currency,
				MethodType: g.method,
			}
			if g.direction == "INBOUND" {
				r.PayerID = fmt.Sprintf("payer-%03d", rng.Intn(30)+1)
			} else {
				r.PayeeID = fmt.Sprintf("payee-%03d", rng.Intn(10)+1)
			}
			rows = append(rows, r)
		}
	}

	// A few intentionally broken rows so the import failure reporting has
	// something to chew on.
	rows = append(rows,
		row{TenantID: "tenant-1", Reference: "INV-2024-BAD1", Direction: "INBOUND",
			Amount: "50.00", Currency: "MYR", MethodType: "CARRIER_PIGEON", PayerID: "payer-001"},
		row{TenantID: "tenant-1", Reference: "INV-2024-BAD2", Direction: "INBOUND",
			Amount: "75.00", Currency: "MYR", MethodType: "CARD"}, // no payer
	)

	// Write payments.csv.
	csvPath := filepath.Join(baseDir, "payments.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{
		"tenant_id", "reference", "direction", "amount",
		"currency", "method_type", "payer_id", "payee_id",
	})
	for _, r := range rows {
		w.Write([]string{
			r.TenantID, r.Reference, r.Direction, r.Amount,
			r.Currency, r.MethodType, r.PayerID, r.PayeeID,
		})
	}
	fmt.Printf("Generated %d rows -> payments.csv\n", len(rows))

	// Write payments.json with the same content.
	writeJSONFile(filepath.Join(baseDir, "payments.json"), rows)
	fmt.Printf("Generated %d rows -> payments.json\n", len(rows))

	fmt.Println("Test data generation complete.")
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	candidates := []string{
		"testdata",
		"./testdata",
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
