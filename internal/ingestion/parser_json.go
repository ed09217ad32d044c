package ingestion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/serantau/payflow/internal/money"
)

// jsonPaymentRow mirrors one element of the JSON bulk format. Amounts are
// major-unit decimal strings, same as the CSV format.
type jsonPaymentRow struct {
	TenantID   string `json:"tenant_id"`
	Reference  string `json:"reference"`
	Direction  string `json:"direction"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	MethodType string `json:"method_type"`
	PayerID    string `json:"payer_id"`
	PayeeID    string `json:"payee_id"`
}

// ParsePaymentsJSON parses the bulk payment JSON format: a top-level array
// of payment objects.
func ParsePaymentsJSON(data []byte) ([]ImportRecord, error) {
	var rows []jsonPaymentRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	var records []ImportRecord
	for i, row := range rows {
		amount, err := money.ParseDecimal(row.Amount, row.Currency)
		if err != nil {
			return nil, fmt.Errorf("element %d amount: %w", i, err)
		}

		records = append(records, ImportRecord{
			Line:       i + 1,
			TenantID:   strings.TrimSpace(row.TenantID),
			Reference:  strings.TrimSpace(row.Reference),
			Direction:  strings.ToUpper(strings.TrimSpace(row.Direction)),
			Amount:     amount,
			MethodType: strings.ToUpper(strings.TrimSpace(row.MethodType)),
			PayerID:    strings.TrimSpace(row.PayerID),
			PayeeID:    strings.TrimSpace(row.PayeeID),
		})
	}

	return records, nil
}
