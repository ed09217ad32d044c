package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/serantau/payflow/internal/money"
)

// ParsePaymentsCSV parses the bulk payment CSV format.
//
// Expected header:
//
//	tenant_id,reference,direction,amount,currency,method_type,payer_id,payee_id
func ParsePaymentsCSV(data []byte) ([]ImportRecord, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 8 {
		return nil, fmt.Errorf("expected 8 columns, got %d", len(header))
	}

	var records []ImportRecord
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if len(row) < 8 {
			continue
		}

		amount, err := money.ParseDecimal(strings.TrimSpace(row[3]), strings.TrimSpace(row[4]))
		if err != nil {
			return nil, fmt.Errorf("line %d amount: %w", lineNum, err)
		}

		records = append(records, ImportRecord{
			Line:       lineNum,
			TenantID:   strings.TrimSpace(row[0]),
			Reference:  strings.TrimSpace(row[1]),
			Direction:  strings.ToUpper(strings.TrimSpace(row[2])),
			Amount:     amount,
			MethodType: strings.ToUpper(strings.TrimSpace(row[5])),
			PayerID:    strings.TrimSpace(row[6]),
			PayeeID:    strings.TrimSpace(row[7]),
		})
	}

	return records, nil
}
