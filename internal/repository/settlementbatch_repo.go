package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

type SettlementBatchRepo struct {
	db *sql.DB
}

func NewSettlementBatchRepo(db *sql.DB) *SettlementBatchRepo {
	return &SettlementBatchRepo{db: db}
}

func (r *SettlementBatchRepo) Create(b *domain.SettlementBatch) error {
	_, err := r.db.Exec(
		`INSERT INTO settlement_batches
			(id, status, payment_count, total_amount, currency, opened_at, closed_at, reconciled_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		b.ID, string(b.Status), b.PaymentCount, b.TotalAmount.MinorUnits(), b.TotalAmount.Currency(),
		b.OpenedAt.Format(time.RFC3339), formatNullableTime(b.ClosedAt), formatNullableTime(b.ReconciledAt),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

func (r *SettlementBatchRepo) FindByID(id string) (*domain.SettlementBatch, error) {
	var b domain.SettlementBatch
	var status, currency, openedAt string
	var totalAmount int64
	var closedAt, reconciledAt sql.NullString

	err := r.db.QueryRow(
		`SELECT id, status, payment_count, total_amount, currency, opened_at, closed_at, reconciled_at
		FROM settlement_batches WHERE id = ?`, id,
	).Scan(&b.ID, &status, &b.PaymentCount, &totalAmount, &currency, &openedAt, &closedAt, &reconciledAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find batch: %w", err)
	}

	b.Status = domain.BatchStatus(status)
	b.TotalAmount = money.MustNew(totalAmount, currency)
	b.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
	b.ClosedAt = parseNullableTime(closedAt)
	b.ReconciledAt = parseNullableTime(reconciledAt)
	return &b, nil
}

func (r *SettlementBatchRepo) Update(b *domain.SettlementBatch) error {
	_, err := r.db.Exec(
		`UPDATE settlement_batches SET status = ?, payment_count = ?, total_amount = ?,
			closed_at = ?, reconciled_at = ?
		WHERE id = ?`,
		string(b.Status), b.PaymentCount, b.TotalAmount.MinorUnits(),
		formatNullableTime(b.ClosedAt), formatNullableTime(b.ReconciledAt),
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	return nil
}

// AddPayment records batch membership. The PRIMARY KEY on payment_id makes
// the insert lose when the payment already belongs to any batch, which
// surfaces as ErrPaymentAlreadyBatched.
func (r *SettlementBatchRepo) AddPayment(batchID, paymentID string, addedAt time.Time) error {
	res, err := r.db.Exec(
		"INSERT OR IGNORE INTO batch_payments (payment_id, batch_id, added_at) VALUES (?,?,?)",
		paymentID, batchID, addedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert batch payment: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return domain.ErrPaymentAlreadyBatched
	}
	return nil
}

// PaymentIDs lists the members of a batch in insertion order.
func (r *SettlementBatchRepo) PaymentIDs(batchID string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT payment_id FROM batch_payments WHERE batch_id = ? ORDER BY added_at ASC",
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query batch payments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
