package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/serantau/payflow/internal/domain"
	"github.com/serantau/payflow/internal/money"
)

type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

const paymentColumns = `id, tenant_id, direction, amount, currency, status, method_type,
	reference, payer_id, payee_id, metadata, external_ref, settled_amount,
	reversed_amount, reversal_reason, failure_code, failure_reason,
	cancelled_by, cancel_reason, attempt_count, created_at, processed_at, settled_at`

func (r *PaymentRepo) FindByID(id string) (*domain.Payment, error) {
	row := r.db.QueryRow(
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", id,
	)
	p, err := scanPayment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return p, nil
}

func (r *PaymentRepo) Create(p *domain.Payment) error {
	args, err := paymentArgs(p)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(insertPaymentSQL, args...)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

const insertPaymentSQL = `INSERT INTO payments
	(` + paymentColumns + `)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

// CreateWithIdempotencyKey inserts the key mapping and the payment in one
// transaction. Expired keys are purged first so they behave as absent; a
// live duplicate loses against the unique constraint and reports
// domain.ErrIdempotencyKeyConflict, leaving nothing behind.
func (r *PaymentRepo) CreateWithIdempotencyKey(p *domain.Payment, key string, expiresAt time.Time) error {
	sqlTx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.Exec(
		"DELETE FROM idempotency_keys WHERE tenant_id = ? AND key_value = ? AND expires_at <= ?",
		p.TenantID, key, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("purge expired key: %w", err)
	}

	res, err := sqlTx.Exec(
		"INSERT OR IGNORE INTO idempotency_keys (tenant_id, key_value, payment_id, expires_at) VALUES (?,?,?,?)",
		p.TenantID, key, p.ID, expiresAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert key: %w", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return domain.ErrIdempotencyKeyConflict
	}

	args, err := paymentArgs(p)
	if err != nil {
		return err
	}
	if _, err := sqlTx.Exec(insertPaymentSQL, args...); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// FindIDByIdempotencyKey returns the payment id a live key maps to, or ""
// when the key is absent or expired (expired keys fail closed).
func (r *PaymentRepo) FindIDByIdempotencyKey(tenantID, key string) (string, error) {
	var paymentID string
	err := r.db.QueryRow(
		"SELECT payment_id FROM idempotency_keys WHERE tenant_id = ? AND key_value = ? AND expires_at > ?",
		tenantID, key, time.Now().Format(time.RFC3339),
	).Scan(&paymentID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find key: %w", err)
	}
	return paymentID, nil
}

func (r *PaymentRepo) Update(p *domain.Payment) error {
	metadata, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(
		`UPDATE payments SET status = ?, metadata = ?, external_ref = ?,
			settled_amount = ?, reversed_amount = ?, reversal_reason = ?,
			failure_code = ?, failure_reason = ?, cancelled_by = ?, cancel_reason = ?,
			attempt_count = ?, processed_at = ?, settled_at = ?
		WHERE id = ?`,
		string(p.Status), metadata, nullString(p.ExternalRef),
		nullableAmount(p.SettledAmount), nullableAmount(p.ReversedAmount), nullString(p.ReversalReason),
		nullString(p.FailureCode), nullString(p.FailureReason),
		nullString(p.CancelledBy), nullString(p.CancelReason),
		p.AttemptCount, formatNullableTime(p.ProcessedAt), formatNullableTime(p.SettledAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

type PaymentFilter struct {
	TenantID  string
	Status    string
	Direction string
	Currency  string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

func (r *PaymentRepo) List(f PaymentFilter) ([]domain.Payment, int, error) {
	where, args := buildPaymentWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM payments"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	query := "SELECT " + paymentColumns + " FROM payments" + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, total, rows.Err()
}

// StatusVolume holds per-status payment counts and volumes for the
// dashboard.
type StatusVolume struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Volume int64  `json:"volume_minor_units"`
}

func (r *PaymentRepo) GetVolumeByStatus(tenantID string) ([]StatusVolume, error) {
	rows, err := r.db.Query(`
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM payments WHERE tenant_id = ? GROUP BY status
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StatusVolume
	for rows.Next() {
		var sv StatusVolume
		if err := rows.Scan(&sv.Status, &sv.Count, &sv.Volume); err != nil {
			return nil, err
		}
		result = append(result, sv)
	}
	return result, rows.Err()
}

// CurrencyVolume holds per-currency settled volume for the dashboard.
type CurrencyVolume struct {
	Currency      string `json:"currency"`
	Count         int    `json:"count"`
	SettledVolume int64  `json:"settled_volume_minor_units"`
}

func (r *PaymentRepo) GetVolumeByCurrency(tenantID string) ([]CurrencyVolume, error) {
	rows, err := r.db.Query(`
		SELECT currency, COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'COMPLETED' THEN COALESCE(settled_amount, amount) ELSE 0 END), 0)
		FROM payments WHERE tenant_id = ? GROUP BY currency
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CurrencyVolume
	for rows.Next() {
		var cv CurrencyVolume
		if err := rows.Scan(&cv.Currency, &cv.Count, &cv.SettledVolume); err != nil {
			return nil, err
		}
		result = append(result, cv)
	}
	return result, rows.Err()
}

// --- helpers ---

func buildPaymentWhere(f PaymentFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.TenantID != "" {
		clauses = append(clauses, "tenant_id = ?")
		args = append(args, f.TenantID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Direction != "" {
		clauses = append(clauses, "direction = ?")
		args = append(args, f.Direction)
	}
	if f.Currency != "" {
		clauses = append(clauses, "currency = ?")
		args = append(args, f.Currency)
	}
	if f.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.From.Format(time.RFC3339))
	}
	if f.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.To.Format(time.RFC3339))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func paymentArgs(p *domain.Payment) ([]any, error) {
	metadata, err := marshalMetadata(p.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID, p.TenantID, string(p.Direction), p.Amount.MinorUnits(), p.Amount.Currency(),
		string(p.Status), string(p.MethodType), p.Reference,
		nullString(p.PayerID), nullString(p.PayeeID), metadata, nullString(p.ExternalRef),
		nullableAmount(p.SettledAmount), nullableAmount(p.ReversedAmount), nullString(p.ReversalReason),
		nullString(p.FailureCode), nullString(p.FailureReason),
		nullString(p.CancelledBy), nullString(p.CancelReason),
		p.AttemptCount, p.CreatedAt.Format(time.RFC3339),
		formatNullableTime(p.ProcessedAt), formatNullableTime(p.SettledAt),
	}, nil
}

func marshalMetadata(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableAmount(m *money.Money) any {
	if m == nil {
		return nil
	}
	return m.MinorUnits()
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func scanPayment(scan func(dest ...any) error) (*domain.Payment, error) {
	var p domain.Payment
	var direction, status, methodType, currency, createdAt string
	var amount int64
	var payerID, payeeID, metadata, externalRef sql.NullString
	var settledAmount, reversedAmount sql.NullInt64
	var reversalReason, failureCode, failureReason sql.NullString
	var cancelledBy, cancelReason sql.NullString
	var processedAt, settledAt sql.NullString

	err := scan(
		&p.ID, &p.TenantID, &direction, &amount, &currency, &status, &methodType,
		&p.Reference, &payerID, &payeeID, &metadata, &externalRef, &settledAmount,
		&reversedAmount, &reversalReason, &failureCode, &failureReason,
		&cancelledBy, &cancelReason, &p.AttemptCount, &createdAt, &processedAt, &settledAt,
	)
	if err != nil {
		return nil, err
	}

	p.Direction = domain.PaymentDirection(direction)
	p.Status = domain.PaymentStatus(status)
	p.MethodType = domain.PaymentMethodType(methodType)
	p.Amount = money.MustNew(amount, currency)
	p.PayerID = payerID.String
	p.PayeeID = payeeID.String
	p.ExternalRef = externalRef.String
	p.ReversalReason = reversalReason.String
	p.FailureCode = failureCode.String
	p.FailureReason = failureReason.String
	p.CancelledBy = cancelledBy.String
	p.CancelReason = cancelReason.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.ProcessedAt = parseNullableTime(processedAt)
	p.SettledAt = parseNullableTime(settledAt)

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &p.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if settledAmount.Valid {
		m := money.MustNew(settledAmount.Int64, currency)
		p.SettledAmount = &m
	}
	if reversedAmount.Valid {
		m := money.MustNew(reversedAmount.Int64, currency)
		p.ReversedAmount = &m
	}

	return &p, nil
}
