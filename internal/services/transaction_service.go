package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketplace/internal/models"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
	DateLayout      = "2006-01-02 15:04:05"

	// column bounds: item_count INT, total DECIMAL(20,2), VARCHAR sizes
	maxLineQty          = 1_000_000
	maxItemCount        = math.MaxInt32
	maxTotal            = 1e15
	maxTimestampLen     = 40
	maxPaymentMethodLen = 50

	transactionColumns = "id, owner, items, total, item_count, payment_method, proof_uploaded, proof_filename, location, timestamp, date"
)

type TransactionService struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time

	// serializes id allocation within this process; the locking read covers
	// other processes sharing the database
	mu sync.Mutex
}

func NewTransactionService(db *sql.DB, logger zerolog.Logger) *TransactionService {
	return &TransactionService{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Summarize computes the order total and the number of units across a JSON
// array of line items. Each item needs a numeric price and a whole,
// non-negative qty; numbers sent as strings are accepted.
func Summarize(items json.RawMessage) (float64, int, error) {
	if len(items) == 0 || !gjson.ValidBytes(items) {
		return 0, 0, validationError("items are required")
	}

	parsed := gjson.ParseBytes(items)
	if !parsed.IsArray() {
		return 0, 0, validationError("items must be an array")
	}
	lines := parsed.Array()
	if len(lines) == 0 {
		return 0, 0, validationError("items are required")
	}

	var total float64
	var count int
	for i, line := range lines {
		price, ok := numeric(line.Get("price"))
		if !ok {
			return 0, 0, validationError(fmt.Sprintf("item %d has an invalid price", i))
		}
		qty, ok := numeric(line.Get("qty"))
		if !ok || qty < 0 || qty != math.Trunc(qty) {
			return 0, 0, validationError(fmt.Sprintf("item %d has an invalid qty", i))
		}
		if qty > maxLineQty {
			return 0, 0, validationError(fmt.Sprintf("item %d qty exceeds %d", i, maxLineQty))
		}
		total += price * qty
		count += int(qty)
		if count > maxItemCount || math.Abs(total) > maxTotal {
			return 0, 0, validationError("order is too large")
		}
	}

	return math.Round(total*100) / 100, count, nil
}

func numeric(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// checkTimestamp accepts an empty value, which Create fills in, or an
// RFC 3339 time such as the ones browsers produce with toISOString.
func checkTimestamp(ts string) error {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return nil
	}
	if len(ts) > maxTimestampLen {
		return validationError(fmt.Sprintf("timestamp exceeds %d characters", maxTimestampLen))
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		return validationError("timestamp must be an RFC 3339 time")
	}
	return nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var owner, proof, location sql.NullString
	var items string

	err := row.Scan(
		&t.ID, &owner, &items, &t.Total, &t.ItemCount, &t.PaymentMethod,
		&t.ProofUploaded, &proof, &location, &t.Timestamp, &t.Date,
	)
	if err != nil {
		return nil, err
	}

	t.Items = json.RawMessage(items)
	if owner.Valid {
		t.Owner = &owner.String
	}
	if proof.Valid {
		t.ProofFilename = &proof.String
	}
	if location.Valid && location.String != "" {
		t.Location = json.RawMessage(location.String)
	}
	return &t, nil
}

// ListAll returns transactions newest first, optionally only those of owner.
func (s *TransactionService) ListAll(ctx context.Context, owner *string) ([]*models.Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions"
	var args []interface{}
	if owner != nil {
		query += " WHERE owner = ?"
		args = append(args, *owner)
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing transactions")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	transactions := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func nextID(ctx context.Context, q queryRower, lock bool) (int64, error) {
	query := "SELECT COALESCE(MAX(id), 0) + 1 FROM transactions"
	if lock {
		query += " FOR UPDATE"
	}
	var id int64
	if err := q.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// NextID reports the id the next created transaction would receive. Create
// allocates its own id atomically; this is informational.
func (s *TransactionService) NextID(ctx context.Context) (int64, error) {
	id, err := nextID(ctx, s.db, false)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error reading next transaction id")
		return 0, fmt.Errorf("database error: %w", err)
	}
	return id, nil
}

// Create validates and prices t, then allocates the next sequential id and
// inserts the record in a single database transaction.
func (s *TransactionService) Create(ctx context.Context, t *models.Transaction) (*models.Transaction, error) {
	total, count, err := Summarize(t.Items)
	if err != nil {
		return nil, err
	}
	if len(t.Location) > 0 && !gjson.ValidBytes(t.Location) {
		return nil, validationError("location must be valid JSON")
	}
	if err := checkTimestamp(t.Timestamp); err != nil {
		return nil, err
	}
	if len(t.PaymentMethod) > maxPaymentMethodLen {
		return nil, validationError(fmt.Sprintf("paymentMethod exceeds %d characters", maxPaymentMethodLen))
	}

	now := s.now()
	rec := *t
	rec.Total = total
	rec.ItemCount = count
	rec.ProofUploaded = rec.ProofFilename != nil
	if strings.TrimSpace(rec.PaymentMethod) == "" {
		rec.PaymentMethod = models.PaymentMethodCash
	}
	rec.Timestamp = strings.TrimSpace(rec.Timestamp)
	if rec.Timestamp == "" {
		rec.Timestamp = now.UTC().Format(TimestampLayout)
	}
	rec.Date = now.Format(DateLayout)

	var location sql.NullString
	if len(rec.Location) > 0 && string(rec.Location) != "null" {
		location = sql.NullString{String: string(rec.Location), Valid: true}
	} else {
		rec.Location = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error starting transaction")
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	rec.ID, err = nextID(ctx, tx, true)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error allocating transaction id")
		return nil, fmt.Errorf("failed to allocate id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, nullString(rec.Owner), string(rec.Items), rec.Total, rec.ItemCount, rec.PaymentMethod,
		rec.ProofUploaded, nullString(rec.ProofFilename), location, rec.Timestamp, rec.Date,
	)
	if err != nil {
		s.logger.Error().Err(err).Int64("transaction_id", rec.ID).Msg("Error creating transaction")
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("Error committing transaction")
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Int64("transaction_id", rec.ID).
		Float64("total", rec.Total).
		Int("item_count", rec.ItemCount).
		Msg("Transaction recorded")

	return &rec, nil
}

// Summary totals the ledger, optionally for a single owner.
func (s *TransactionService) Summary(ctx context.Context, owner *string) (*models.LedgerSummary, error) {
	query := "SELECT COUNT(*), COALESCE(SUM(total), 0), COALESCE(SUM(item_count), 0) FROM transactions"
	var args []interface{}
	if owner != nil {
		query += " WHERE owner = ?"
		args = append(args, *owner)
	}

	var summary models.LedgerSummary
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&summary.Transactions, &summary.Revenue, &summary.ItemsSold)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error summarizing transactions")
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &summary, nil
}
