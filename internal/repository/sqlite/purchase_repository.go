package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

const createPurchasesTable = `
CREATE TABLE IF NOT EXISTS purchases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	transaction_code TEXT NOT NULL UNIQUE,
	last_event TEXT NOT NULL DEFAULT '',
	product_id TEXT NOT NULL DEFAULT '',
	product_name TEXT NOT NULL DEFAULT '',
	plan TEXT NOT NULL,
	amount TEXT NOT NULL DEFAULT '0',
	currency TEXT NOT NULL DEFAULT 'BRL',
	status TEXT NOT NULL,
	purchased_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_purchases_user_id ON purchases(user_id);
CREATE TABLE IF NOT EXISTS purchase_events (
	transaction_code TEXT NOT NULL,
	event TEXT NOT NULL,
	occurred_at INTEGER NOT NULL DEFAULT 0,
	received_at DATETIME NOT NULL,
	UNIQUE(transaction_code, event)
);
`

const purchaseColumns = `id, user_id, transaction_code, last_event, product_id, product_name, plan, amount, currency, status, purchased_at, created_at, updated_at`

type PurchaseRepository struct {
	db *sql.DB
}

func NewPurchaseRepository(db *sql.DB) repository.PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPurchasesTable); err != nil {
		return fmt.Errorf("create purchases table: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) Create(ctx context.Context, p *domain.Purchase) (int64, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = now
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO purchases (user_id, transaction_code, last_event, product_id, product_name, plan, amount, currency, status, purchased_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID,
		p.Transaction,
		p.LastEvent,
		p.ProductID,
		p.ProductName,
		string(p.Plan),
		p.Amount,
		p.Currency,
		string(p.Status),
		p.PurchasedAt.UTC(),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("purchase %s: %w", p.Transaction, repository.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("insert purchase: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("purchase last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}

func (r *PurchaseRepository) Update(ctx context.Context, p *domain.Purchase) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE purchases
SET user_id=?, last_event=?, product_id=?, product_name=?, plan=?, amount=?, currency=?, status=?, updated_at=?
WHERE id=?`,
		p.UserID,
		p.LastEvent,
		p.ProductID,
		p.ProductName,
		string(p.Plan),
		p.Amount,
		p.Currency,
		string(p.Status),
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update purchase: %w", err)
	}
	return expectAffected(res, "purchase")
}

func (r *PurchaseRepository) GetByTransaction(ctx context.Context, transaction string) (*domain.Purchase, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE transaction_code=?`, transaction)
	return scanPurchase(row)
}

func (r *PurchaseRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE user_id=? ORDER BY purchased_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	purchases := []domain.Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

// RecordEvent stores a processed provider event. Recording the same
// transaction and event twice is a no-op.
func (r *PurchaseRepository) RecordEvent(ctx context.Context, transaction, event string, occurredAt time.Time) error {
	var ms int64
	if !occurredAt.IsZero() {
		ms = occurredAt.UnixMilli()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO purchase_events (transaction_code, event, occurred_at, received_at)
VALUES (?, ?, ?, ?)`,
		transaction,
		event,
		ms,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record purchase event: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) HasEvent(ctx context.Context, transaction, event string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM purchase_events WHERE transaction_code=? AND event=?`, transaction, event).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query purchase event: %w", err)
	}
	return n > 0, nil
}

// LatestEventAt returns the newest provider timestamp recorded for a
// transaction, or the zero time when none carried one.
func (r *PurchaseRepository) LatestEventAt(ctx context.Context, transaction string) (time.Time, error) {
	var ms int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(occurred_at), 0) FROM purchase_events WHERE transaction_code=?`, transaction).Scan(&ms)
	if err != nil {
		return time.Time{}, fmt.Errorf("query latest purchase event: %w", err)
	}
	if ms <= 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms).UTC(), nil
}

func scanPurchase(row scanner) (*domain.Purchase, error) {
	var (
		p      domain.Purchase
		plan   string
		status string
	)
	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Transaction,
		&p.LastEvent,
		&p.ProductID,
		&p.ProductName,
		&plan,
		&p.Amount,
		&p.Currency,
		&status,
		&p.PurchasedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("purchase: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan purchase: %w", err)
	}
	p.Plan = domain.Plan(plan)
	p.Status = domain.PurchaseStatus(status)
	return &p, nil
}
