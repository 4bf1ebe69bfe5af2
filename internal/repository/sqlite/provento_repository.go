package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

const createProventosTable = `
CREATE TABLE IF NOT EXISTS proventos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker TEXT NOT NULL,
	type TEXT NOT NULL,
	value TEXT NOT NULL,
	ex_date DATETIME NOT NULL,
	payment_date DATETIME NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	UNIQUE(ticker, type, ex_date, value)
);
CREATE INDEX IF NOT EXISTS idx_proventos_ticker_ex_date ON proventos(ticker, ex_date);
`

const insertProvento = `
INSERT OR IGNORE INTO proventos (ticker, type, value, ex_date, payment_date, description, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

type ProventoRepository struct {
	db *sql.DB
}

func NewProventoRepository(db *sql.DB) repository.ProventoRepository {
	return &ProventoRepository{db: db}
}

func (r *ProventoRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createProventosTable); err != nil {
		return fmt.Errorf("create proventos table: %w", err)
	}
	return nil
}

func proventoArgs(p *domain.Provento) []any {
	return []any{
		p.Ticker,
		string(p.Type),
		p.Value,
		p.ExDate.UTC(),
		nullTime(p.PaymentDate),
		p.Description,
		p.CreatedAt,
	}
}

// Insert stores p and reports whether a new row was written.
func (r *ProventoRepository) Insert(ctx context.Context, p *domain.Provento) (bool, error) {
	p.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, insertProvento, proventoArgs(p)...)
	if err != nil {
		return false, fmt.Errorf("insert provento: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("provento rows affected: %w", err)
	}
	if aff == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("provento last insert id: %w", err)
	}
	p.ID = id
	return true, nil
}

// InsertBatch writes all rows in a single transaction; any failure rolls the whole batch back.
func (r *ProventoRepository) InsertBatch(ctx context.Context, ps []domain.Provento) (int, error) {
	if len(ps) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertProvento)
	if err != nil {
		return 0, fmt.Errorf("prepare provento insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for i := range ps {
		ps[i].CreatedAt = now
		res, err := stmt.ExecContext(ctx, proventoArgs(&ps[i])...)
		if err != nil {
			return 0, fmt.Errorf("insert provento %s: %w", ps[i].Ticker, err)
		}
		if aff, _ := res.RowsAffected(); aff > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit proventos: %w", err)
	}
	return inserted, nil
}

func (r *ProventoRepository) List(ctx context.Context, filter repository.ProventoFilter) ([]domain.Provento, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.Tickers) > 0 {
		clauses = append(clauses, `ticker IN (`+placeholders(len(filter.Tickers))+`)`)
		for _, t := range filter.Tickers {
			args = append(args, strings.ToUpper(strings.TrimSpace(t)))
		}
	}
	if filter.Type != "" {
		clauses = append(clauses, `type = ?`)
		args = append(args, string(filter.Type))
	}
	if filter.From != nil {
		clauses = append(clauses, `ex_date >= ?`)
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		clauses = append(clauses, `ex_date <= ?`)
		args = append(args, filter.To.UTC())
	}

	query := `SELECT id, ticker, type, value, ex_date, payment_date, description, created_at FROM proventos`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY ex_date DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query proventos: %w", err)
	}
	defer rows.Close()

	out := []domain.Provento{}
	for rows.Next() {
		var (
			p       domain.Provento
			typ     string
			payment sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Ticker, &typ, &p.Value, &p.ExDate, &payment, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan provento: %w", err)
		}
		p.Type = domain.ProventoType(typ)
		p.PaymentDate = timePtr(payment)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProventoRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM proventos WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete provento: %w", err)
	}
	return expectAffected(res, "provento")
}
