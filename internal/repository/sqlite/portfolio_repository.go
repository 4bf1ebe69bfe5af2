package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

const createPortfoliosTable = `
CREATE TABLE IF NOT EXISTS portfolios (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	page TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const portfolioColumns = `id, slug, name, description, page, created_at, updated_at`

type PortfolioRepository struct {
	db *sql.DB
}

func NewPortfolioRepository(db *sql.DB) repository.PortfolioRepository {
	return &PortfolioRepository{db: db}
}

func (r *PortfolioRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPortfoliosTable); err != nil {
		return fmt.Errorf("create portfolios table: %w", err)
	}
	return nil
}

func (r *PortfolioRepository) Create(ctx context.Context, p *domain.Portfolio) (int64, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO portfolios (slug, name, description, page, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		p.Slug,
		p.Name,
		p.Description,
		p.Page,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("portfolio %s: %w", p.Slug, repository.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("insert portfolio: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("portfolio last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}

func (r *PortfolioRepository) Update(ctx context.Context, p *domain.Portfolio) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE portfolios
SET slug=?, name=?, description=?, page=?, updated_at=?
WHERE id=?`,
		p.Slug,
		p.Name,
		p.Description,
		p.Page,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("portfolio %s: %w", p.Slug, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("update portfolio: %w", err)
	}
	return expectAffected(res, "portfolio")
}

func (r *PortfolioRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE portfolio_id=?`, id); err != nil {
		return fmt.Errorf("delete portfolio assets: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM portfolios WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete portfolio: %w", err)
	}
	if err := expectAffected(res, "portfolio"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit portfolio delete: %w", err)
	}
	return nil
}

func (r *PortfolioRepository) Get(ctx context.Context, id int64) (*domain.Portfolio, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+portfolioColumns+` FROM portfolios WHERE id=?`, id)
	return scanPortfolio(row)
}

func (r *PortfolioRepository) GetBySlug(ctx context.Context, slug string) (*domain.Portfolio, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+portfolioColumns+` FROM portfolios WHERE slug=?`, strings.ToLower(strings.TrimSpace(slug)))
	return scanPortfolio(row)
}

func (r *PortfolioRepository) List(ctx context.Context) ([]domain.Portfolio, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+portfolioColumns+` FROM portfolios ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query portfolios: %w", err)
	}
	defer rows.Close()

	out := []domain.Portfolio{}
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPortfolio(row scanner) (*domain.Portfolio, error) {
	var p domain.Portfolio
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.Page, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("portfolio: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan portfolio: %w", err)
	}
	return &p, nil
}
