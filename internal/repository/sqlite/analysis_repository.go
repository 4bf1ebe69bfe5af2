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

const createAnalysesTable = `
CREATE TABLE IF NOT EXISTS quarterly_analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker TEXT NOT NULL,
	quarter TEXT NOT NULL,
	title TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	recommendation TEXT NOT NULL,
	target_price TEXT NULL,
	pdf_key TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	published_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(ticker, quarter)
);
`

const analysisColumns = `id, ticker, quarter, title, summary, content, recommendation, target_price, pdf_key, status, published_at, created_at, updated_at`

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) repository.AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAnalysesTable); err != nil {
		return fmt.Errorf("create quarterly_analyses table: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) Create(ctx context.Context, a *domain.QuarterlyAnalysis) (int64, error) {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO quarterly_analyses (ticker, quarter, title, summary, content, recommendation, target_price, pdf_key, status, published_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Ticker,
		a.Quarter,
		a.Title,
		a.Summary,
		a.Content,
		string(a.Recommendation),
		a.TargetPrice,
		a.PDFKey,
		string(a.Status),
		nullTime(a.PublishedAt),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("analysis %s %s: %w", a.Ticker, a.Quarter, repository.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("insert analysis: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("analysis last insert id: %w", err)
	}
	a.ID = id
	return id, nil
}

func (r *AnalysisRepository) Update(ctx context.Context, a *domain.QuarterlyAnalysis) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE quarterly_analyses
SET ticker=?, quarter=?, title=?, summary=?, content=?, recommendation=?, target_price=?, pdf_key=?, status=?, published_at=?, updated_at=?
WHERE id=?`,
		a.Ticker,
		a.Quarter,
		a.Title,
		a.Summary,
		a.Content,
		string(a.Recommendation),
		a.TargetPrice,
		a.PDFKey,
		string(a.Status),
		nullTime(a.PublishedAt),
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("analysis %s %s: %w", a.Ticker, a.Quarter, repository.ErrAlreadyExists)
		}
		return fmt.Errorf("update analysis: %w", err)
	}
	return expectAffected(res, "analysis")
}

func (r *AnalysisRepository) Get(ctx context.Context, id int64) (*domain.QuarterlyAnalysis, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+analysisColumns+` FROM quarterly_analyses WHERE id=?`, id)
	return scanAnalysis(row)
}

func (r *AnalysisRepository) List(ctx context.Context, filter repository.AnalysisFilter) ([]domain.QuarterlyAnalysis, error) {
	var (
		clauses []string
		args    []any
	)
	if t := strings.TrimSpace(filter.Ticker); t != "" {
		clauses = append(clauses, "ticker = ?")
		args = append(args, strings.ToUpper(t))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := `SELECT ` + analysisColumns + ` FROM quarterly_analyses`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	out := []domain.QuarterlyAnalysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AnalysisRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM quarterly_analyses WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return expectAffected(res, "analysis")
}

func scanAnalysis(row scanner) (*domain.QuarterlyAnalysis, error) {
	var (
		a              domain.QuarterlyAnalysis
		recommendation string
		status         string
		publishedAt    sql.NullTime
	)
	if err := row.Scan(
		&a.ID,
		&a.Ticker,
		&a.Quarter,
		&a.Title,
		&a.Summary,
		&a.Content,
		&recommendation,
		&a.TargetPrice,
		&a.PDFKey,
		&status,
		&publishedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("analysis: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	a.Recommendation = domain.Bias(recommendation)
	a.Status = domain.AnalysisStatus(status)
	a.PublishedAt = timePtr(publishedAt)
	return &a, nil
}
