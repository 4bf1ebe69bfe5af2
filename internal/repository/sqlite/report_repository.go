package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

const createReportsTable = `
CREATE TABLE IF NOT EXISTS reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	report_date DATETIME NOT NULL,
	status TEXT NOT NULL,
	source_text TEXT NOT NULL DEFAULT '',
	pdf_key TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	sections TEXT NOT NULL DEFAULT '[]',
	error_message TEXT NOT NULL DEFAULT '',
	published_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
`

const reportColumns = `id, title, report_date, status, source_text, pdf_key, summary, sections, error_message, published_at, created_at, updated_at`

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) repository.ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createReportsTable); err != nil {
		return fmt.Errorf("create reports table: %w", err)
	}
	return nil
}

func (r *ReportRepository) Create(ctx context.Context, rep *domain.Report) (int64, error) {
	now := time.Now().UTC()
	rep.CreatedAt = now
	rep.UpdatedAt = now

	sections, err := json.Marshal(nonNilSections(rep.Sections))
	if err != nil {
		return 0, fmt.Errorf("encode report sections: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO reports (title, report_date, status, source_text, pdf_key, summary, sections, error_message, published_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.Title,
		rep.ReportDate.UTC(),
		string(rep.Status),
		rep.SourceText,
		rep.PDFKey,
		rep.Summary,
		string(sections),
		rep.ErrorMessage,
		nullTime(rep.PublishedAt),
		rep.CreatedAt,
		rep.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("report last insert id: %w", err)
	}
	rep.ID = id
	return id, nil
}

func (r *ReportRepository) Get(ctx context.Context, id int64) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id)
	return scanReport(row)
}

func (r *ReportRepository) List(ctx context.Context) ([]domain.Report, error) {
	return r.query(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY report_date DESC, id DESC`)
}

func (r *ReportRepository) ListByStatuses(ctx context.Context, statuses ...domain.ReportStatus) ([]domain.Report, error) {
	if len(statuses) == 0 {
		return []domain.Report{}, nil
	}
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE status IN (%s) ORDER BY report_date DESC, id DESC`, reportColumns, placeholders(len(statuses)))
	return r.query(ctx, query, args...)
}

func (r *ReportRepository) query(ctx context.Context, query string, args ...any) ([]domain.Report, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := []domain.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}

func (r *ReportRepository) UpdateStatus(ctx context.Context, id int64, status domain.ReportStatus, errorMessage *string) error {
	msg := ""
	if errorMessage != nil {
		msg = *errorMessage
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE reports
SET status=?, error_message=?, updated_at=?
WHERE id=?`,
		string(status),
		msg,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	return expectAffected(res, "report")
}

func (r *ReportRepository) SaveGenerated(ctx context.Context, id int64, summary string, sections []domain.ReportSection) error {
	encoded, err := json.Marshal(nonNilSections(sections))
	if err != nil {
		return fmt.Errorf("encode report sections: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE reports
SET status=?, summary=?, sections=?, error_message='', updated_at=?
WHERE id=?`,
		string(domain.ReportStatusReady),
		summary,
		string(encoded),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("save generated report: %w", err)
	}
	return expectAffected(res, "report")
}

func (r *ReportRepository) Publish(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE reports
SET status=?, published_at=?, updated_at=?
WHERE id=?`,
		string(domain.ReportStatusPublished),
		at.UTC(),
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("publish report: %w", err)
	}
	return expectAffected(res, "report")
}

func (r *ReportRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return expectAffected(res, "report")
}

func scanReport(row scanner) (*domain.Report, error) {
	var (
		rep         domain.Report
		status      string
		sections    string
		publishedAt sql.NullTime
	)
	if err := row.Scan(
		&rep.ID,
		&rep.Title,
		&rep.ReportDate,
		&status,
		&rep.SourceText,
		&rep.PDFKey,
		&rep.Summary,
		&sections,
		&rep.ErrorMessage,
		&publishedAt,
		&rep.CreatedAt,
		&rep.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	rep.Status = domain.ReportStatus(status)
	rep.PublishedAt = timePtr(publishedAt)
	if err := json.Unmarshal([]byte(sections), &rep.Sections); err != nil {
		return nil, fmt.Errorf("decode report sections: %w", err)
	}
	return &rep, nil
}

func nonNilSections(s []domain.ReportSection) []domain.ReportSection {
	if s == nil {
		return []domain.ReportSection{}
	}
	return s
}
