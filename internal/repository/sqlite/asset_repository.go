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

const createAssetsTable = `
CREATE TABLE IF NOT EXISTS assets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	portfolio_id INTEGER NOT NULL,
	ticker TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	sector TEXT NOT NULL DEFAULT '',
	entry_date DATETIME NOT NULL,
	entry_price TEXT NOT NULL,
	quantity TEXT NOT NULL DEFAULT '1',
	target_price TEXT NULL,
	bias TEXT NOT NULL,
	exit_date DATETIME NULL,
	exit_price TEXT NULL,
	position INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	FOREIGN KEY(portfolio_id) REFERENCES portfolios(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_assets_portfolio_id ON assets(portfolio_id);
CREATE TABLE IF NOT EXISTS corporate_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker TEXT NOT NULL,
	type TEXT NOT NULL,
	event_date DATETIME NOT NULL,
	factor TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_corporate_events_ticker ON corporate_events(ticker);
`

const assetColumns = `id, portfolio_id, ticker, name, sector, entry_date, entry_price, quantity, target_price, bias, exit_date, exit_price, position, created_at, updated_at`

type AssetRepository struct {
	db *sql.DB
}

func NewAssetRepository(db *sql.DB) repository.AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAssetsTable); err != nil {
		return fmt.Errorf("create assets table: %w", err)
	}
	return nil
}

func (r *AssetRepository) Create(ctx context.Context, a *domain.Asset) (int64, error) {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO assets (portfolio_id, ticker, name, sector, entry_date, entry_price, quantity, target_price, bias, exit_date, exit_price, position, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.PortfolioID,
		a.Ticker,
		a.Name,
		a.Sector,
		a.EntryDate.UTC(),
		a.EntryPrice,
		a.Quantity,
		a.TargetPrice,
		string(a.Bias),
		nullTime(a.ExitDate),
		a.ExitPrice,
		a.Position,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("asset last insert id: %w", err)
	}
	a.ID = id
	return id, nil
}

func (r *AssetRepository) Update(ctx context.Context, a *domain.Asset) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE assets
SET ticker=?, name=?, sector=?, entry_date=?, entry_price=?, quantity=?, target_price=?, bias=?, exit_date=?, exit_price=?, position=?, updated_at=?
WHERE id=? AND portfolio_id=?`,
		a.Ticker,
		a.Name,
		a.Sector,
		a.EntryDate.UTC(),
		a.EntryPrice,
		a.Quantity,
		a.TargetPrice,
		string(a.Bias),
		nullTime(a.ExitDate),
		a.ExitPrice,
		a.Position,
		a.UpdatedAt,
		a.ID,
		a.PortfolioID,
	)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
	}
	return expectAffected(res, "asset")
}

func (r *AssetRepository) Delete(ctx context.Context, portfolioID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id=? AND portfolio_id=?`, id, portfolioID)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return expectAffected(res, "asset")
}

func (r *AssetRepository) Get(ctx context.Context, portfolioID, id int64) (*domain.Asset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id=? AND portfolio_id=?`, id, portfolioID)
	return scanAsset(row)
}

func (r *AssetRepository) ListByPortfolio(ctx context.Context, portfolioID int64) ([]domain.Asset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE portfolio_id=? ORDER BY position ASC, id ASC`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	out := []domain.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAsset(row scanner) (*domain.Asset, error) {
	var (
		a        domain.Asset
		bias     string
		exitDate sql.NullTime
	)
	if err := row.Scan(
		&a.ID,
		&a.PortfolioID,
		&a.Ticker,
		&a.Name,
		&a.Sector,
		&a.EntryDate,
		&a.EntryPrice,
		&a.Quantity,
		&a.TargetPrice,
		&bias,
		&exitDate,
		&a.ExitPrice,
		&a.Position,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("asset: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	a.Bias = domain.Bias(bias)
	a.ExitDate = timePtr(exitDate)
	return &a, nil
}

// CorporateEventRepository shares the assets schema; its table is created by AssetRepository.Init.
type CorporateEventRepository struct {
	db *sql.DB
}

func NewCorporateEventRepository(db *sql.DB) repository.CorporateEventRepository {
	return &CorporateEventRepository{db: db}
}

func (r *CorporateEventRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAssetsTable); err != nil {
		return fmt.Errorf("create corporate events table: %w", err)
	}
	return nil
}

func (r *CorporateEventRepository) Create(ctx context.Context, ev *domain.CorporateEvent) (int64, error) {
	ev.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
INSERT INTO corporate_events (ticker, type, event_date, factor, created_at)
VALUES (?, ?, ?, ?, ?)`,
		ev.Ticker,
		string(ev.Type),
		ev.Date.UTC(),
		ev.Factor,
		ev.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert corporate event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("corporate event last insert id: %w", err)
	}
	ev.ID = id
	return id, nil
}

func (r *CorporateEventRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM corporate_events WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete corporate event: %w", err)
	}
	return expectAffected(res, "corporate event")
}

func (r *CorporateEventRepository) ListByTickers(ctx context.Context, tickers ...string) ([]domain.CorporateEvent, error) {
	query := `SELECT id, ticker, type, event_date, factor, created_at FROM corporate_events`
	var args []any
	if len(tickers) > 0 {
		query += ` WHERE ticker IN (` + placeholders(len(tickers)) + `)`
		for _, t := range tickers {
			args = append(args, strings.ToUpper(t))
		}
	}
	query += ` ORDER BY event_date ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query corporate events: %w", err)
	}
	defer rows.Close()

	out := []domain.CorporateEvent{}
	for rows.Next() {
		var (
			ev  domain.CorporateEvent
			typ string
		)
		if err := rows.Scan(&ev.ID, &ev.Ticker, &typ, &ev.Date, &ev.Factor, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan corporate event: %w", err)
		}
		ev.Type = domain.CorporateEventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}
