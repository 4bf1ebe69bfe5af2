package repository

import (
	"context"
	"time"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
)

// PortfolioRepository exposes persistence operations for curated portfolios.
type PortfolioRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, p *domain.Portfolio) (int64, error)
	Update(ctx context.Context, p *domain.Portfolio) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*domain.Portfolio, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Portfolio, error)
	List(ctx context.Context) ([]domain.Portfolio, error)
}

// AssetRepository manages positions inside portfolios.
type AssetRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, a *domain.Asset) (int64, error)
	Update(ctx context.Context, a *domain.Asset) error
	Delete(ctx context.Context, portfolioID, id int64) error
	Get(ctx context.Context, portfolioID, id int64) (*domain.Asset, error)
	ListByPortfolio(ctx context.Context, portfolioID int64) ([]domain.Asset, error)
}

// CorporateEventRepository stores splits, reverse splits and bonus issues.
type CorporateEventRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, ev *domain.CorporateEvent) (int64, error)
	Delete(ctx context.Context, id int64) error
	ListByTickers(ctx context.Context, tickers ...string) ([]domain.CorporateEvent, error)
}

// ProventoFilter narrows provento listings. Zero values mean "any".
type ProventoFilter struct {
	Tickers []string
	Type    domain.ProventoType
	From    *time.Time
	To      *time.Time
	Limit   int
}

// ProventoRepository stores dividend distributions. Inserts skip rows that
// duplicate an existing (ticker, type, ex-date, value).
type ProventoRepository interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, p *domain.Provento) (bool, error)
	InsertBatch(ctx context.Context, ps []domain.Provento) (int, error)
	List(ctx context.Context, filter ProventoFilter) ([]domain.Provento, error)
	Delete(ctx context.Context, id int64) error
}
