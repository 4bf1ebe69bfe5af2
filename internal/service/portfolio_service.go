package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/marketdata"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/performance"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/permissions"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
)

var (
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	tickerPattern = regexp.MustCompile(`^[A-Z0-9.]{3,12}$`)
)

type PortfolioInput struct {
	Slug        string
	Name        string
	Description string
	Page        string
}

type AssetInput struct {
	Ticker      string
	Name        string
	Sector      string
	EntryDate   time.Time
	EntryPrice  decimal.Decimal
	Quantity    decimal.NullDecimal
	TargetPrice decimal.NullDecimal
	Bias        domain.Bias
	ExitDate    *time.Time
	ExitPrice   decimal.NullDecimal
	Position    int
}

type EventInput struct {
	Ticker string
	Type   domain.CorporateEventType
	Date   time.Time
	Factor decimal.Decimal
}

// PortfolioView is a portfolio evaluated against live quotes.
type PortfolioView struct {
	Portfolio *domain.Portfolio
	Results   []performance.AssetResult
	Summary   performance.Summary
	Quotes    map[string]marketdata.Quote
	AsOf      time.Time
}

// PortfolioService manages curated portfolios and evaluates them for members.
type PortfolioService interface {
	ListVisible(ctx context.Context, viewer *domain.User) ([]domain.Portfolio, error)
	View(ctx context.Context, viewer *domain.User, slug string) (*PortfolioView, error)

	List(ctx context.Context) ([]domain.Portfolio, error)
	Get(ctx context.Context, id int64) (*domain.Portfolio, error)
	Create(ctx context.Context, in PortfolioInput) (*domain.Portfolio, error)
	Update(ctx context.Context, id int64, in PortfolioInput) (*domain.Portfolio, error)
	Delete(ctx context.Context, id int64) error

	AddAsset(ctx context.Context, portfolioID int64, in AssetInput) (*domain.Asset, error)
	UpdateAsset(ctx context.Context, portfolioID, assetID int64, in AssetInput) (*domain.Asset, error)
	RemoveAsset(ctx context.Context, portfolioID, assetID int64) error

	ListEvents(ctx context.Context, ticker string) ([]domain.CorporateEvent, error)
	AddEvent(ctx context.Context, in EventInput) (*domain.CorporateEvent, error)
	DeleteEvent(ctx context.Context, id int64) error
}

type portfolioService struct {
	portfolios repository.PortfolioRepository
	assets     repository.AssetRepository
	events     repository.CorporateEventRepository
	proventos  repository.ProventoRepository
	quotes     marketdata.Provider
	catalog    *permissions.Catalog
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewPortfolioService(
	portfolios repository.PortfolioRepository,
	assets repository.AssetRepository,
	events repository.CorporateEventRepository,
	proventos repository.ProventoRepository,
	quotes marketdata.Provider,
	catalog *permissions.Catalog,
	log logrus.FieldLogger,
) PortfolioService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &portfolioService{
		portfolios: portfolios,
		assets:     assets,
		events:     events,
		proventos:  proventos,
		quotes:     quotes,
		catalog:    catalog,
		log:        log,
		now:        time.Now,
	}
}

func (s *portfolioService) ListVisible(ctx context.Context, viewer *domain.User) ([]domain.Portfolio, error) {
	all, err := s.portfolios.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.Portfolio, 0, len(all))
	for _, p := range all {
		if s.catalog.CanAccess(viewer, p.Page, now) {
			out = append(out, p)
		}
	}
	return out, nil
}

// View evaluates a portfolio for a member who can open its page. Quote failures
// degrade to valuing positions at cost.
func (s *portfolioService) View(ctx context.Context, viewer *domain.User, slug string) (*PortfolioView, error) {
	p, err := s.portfolios.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !s.catalog.CanAccess(viewer, p.Page, now) {
		return nil, ErrForbidden
	}

	assets, err := s.assets.ListByPortfolio(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Assets = assets

	view := &PortfolioView{Portfolio: p, Quotes: map[string]marketdata.Quote{}, AsOf: now}
	if len(assets) == 0 {
		view.Results, view.Summary = performance.Evaluator{AsOf: now}.Portfolio(nil)
		return view, nil
	}

	tickers := make([]string, 0, len(assets))
	for _, a := range assets {
		tickers = append(tickers, a.Ticker)
	}
	tickers = marketdata.NormalizeTickers(tickers)

	proventos, err := s.proventos.List(ctx, repository.ProventoFilter{Tickers: tickers})
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListByTickers(ctx, tickers...)
	if err != nil {
		return nil, err
	}
	if s.quotes != nil {
		quotes, err := s.quotes.Quotes(ctx, tickers)
		if err != nil {
			s.log.WithError(err).WithField("portfolio", p.Slug).Warn("quotes unavailable, valuing at cost")
		} else {
			view.Quotes = quotes
		}
	}

	view.Results, view.Summary = performance.Evaluator{
		Quotes:    marketdata.Prices(view.Quotes),
		Proventos: proventos,
		Events:    events,
		AsOf:      now,
	}.Portfolio(assets)
	return view, nil
}

func (s *portfolioService) List(ctx context.Context) ([]domain.Portfolio, error) {
	return s.portfolios.List(ctx)
}

func (s *portfolioService) Get(ctx context.Context, id int64) (*domain.Portfolio, error) {
	p, err := s.portfolios.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	assets, err := s.assets.ListByPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Assets = assets
	return p, nil
}

func (s *portfolioService) validatePortfolio(in PortfolioInput) (*domain.Portfolio, error) {
	p := &domain.Portfolio{
		Slug:        strings.ToLower(strings.TrimSpace(in.Slug)),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Page:        strings.ToLower(strings.TrimSpace(in.Page)),
	}
	if !slugPattern.MatchString(p.Slug) {
		return nil, invalid("slug", "slug must be lowercase letters, digits and dashes")
	}
	if p.Name == "" {
		return nil, invalid("name", "name is required")
	}
	if !s.catalog.IsPage(p.Page) {
		return nil, invalid("page", "unknown page %q", in.Page)
	}
	return p, nil
}

func (s *portfolioService) Create(ctx context.Context, in PortfolioInput) (*domain.Portfolio, error) {
	p, err := s.validatePortfolio(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.portfolios.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *portfolioService) Update(ctx context.Context, id int64, in PortfolioInput) (*domain.Portfolio, error) {
	current, err := s.portfolios.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.validatePortfolio(in)
	if err != nil {
		return nil, err
	}
	p.ID = current.ID
	p.CreatedAt = current.CreatedAt
	if err := s.portfolios.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *portfolioService) Delete(ctx context.Context, id int64) error {
	return s.portfolios.Delete(ctx, id)
}

func validateAsset(portfolioID int64, in AssetInput) (*domain.Asset, error) {
	a := &domain.Asset{
		PortfolioID: portfolioID,
		Ticker:      NormalizeTicker(in.Ticker),
		Name:        strings.TrimSpace(in.Name),
		Sector:      strings.TrimSpace(in.Sector),
		EntryDate:   in.EntryDate.UTC(),
		EntryPrice:  in.EntryPrice,
		Quantity:    decimal.NewFromInt(1),
		TargetPrice: in.TargetPrice,
		Bias:        in.Bias,
		ExitPrice:   in.ExitPrice,
		Position:    in.Position,
	}
	if in.Quantity.Valid {
		a.Quantity = in.Quantity.Decimal
	}
	if a.Bias == "" {
		a.Bias = domain.BiasBuy
	}

	switch {
	case !tickerPattern.MatchString(a.Ticker):
		return nil, invalid("ticker", "invalid ticker %q", in.Ticker)
	case in.EntryDate.IsZero():
		return nil, invalid("entryDate", "entry date is required")
	case !a.EntryPrice.IsPositive():
		return nil, invalid("entryPrice", "entry price must be positive")
	case !a.Quantity.IsPositive():
		return nil, invalid("quantity", "quantity must be positive")
	case a.TargetPrice.Valid && !a.TargetPrice.Decimal.IsPositive():
		return nil, invalid("targetPrice", "target price must be positive")
	case !a.Bias.Valid():
		return nil, invalid("bias", "unknown bias %q", in.Bias)
	case (in.ExitDate == nil) != !in.ExitPrice.Valid:
		return nil, invalid("exitPrice", "exit date and exit price must be set together")
	}
	if in.ExitDate != nil {
		exit := in.ExitDate.UTC()
		if exit.Before(a.EntryDate) {
			return nil, invalid("exitDate", "exit date is before entry date")
		}
		if !in.ExitPrice.Decimal.IsPositive() {
			return nil, invalid("exitPrice", "exit price must be positive")
		}
		a.ExitDate = &exit
	}
	return a, nil
}

func (s *portfolioService) AddAsset(ctx context.Context, portfolioID int64, in AssetInput) (*domain.Asset, error) {
	if _, err := s.portfolios.Get(ctx, portfolioID); err != nil {
		return nil, err
	}
	a, err := validateAsset(portfolioID, in)
	if err != nil {
		return nil, err
	}
	if _, err := s.assets.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *portfolioService) UpdateAsset(ctx context.Context, portfolioID, assetID int64, in AssetInput) (*domain.Asset, error) {
	current, err := s.assets.Get(ctx, portfolioID, assetID)
	if err != nil {
		return nil, err
	}
	a, err := validateAsset(portfolioID, in)
	if err != nil {
		return nil, err
	}
	a.ID = current.ID
	a.CreatedAt = current.CreatedAt
	if err := s.assets.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *portfolioService) RemoveAsset(ctx context.Context, portfolioID, assetID int64) error {
	return s.assets.Delete(ctx, portfolioID, assetID)
}

func (s *portfolioService) ListEvents(ctx context.Context, ticker string) ([]domain.CorporateEvent, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return s.events.ListByTickers(ctx)
	}
	return s.events.ListByTickers(ctx, ticker)
}

func (s *portfolioService) AddEvent(ctx context.Context, in EventInput) (*domain.CorporateEvent, error) {
	ev := &domain.CorporateEvent{
		Ticker: NormalizeTicker(in.Ticker),
		Type:   in.Type,
		Date:   in.Date.UTC(),
		Factor: in.Factor,
	}
	switch {
	case !tickerPattern.MatchString(ev.Ticker):
		return nil, invalid("ticker", "invalid ticker %q", in.Ticker)
	case !ev.Type.Valid():
		return nil, invalid("type", "unknown event type %q", in.Type)
	case in.Date.IsZero():
		return nil, invalid("date", "event date is required")
	case !ev.Factor.IsPositive():
		return nil, invalid("factor", "factor must be positive")
	}
	if _, err := s.events.Create(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *portfolioService) DeleteEvent(ctx context.Context, id int64) error {
	return s.events.Delete(ctx, id)
}

// NormalizeTicker uppercases and trims a ticker symbol.
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
