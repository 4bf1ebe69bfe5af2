package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/marketdata"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/permissions"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository/sqlite"
)

type staticQuotes struct {
	quotes map[string]marketdata.Quote
	err    error
	calls  int
}

func (s *staticQuotes) Quotes(_ context.Context, tickers []string) (map[string]marketdata.Quote, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]marketdata.Quote, len(tickers))
	for _, t := range tickers {
		if q, ok := s.quotes[t]; ok {
			out[t] = q
		}
	}
	return out, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newPortfolioServiceForTest(t *testing.T, quotes marketdata.Provider) (*portfolioService, *sqlite.Repositories) {
	t.Helper()
	repos := newTestRepos(t)
	svc := NewPortfolioService(repos.Portfolios, repos.Assets, repos.Events, repos.Proventos, quotes, permissions.Default(), quietLogger()).(*portfolioService)
	svc.now = func() time.Time { return day(2025, 6, 30) }
	return svc, repos
}

func seedMicroCaps(t *testing.T, svc *portfolioService, repos *sqlite.Repositories) *domain.Portfolio {
	t.Helper()
	ctx := context.Background()
	p, err := svc.Create(ctx, PortfolioInput{Slug: "micro-caps", Name: "Micro Caps", Page: "Micro-Caps"})
	if err != nil {
		t.Fatalf("create portfolio: %v", err)
	}
	if _, err := svc.AddAsset(ctx, p.ID, AssetInput{
		Ticker:     "vulc3",
		EntryDate:  day(2024, 1, 2),
		EntryPrice: dec("10"),
		Quantity:   decimal.NewNullDecimal(dec("100")),
	}); err != nil {
		t.Fatalf("add asset: %v", err)
	}
	if _, err := repos.Proventos.Insert(ctx, &domain.Provento{
		Ticker: "VULC3",
		Type:   domain.ProventoDividendo,
		Value:  dec("0.5"),
		ExDate: day(2024, 6, 1),
	}); err != nil {
		t.Fatalf("insert provento: %v", err)
	}
	return p
}

func TestViewRequiresPortfolioPage(t *testing.T) {
	quotes := &staticQuotes{}
	svc, repos := newPortfolioServiceForTest(t, quotes)
	seedMicroCaps(t, svc, repos)

	lite := &domain.User{ID: 1, Plan: domain.PlanLite, Status: domain.UserStatusActive}
	if _, err := svc.View(context.Background(), lite, "micro-caps"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("LITE view err = %v", err)
	}
	if quotes.calls != 0 {
		t.Fatal("quotes fetched for a forbidden view")
	}

	visible, err := svc.ListVisible(context.Background(), lite)
	if err != nil || len(visible) != 0 {
		t.Fatalf("visible portfolios = %+v, %v", visible, err)
	}

	lite.CustomPermissions = []string{"micro-caps"}
	if _, err := svc.View(context.Background(), lite, "micro-caps"); err != nil {
		t.Fatalf("view with custom grant: %v", err)
	}
}

func TestViewValuesPositionsWithQuotesAndProventos(t *testing.T) {
	quotes := &staticQuotes{quotes: map[string]marketdata.Quote{"VULC3": {Ticker: "VULC3", Price: dec("12")}}}
	svc, repos := newPortfolioServiceForTest(t, quotes)
	seedMicroCaps(t, svc, repos)

	vip := &domain.User{ID: 1, Plan: domain.PlanVIP, Status: domain.UserStatusActive}
	view, err := svc.View(context.Background(), vip, "micro-caps")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(view.Results) != 1 {
		t.Fatalf("results = %+v", view.Results)
	}
	r := view.Results[0]
	if !r.HasQuote || !r.MarketValue.Equal(dec("1200")) || !r.Dividends.Equal(dec("50")) {
		t.Fatalf("result = %+v", r)
	}
	if !r.TotalReturnPercent.Equal(dec("25")) {
		t.Fatalf("total return = %s", r.TotalReturnPercent)
	}
	if view.Summary.Positions != 1 || !view.Summary.TotalInvested.Equal(dec("1000")) {
		t.Fatalf("summary = %+v", view.Summary)
	}
}

func TestViewFallsBackToCostWhenQuotesFail(t *testing.T) {
	svc, repos := newPortfolioServiceForTest(t, &staticQuotes{err: errors.New("brapi down")})
	seedMicroCaps(t, svc, repos)

	admin := &domain.User{ID: 1, Plan: domain.PlanAdmin}
	view, err := svc.View(context.Background(), admin, "micro-caps")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	r := view.Results[0]
	if r.HasQuote || !r.MarketValue.Equal(dec("1000")) || !r.TotalReturnPercent.Equal(dec("5")) {
		t.Fatalf("result without quote = %+v", r)
	}
}

func TestPortfolioValidation(t *testing.T) {
	svc, _ := newPortfolioServiceForTest(t, nil)
	ctx := context.Background()

	cases := []PortfolioInput{
		{Slug: "Small Caps", Name: "Small", Page: "small-caps"},
		{Slug: "small-caps", Name: "", Page: "small-caps"},
		{Slug: "small-caps", Name: "Small", Page: "nope"},
	}
	for _, in := range cases {
		if _, err := svc.Create(ctx, in); !errors.Is(err, ErrValidation) {
			t.Errorf("Create(%+v) err = %v", in, err)
		}
	}

	p, err := svc.Create(ctx, PortfolioInput{Slug: "small-caps", Name: "Small", Page: "small-caps"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	exit := day(2023, 12, 1)
	badAssets := []AssetInput{
		{Ticker: "X", EntryDate: day(2024, 1, 2), EntryPrice: dec("10")},
		{Ticker: "TASA4", EntryPrice: dec("10")},
		{Ticker: "TASA4", EntryDate: day(2024, 1, 2), EntryPrice: dec("0")},
		{Ticker: "TASA4", EntryDate: day(2024, 1, 2), EntryPrice: dec("10"), ExitDate: &exit},
		{Ticker: "TASA4", EntryDate: day(2024, 1, 2), EntryPrice: dec("10"), ExitDate: &exit, ExitPrice: decimal.NewNullDecimal(dec("8"))},
		{Ticker: "TASA4", EntryDate: day(2024, 1, 2), EntryPrice: dec("10"), Bias: "SEGURAR"},
	}
	for _, in := range badAssets {
		if _, err := svc.AddAsset(ctx, p.ID, in); !errors.Is(err, ErrValidation) {
			t.Errorf("AddAsset(%+v) err = %v", in, err)
		}
	}

	a, err := svc.AddAsset(ctx, p.ID, AssetInput{Ticker: "tasa4", EntryDate: day(2024, 1, 2), EntryPrice: dec("10")})
	if err != nil {
		t.Fatalf("add asset: %v", err)
	}
	if a.Ticker != "TASA4" || !a.Quantity.Equal(dec("1")) || a.Bias != domain.BiasBuy {
		t.Fatalf("asset defaults = %+v", a)
	}
}

func TestCorporateEvents(t *testing.T) {
	svc, _ := newPortfolioServiceForTest(t, nil)
	ctx := context.Background()

	if _, err := svc.AddEvent(ctx, EventInput{Ticker: "MGLU3", Type: domain.EventReverseSplit, Date: day(2024, 5, 1), Factor: dec("0")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero factor err = %v", err)
	}
	ev, err := svc.AddEvent(ctx, EventInput{Ticker: "mglu3", Type: domain.EventReverseSplit, Date: day(2024, 5, 1), Factor: dec("10")})
	if err != nil {
		t.Fatalf("add event: %v", err)
	}
	events, err := svc.ListEvents(ctx, "MGLU3")
	if err != nil || len(events) != 1 || events[0].ID != ev.ID {
		t.Fatalf("events = %+v, %v", events, err)
	}
	if err := svc.DeleteEvent(ctx, ev.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}
}
