package performance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Errorf("%s = %s, want %s", name, got.String(), want)
	}
}

func TestPriceChangePercent(t *testing.T) {
	tests := []struct {
		entry, current, want string
	}{
		{"10", "12", "20"},
		{"20", "15", "-25"},
		{"0", "15", "0"},
		{"8", "8", "0"},
	}
	for _, tt := range tests {
		got := PriceChangePercent(d(tt.entry), d(tt.current))
		assertDecimal(t, "PriceChangePercent("+tt.entry+","+tt.current+")", got, tt.want)
	}
}

func TestAdjustForEvents(t *testing.T) {
	entry := day(2024, 1, 10)
	asOf := day(2025, 1, 1)

	tests := []struct {
		name      string
		events    []domain.CorporateEvent
		wantPrice string
		wantQty   string
	}{
		{
			name:      "no events",
			wantPrice: "10",
			wantQty:   "100",
		},
		{
			name:      "split after entry",
			events:    []domain.CorporateEvent{{Type: domain.EventSplit, Date: day(2024, 6, 1), Factor: d("2")}},
			wantPrice: "5",
			wantQty:   "200",
		},
		{
			name:      "reverse split after entry",
			events:    []domain.CorporateEvent{{Type: domain.EventReverseSplit, Date: day(2024, 6, 1), Factor: d("10")}},
			wantPrice: "100",
			wantQty:   "10",
		},
		{
			name:      "bonus",
			events:    []domain.CorporateEvent{{Type: domain.EventBonus, Date: day(2024, 6, 1), Factor: d("0.25")}},
			wantPrice: "8",
			wantQty:   "125",
		},
		{
			name: "events before entry or after asOf are ignored",
			events: []domain.CorporateEvent{
				{Type: domain.EventSplit, Date: day(2023, 6, 1), Factor: d("2")},
				{Type: domain.EventSplit, Date: entry, Factor: d("2")},
				{Type: domain.EventSplit, Date: day(2025, 6, 1), Factor: d("2")},
			},
			wantPrice: "10",
			wantQty:   "100",
		},
		{
			name:      "non-positive factor is ignored",
			events:    []domain.CorporateEvent{{Type: domain.EventSplit, Date: day(2024, 6, 1), Factor: d("0")}},
			wantPrice: "10",
			wantQty:   "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, qty := AdjustForEvents(d("10"), d("100"), entry, asOf, tt.events)
			assertDecimal(t, "price", price, tt.wantPrice)
			assertDecimal(t, "quantity", qty, tt.wantQty)
		})
	}
}

func TestDividendsSince(t *testing.T) {
	proventos := []domain.Provento{
		{Ticker: "BBAS3", Value: d("0.50"), ExDate: day(2024, 1, 9)},
		{Ticker: "BBAS3", Value: d("0.40"), ExDate: day(2024, 1, 10)},
		{Ticker: "BBAS3", Value: d("0.35"), ExDate: day(2024, 5, 20)},
		{Ticker: "BBAS3", Value: d("1.00"), ExDate: day(2025, 2, 1)},
	}
	got := DividendsSince(proventos, day(2024, 1, 10), day(2025, 1, 1))
	assertDecimal(t, "DividendsSince", got, "0.75")

	assertDecimal(t, "empty", DividendsSince(nil, day(2024, 1, 1), day(2025, 1, 1)), "0")
}

func TestDividendIncomeFollowsShareCount(t *testing.T) {
	proventos := []domain.Provento{
		{Value: d("0.5"), ExDate: day(2024, 2, 1)},
		{Value: d("0.3"), ExDate: day(2024, 4, 1)},
	}
	events := []domain.CorporateEvent{
		{Type: domain.EventSplit, Date: day(2024, 3, 1), Factor: d("2")},
	}
	got := DividendIncome(proventos, events, day(2024, 1, 1), day(2024, 12, 31), d("100"))
	// 0.5*100 + 0.3*200
	assertDecimal(t, "DividendIncome", got, "110")
}

func TestEvaluateWithQuote(t *testing.T) {
	res := Evaluate(Input{
		Asset: domain.Asset{
			ID:         7,
			Ticker:     "TAEE11",
			EntryDate:  day(2024, 1, 10),
			EntryPrice: d("10"),
			Quantity:   d("100"),
		},
		Quote: decimal.NewNullDecimal(d("12")),
		Proventos: []domain.Provento{
			{Ticker: "TAEE11", Value: d("1"), ExDate: day(2024, 3, 1)},
			{Ticker: "OTHER3", Value: d("9"), ExDate: day(2024, 3, 1)},
		},
		AsOf: day(2024, 12, 31),
	})

	if !res.HasQuote {
		t.Fatal("expected HasQuote")
	}
	assertDecimal(t, "Invested", res.Invested, "1000")
	assertDecimal(t, "MarketValue", res.MarketValue, "1200")
	assertDecimal(t, "Dividends", res.Dividends, "100")
	assertDecimal(t, "DividendsPerShare", res.DividendsPerShare, "1")
	assertDecimal(t, "PriceChangePercent", res.PriceChangePercent, "20")
	assertDecimal(t, "TotalReturnPercent", res.TotalReturnPercent, "30")
	assertDecimal(t, "YieldOnCostPercent", res.YieldOnCostPercent, "10")
}

func TestEvaluateWithoutQuoteValuesAtCost(t *testing.T) {
	res := Evaluate(Input{
		Asset: domain.Asset{
			Ticker:     "HGLG11",
			EntryDate:  day(2024, 1, 10),
			EntryPrice: d("150"),
		},
		Proventos: []domain.Provento{{Ticker: "HGLG11", Value: d("1.5"), ExDate: day(2024, 2, 1)}},
		AsOf:      day(2024, 12, 31),
	})

	if res.HasQuote {
		t.Fatal("expected no quote")
	}
	assertDecimal(t, "Quantity defaults to one", res.Quantity, "1")
	assertDecimal(t, "MarketValue", res.MarketValue, "150")
	assertDecimal(t, "PriceChangePercent", res.PriceChangePercent, "0")
	assertDecimal(t, "TotalReturnPercent", res.TotalReturnPercent, "1")
}

func TestEvaluateClosedPosition(t *testing.T) {
	exit := day(2024, 6, 30)
	res := Evaluate(Input{
		Asset: domain.Asset{
			Ticker:     "WEGE3",
			EntryDate:  day(2024, 1, 10),
			EntryPrice: d("20"),
			Quantity:   d("10"),
			ExitDate:   &exit,
			ExitPrice:  decimal.NewNullDecimal(d("25")),
		},
		Quote: decimal.NewNullDecimal(d("40")),
		Proventos: []domain.Provento{
			{Ticker: "WEGE3", Value: d("0.5"), ExDate: day(2024, 3, 1)},
			{Ticker: "WEGE3", Value: d("0.5"), ExDate: day(2024, 9, 1)},
		},
		AsOf: day(2024, 12, 31),
	})

	if !res.Closed {
		t.Fatal("expected closed position")
	}
	assertDecimal(t, "CurrentPrice", res.CurrentPrice, "25")
	assertDecimal(t, "Dividends", res.Dividends, "5")
	assertDecimal(t, "PriceChangePercent", res.PriceChangePercent, "25")
}

func TestAllocate(t *testing.T) {
	results := []AssetResult{
		{Ticker: "A", MarketValue: d("300")},
		{Ticker: "B", MarketValue: d("100")},
		{Ticker: "C", MarketValue: d("500"), Closed: true},
	}
	Allocate(results)
	assertDecimal(t, "A", results[0].WeightPercent, "75")
	assertDecimal(t, "B", results[1].WeightPercent, "25")
	assertDecimal(t, "C", results[2].WeightPercent, "0")

	zero := []AssetResult{{Ticker: "A"}, {Ticker: "B"}}
	Allocate(zero)
	for _, r := range zero {
		assertDecimal(t, r.Ticker, r.WeightPercent, "0")
	}
}

func TestSummarize(t *testing.T) {
	empty := Summarize(nil)
	if empty.Positions != 0 || !empty.TotalInvested.IsZero() || !empty.AverageReturnPercent.IsZero() {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}

	s := Summarize([]AssetResult{
		{Invested: d("1000"), MarketValue: d("1200"), Dividends: d("100"), PriceChangePercent: d("20"), TotalReturnPercent: d("30")},
		{Invested: d("1000"), MarketValue: d("900"), Dividends: d("0"), PriceChangePercent: d("-10"), TotalReturnPercent: d("-10"), Closed: true},
	})
	if s.Positions != 2 || s.OpenPositions != 1 {
		t.Fatalf("positions = %d/%d", s.Positions, s.OpenPositions)
	}
	assertDecimal(t, "TotalInvested", s.TotalInvested, "2000")
	assertDecimal(t, "TotalMarketValue", s.TotalMarketValue, "2100")
	assertDecimal(t, "AveragePriceChangePercent", s.AveragePriceChangePercent, "5")
	assertDecimal(t, "AverageReturnPercent", s.AverageReturnPercent, "10")
	assertDecimal(t, "PortfolioReturnPercent", s.PortfolioReturnPercent, "10")
}

func TestEvaluatorPortfolioOrdersByPosition(t *testing.T) {
	e := Evaluator{
		Quotes: map[string]decimal.Decimal{"PETR4": d("40"), "VALE3": d("60")},
		AsOf:   day(2024, 12, 31),
	}
	results, summary := e.Portfolio([]domain.Asset{
		{Ticker: "vale3", EntryPrice: d("60"), EntryDate: day(2024, 1, 1), Position: 2},
		{Ticker: "PETR4", EntryPrice: d("20"), EntryDate: day(2024, 1, 1), Position: 1},
	})
	if len(results) != 2 || results[0].Ticker != "PETR4" {
		t.Fatalf("unexpected order: %+v", results)
	}
	assertDecimal(t, "PETR4 change", results[0].PriceChangePercent, "100")
	assertDecimal(t, "PETR4 weight", results[0].WeightPercent, "40")
	assertDecimal(t, "VALE3 weight", results[1].WeightPercent, "60")
	assertDecimal(t, "average change", summary.AveragePriceChangePercent, "50")
}
