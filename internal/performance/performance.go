// Package performance reconciles entry prices, corporate events and provento
// payouts into position and portfolio returns.
package performance

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// PriceChangePercent returns (current-entry)/entry*100, or zero when entry is zero.
func PriceChangePercent(entry, current decimal.Decimal) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	return current.Sub(entry).Div(entry).Mul(hundred)
}

// shareFactor is how many shares one share becomes after the event.
func shareFactor(ev domain.CorporateEvent) decimal.Decimal {
	if !ev.Factor.IsPositive() {
		return decimal.NewFromInt(1)
	}
	switch ev.Type {
	case domain.EventSplit:
		return ev.Factor
	case domain.EventReverseSplit:
		return decimal.NewFromInt(1).Div(ev.Factor)
	case domain.EventBonus:
		return decimal.NewFromInt(1).Add(ev.Factor)
	}
	return decimal.NewFromInt(1)
}

// cumulativeFactor multiplies the share factors of events dated after from and
// on or before until.
func cumulativeFactor(events []domain.CorporateEvent, from, until time.Time) decimal.Decimal {
	factor := decimal.NewFromInt(1)
	for _, ev := range events {
		if !ev.Date.After(from) || ev.Date.After(until) {
			continue
		}
		factor = factor.Mul(shareFactor(ev))
	}
	return factor
}

// AdjustForEvents restates an entry price and quantity in terms of the share
// count after every event dated after entryDate and on or before asOf.
func AdjustForEvents(entryPrice, quantity decimal.Decimal, entryDate, asOf time.Time, events []domain.CorporateEvent) (decimal.Decimal, decimal.Decimal) {
	factor := cumulativeFactor(events, entryDate, asOf)
	if factor.Equal(decimal.NewFromInt(1)) {
		return entryPrice, quantity
	}
	return entryPrice.DivRound(factor, 8), quantity.Mul(factor)
}

// DividendsSince sums the per-share value of proventos whose ex-date falls on
// or after from and on or before until. Values are not adjusted for events.
func DividendsSince(proventos []domain.Provento, from, until time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, p := range proventos {
		if p.ExDate.Before(from) || p.ExDate.After(until) {
			continue
		}
		total = total.Add(p.Value)
	}
	return total
}

// DividendIncome returns the cash a holder of quantity shares bought on
// entryDate received up to until, accounting for share count changes from
// events that happened before each ex-date.
func DividendIncome(proventos []domain.Provento, events []domain.CorporateEvent, entryDate, until time.Time, quantity decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range proventos {
		if p.ExDate.Before(entryDate) || p.ExDate.After(until) {
			continue
		}
		held := quantity.Mul(cumulativeFactor(events, entryDate, p.ExDate))
		total = total.Add(p.Value.Mul(held))
	}
	return total
}

// AssetResult is the performance of one position.
type AssetResult struct {
	AssetID            int64
	Ticker             string
	EntryDate          time.Time
	EntryPrice         decimal.Decimal
	AdjustedEntryPrice decimal.Decimal
	Quantity           decimal.Decimal
	AdjustedQuantity   decimal.Decimal
	CurrentPrice       decimal.Decimal
	HasQuote           bool
	Closed             bool
	Invested           decimal.Decimal
	MarketValue        decimal.Decimal
	Dividends          decimal.Decimal
	DividendsPerShare  decimal.Decimal
	PriceChangePercent decimal.Decimal
	TotalReturnPercent decimal.Decimal
	YieldOnCostPercent decimal.Decimal
	WeightPercent      decimal.Decimal
}

// Input bundles what is needed to evaluate a position.
type Input struct {
	Asset     domain.Asset
	Quote     decimal.NullDecimal
	Proventos []domain.Provento
	Events    []domain.CorporateEvent
	AsOf      time.Time
}

// Evaluate computes the performance of one position. Closed positions are
// valued at their exit price as of their exit date. Without a quote, the
// position is valued at cost and price-based figures stay zero.
func Evaluate(in Input) AssetResult {
	a := in.Asset
	qty := a.Quantity
	if !qty.IsPositive() {
		qty = decimal.NewFromInt(1)
	}

	until := in.AsOf
	current := in.Quote
	if a.Closed() {
		until = *a.ExitDate
		current = a.ExitPrice
	}

	events := filterEventsTicker(in.Events, a.Ticker)
	adjPrice, adjQty := AdjustForEvents(a.EntryPrice, qty, a.EntryDate, until, events)
	invested := a.EntryPrice.Mul(qty)
	dividends := DividendIncome(filterTicker(in.Proventos, a.Ticker), events, a.EntryDate, until, qty)

	res := AssetResult{
		AssetID:            a.ID,
		Ticker:             a.Ticker,
		EntryDate:          a.EntryDate,
		EntryPrice:         a.EntryPrice,
		AdjustedEntryPrice: adjPrice,
		Quantity:           qty,
		AdjustedQuantity:   adjQty,
		Closed:             a.Closed(),
		Invested:           invested,
		MarketValue:        invested,
		Dividends:          dividends,
	}
	if adjQty.IsPositive() {
		res.DividendsPerShare = dividends.DivRound(adjQty, 8)
	}
	if invested.IsPositive() {
		res.YieldOnCostPercent = dividends.Div(invested).Mul(hundred)
	}

	if current.Valid && current.Decimal.IsPositive() {
		res.HasQuote = true
		res.CurrentPrice = current.Decimal
		res.MarketValue = current.Decimal.Mul(adjQty)
		res.PriceChangePercent = PriceChangePercent(adjPrice, current.Decimal)
		if invested.IsPositive() {
			res.TotalReturnPercent = res.MarketValue.Add(dividends).Sub(invested).Div(invested).Mul(hundred)
		}
	} else if invested.IsPositive() {
		res.TotalReturnPercent = res.YieldOnCostPercent
	}

	return res
}

// Allocate fills WeightPercent with each position's share of the total market
// value. Closed positions carry no weight. When the total is zero every weight is zero.
func Allocate(results []AssetResult) {
	total := decimal.Zero
	for _, r := range results {
		if r.Closed {
			continue
		}
		total = total.Add(r.MarketValue)
	}
	for i := range results {
		results[i].WeightPercent = decimal.Zero
		if results[i].Closed || !total.IsPositive() {
			continue
		}
		results[i].WeightPercent = results[i].MarketValue.Div(total).Mul(hundred)
	}
}

// Summary aggregates a set of positions.
type Summary struct {
	Positions                 int
	OpenPositions             int
	TotalInvested             decimal.Decimal
	TotalMarketValue          decimal.Decimal
	TotalDividends            decimal.Decimal
	AveragePriceChangePercent decimal.Decimal
	AverageReturnPercent      decimal.Decimal
	PortfolioReturnPercent    decimal.Decimal
}

// Summarize reports equal-weighted averages (how curated carteiras are
// presented) alongside the value-weighted return of the whole set.
func Summarize(results []AssetResult) Summary {
	s := Summary{
		TotalInvested:    decimal.Zero,
		TotalMarketValue: decimal.Zero,
		TotalDividends:   decimal.Zero,
	}
	if len(results) == 0 {
		return s
	}

	sumChange := decimal.Zero
	sumReturn := decimal.Zero
	for _, r := range results {
		s.Positions++
		if !r.Closed {
			s.OpenPositions++
		}
		s.TotalInvested = s.TotalInvested.Add(r.Invested)
		s.TotalMarketValue = s.TotalMarketValue.Add(r.MarketValue)
		s.TotalDividends = s.TotalDividends.Add(r.Dividends)
		sumChange = sumChange.Add(r.PriceChangePercent)
		sumReturn = sumReturn.Add(r.TotalReturnPercent)
	}

	n := decimal.NewFromInt(int64(s.Positions))
	s.AveragePriceChangePercent = sumChange.Div(n)
	s.AverageReturnPercent = sumReturn.Div(n)
	if s.TotalInvested.IsPositive() {
		s.PortfolioReturnPercent = s.TotalMarketValue.Add(s.TotalDividends).Sub(s.TotalInvested).Div(s.TotalInvested).Mul(hundred)
	}
	return s
}

// Evaluator computes every asset of a portfolio in one go.
type Evaluator struct {
	Quotes    map[string]decimal.Decimal
	Proventos []domain.Provento
	Events    []domain.CorporateEvent
	AsOf      time.Time
}

// Portfolio evaluates the assets in their display order, allocates weights and summarizes.
func (e Evaluator) Portfolio(assets []domain.Asset) ([]AssetResult, Summary) {
	sorted := append([]domain.Asset(nil), assets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	results := make([]AssetResult, 0, len(sorted))
	for _, a := range sorted {
		var quote decimal.NullDecimal
		if q, ok := e.Quotes[strings.ToUpper(a.Ticker)]; ok {
			quote = decimal.NewNullDecimal(q)
		}
		results = append(results, Evaluate(Input{
			Asset:     a,
			Quote:     quote,
			Proventos: e.Proventos,
			Events:    e.Events,
			AsOf:      e.AsOf,
		}))
	}
	Allocate(results)
	return results, Summarize(results)
}

func filterTicker(proventos []domain.Provento, ticker string) []domain.Provento {
	var out []domain.Provento
	for _, p := range proventos {
		if strings.EqualFold(p.Ticker, ticker) {
			out = append(out, p)
		}
	}
	return out
}

func filterEventsTicker(events []domain.CorporateEvent, ticker string) []domain.CorporateEvent {
	var out []domain.CorporateEvent
	for _, ev := range events {
		if strings.EqualFold(ev.Ticker, ticker) {
			out = append(out, ev)
		}
	}
	return out
}
