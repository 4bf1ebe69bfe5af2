package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/marketdata"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/performance"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/service"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/storage"
)

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func formatDatePtr(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC().Format(dateLayout)
	return &v
}

func nullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

type UserResponse struct {
	ID                 int64    `json:"id"`
	Email              string   `json:"email"`
	FirstName          string   `json:"first_name"`
	LastName           string   `json:"last_name"`
	Plan               string   `json:"plan"`
	Status             string   `json:"status"`
	CustomPermissions  []string `json:"custom_permissions"`
	Pages              []string `json:"pages,omitempty"`
	ExpirationDate     *string  `json:"expiration_date,omitempty"`
	MustChangePassword bool     `json:"must_change_password"`
	LastLogin          *string  `json:"last_login,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

func userToResponse(u domain.User, pages []string) UserResponse {
	resp := UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Plan:               string(u.Plan),
		Status:             string(u.Status),
		CustomPermissions:  u.CustomPermissions,
		Pages:              pages,
		ExpirationDate:     formatTimePtr(u.ExpirationDate),
		MustChangePassword: u.MustChangePassword,
		LastLogin:          formatTimePtr(u.LastLogin),
		CreatedAt:          formatTime(u.CreatedAt),
		UpdatedAt:          formatTime(u.UpdatedAt),
	}
	if resp.CustomPermissions == nil {
		resp.CustomPermissions = []string{}
	}
	return resp
}

type PurchaseResponse struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Transaction string          `json:"transaction"`
	LastEvent   string          `json:"last_event"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Plan        string          `json:"plan"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	PurchasedAt string          `json:"purchased_at"`
}

func purchaseToResponse(p domain.Purchase) PurchaseResponse {
	return PurchaseResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		Transaction: p.Transaction,
		LastEvent:   p.LastEvent,
		ProductID:   p.ProductID,
		ProductName: p.ProductName,
		Plan:        string(p.Plan),
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      string(p.Status),
		PurchasedAt: formatTime(p.PurchasedAt),
	}
}

type AnswerResponse struct {
	ID        int64  `json:"id"`
	AuthorID  int64  `json:"author_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type QuestionResponse struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Category  string           `json:"category"`
	Status    string           `json:"status"`
	IsFAQ     bool             `json:"is_faq"`
	FAQOrder  int              `json:"faq_order,omitempty"`
	FAQTitle  string           `json:"faq_title,omitempty"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
	Answers   []AnswerResponse `json:"answers"`
}

func questionToResponse(q domain.Question) QuestionResponse {
	resp := QuestionResponse{
		ID:        q.ID,
		UserID:    q.UserID,
		Title:     q.Title,
		Content:   q.Content,
		Category:  q.Category,
		Status:    string(q.Status),
		IsFAQ:     q.IsFAQ,
		FAQOrder:  q.FAQOrder,
		FAQTitle:  q.FAQTitle,
		CreatedAt: formatTime(q.CreatedAt),
		UpdatedAt: formatTime(q.UpdatedAt),
		Answers:   make([]AnswerResponse, len(q.Answers)),
	}
	for i, a := range q.Answers {
		resp.Answers[i] = AnswerResponse{
			ID:        a.ID,
			AuthorID:  a.AuthorID,
			Content:   a.Content,
			CreatedAt: formatTime(a.CreatedAt),
		}
	}
	return resp
}

func questionsToResponse(qs []domain.Question) []QuestionResponse {
	resp := make([]QuestionResponse, len(qs))
	for i := range qs {
		resp[i] = questionToResponse(qs[i])
	}
	return resp
}

type NotificationResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Category  string `json:"category,omitempty"`
	ActionURL string `json:"action_url,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func notificationToResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		Category:  n.Category,
		ActionURL: n.ActionURL,
		Read:      n.Read,
		CreatedAt: formatTime(n.CreatedAt),
	}
}

type AssetResponse struct {
	ID          int64            `json:"id"`
	Ticker      string           `json:"ticker"`
	Name        string           `json:"name"`
	Sector      string           `json:"sector"`
	EntryDate   string           `json:"entry_date"`
	EntryPrice  decimal.Decimal  `json:"entry_price"`
	Quantity    decimal.Decimal  `json:"quantity"`
	TargetPrice *decimal.Decimal `json:"target_price,omitempty"`
	Bias        string           `json:"bias"`
	ExitDate    *string          `json:"exit_date,omitempty"`
	ExitPrice   *decimal.Decimal `json:"exit_price,omitempty"`
	Position    int              `json:"position"`
}

func assetToResponse(a domain.Asset) AssetResponse {
	return AssetResponse{
		ID:          a.ID,
		Ticker:      a.Ticker,
		Name:        a.Name,
		Sector:      a.Sector,
		EntryDate:   a.EntryDate.UTC().Format(dateLayout),
		EntryPrice:  a.EntryPrice,
		Quantity:    a.Quantity,
		TargetPrice: nullDecimal(a.TargetPrice),
		Bias:        string(a.Bias),
		ExitDate:    formatDatePtr(a.ExitDate),
		ExitPrice:   nullDecimal(a.ExitPrice),
		Position:    a.Position,
	}
}

type PortfolioResponse struct {
	ID          int64           `json:"id"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Page        string          `json:"page"`
	Assets      []AssetResponse `json:"assets,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

func portfolioToResponse(p domain.Portfolio) PortfolioResponse {
	resp := PortfolioResponse{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Page:        p.Page,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
	if p.Assets != nil {
		resp.Assets = make([]AssetResponse, len(p.Assets))
		for i := range p.Assets {
			resp.Assets[i] = assetToResponse(p.Assets[i])
		}
	}
	return resp
}

type PositionResponse struct {
	Asset              AssetResponse     `json:"asset"`
	Quote              *marketdata.Quote `json:"quote,omitempty"`
	AdjustedEntryPrice decimal.Decimal   `json:"adjusted_entry_price"`
	AdjustedQuantity   decimal.Decimal   `json:"adjusted_quantity"`
	CurrentPrice       decimal.Decimal   `json:"current_price"`
	HasQuote           bool              `json:"has_quote"`
	Closed             bool              `json:"closed"`
	Invested           decimal.Decimal   `json:"invested"`
	MarketValue        decimal.Decimal   `json:"market_value"`
	Dividends          decimal.Decimal   `json:"dividends"`
	DividendsPerShare  decimal.Decimal   `json:"dividends_per_share"`
	PriceChangePercent decimal.Decimal   `json:"price_change_percent"`
	TotalReturnPercent decimal.Decimal   `json:"total_return_percent"`
	YieldOnCostPercent decimal.Decimal   `json:"yield_on_cost_percent"`
	WeightPercent      decimal.Decimal   `json:"weight_percent"`
}

type SummaryResponse struct {
	Positions                 int             `json:"positions"`
	OpenPositions             int             `json:"open_positions"`
	TotalInvested             decimal.Decimal `json:"total_invested"`
	TotalMarketValue          decimal.Decimal `json:"total_market_value"`
	TotalDividends            decimal.Decimal `json:"total_dividends"`
	AveragePriceChangePercent decimal.Decimal `json:"average_price_change_percent"`
	AverageReturnPercent      decimal.Decimal `json:"average_return_percent"`
	PortfolioReturnPercent    decimal.Decimal `json:"portfolio_return_percent"`
}

type PortfolioViewResponse struct {
	Portfolio PortfolioResponse  `json:"portfolio"`
	Positions []PositionResponse `json:"positions"`
	Summary   SummaryResponse    `json:"summary"`
	AsOf      string             `json:"as_of"`
}

func summaryToResponse(s performance.Summary) SummaryResponse {
	return SummaryResponse{
		Positions:                 s.Positions,
		OpenPositions:             s.OpenPositions,
		TotalInvested:             round2(s.TotalInvested),
		TotalMarketValue:          round2(s.TotalMarketValue),
		TotalDividends:            round2(s.TotalDividends),
		AveragePriceChangePercent: round2(s.AveragePriceChangePercent),
		AverageReturnPercent:      round2(s.AverageReturnPercent),
		PortfolioReturnPercent:    round2(s.PortfolioReturnPercent),
	}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func portfolioViewToResponse(v *service.PortfolioView) PortfolioViewResponse {
	byID := make(map[int64]domain.Asset, len(v.Portfolio.Assets))
	for _, a := range v.Portfolio.Assets {
		byID[a.ID] = a
	}

	p := *v.Portfolio
	p.Assets = nil
	resp := PortfolioViewResponse{
		Portfolio: portfolioToResponse(p),
		Positions: make([]PositionResponse, len(v.Results)),
		Summary:   summaryToResponse(v.Summary),
		AsOf:      formatTime(v.AsOf),
	}
	for i, r := range v.Results {
		pos := PositionResponse{
			Asset:              assetToResponse(byID[r.AssetID]),
			AdjustedEntryPrice: r.AdjustedEntryPrice.Round(4),
			AdjustedQuantity:   r.AdjustedQuantity,
			CurrentPrice:       r.CurrentPrice,
			HasQuote:           r.HasQuote,
			Closed:             r.Closed,
			Invested:           round2(r.Invested),
			MarketValue:        round2(r.MarketValue),
			Dividends:          round2(r.Dividends),
			DividendsPerShare:  r.DividendsPerShare.Round(4),
			PriceChangePercent: round2(r.PriceChangePercent),
			TotalReturnPercent: round2(r.TotalReturnPercent),
			YieldOnCostPercent: round2(r.YieldOnCostPercent),
			WeightPercent:      round2(r.WeightPercent),
		}
		if q, ok := v.Quotes[r.Ticker]; ok {
			pos.Quote = &q
		}
		resp.Positions[i] = pos
	}
	return resp
}

type CorporateEventResponse struct {
	ID     int64           `json:"id"`
	Ticker string          `json:"ticker"`
	Type   string          `json:"type"`
	Date   string          `json:"date"`
	Factor decimal.Decimal `json:"factor"`
}

func eventToResponse(ev domain.CorporateEvent) CorporateEventResponse {
	return CorporateEventResponse{
		ID:     ev.ID,
		Ticker: ev.Ticker,
		Type:   string(ev.Type),
		Date:   ev.Date.UTC().Format(dateLayout),
		Factor: ev.Factor,
	}
}

type ProventoResponse struct {
	ID          int64           `json:"id"`
	Ticker      string          `json:"ticker"`
	Type        string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
	ExDate      string          `json:"ex_date"`
	PaymentDate *string         `json:"payment_date,omitempty"`
	Description string          `json:"description,omitempty"`
}

func proventoToResponse(p domain.Provento) ProventoResponse {
	return ProventoResponse{
		ID:          p.ID,
		Ticker:      p.Ticker,
		Type:        string(p.Type),
		Value:       p.Value,
		ExDate:      p.ExDate.UTC().Format(dateLayout),
		PaymentDate: formatDatePtr(p.PaymentDate),
		Description: p.Description,
	}
}

type ReportResponse struct {
	ID           int64                  `json:"id"`
	Title        string                 `json:"title"`
	ReportDate   string                 `json:"report_date"`
	Status       string                 `json:"status"`
	HasPDF       bool                   `json:"has_pdf"`
	Summary      string                 `json:"summary"`
	Sections     []domain.ReportSection `json:"sections,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	PublishedAt  *string                `json:"published_at,omitempty"`
	CreatedAt    string                 `json:"created_at"`
	UpdatedAt    string                 `json:"updated_at"`
}

// reportToResponse omits sections unless full is set, keeping listings small.
func reportToResponse(r domain.Report, full bool) ReportResponse {
	resp := ReportResponse{
		ID:           r.ID,
		Title:        r.Title,
		ReportDate:   r.ReportDate.UTC().Format(dateLayout),
		Status:       string(r.Status),
		HasPDF:       r.PDFKey != "",
		Summary:      r.Summary,
		ErrorMessage: r.ErrorMessage,
		PublishedAt:  formatTimePtr(r.PublishedAt),
		CreatedAt:    formatTime(r.CreatedAt),
		UpdatedAt:    formatTime(r.UpdatedAt),
	}
	if full {
		resp.Sections = r.Sections
	}
	return resp
}

func reportsToResponse(rs []domain.Report) []ReportResponse {
	resp := make([]ReportResponse, len(rs))
	for i := range rs {
		resp[i] = reportToResponse(rs[i], false)
	}
	return resp
}

type AnalysisResponse struct {
	ID             int64            `json:"id"`
	Ticker         string           `json:"ticker"`
	Quarter        string           `json:"quarter"`
	Title          string           `json:"title"`
	Summary        string           `json:"summary"`
	Content        string           `json:"content,omitempty"`
	Recommendation string           `json:"recommendation"`
	TargetPrice    *decimal.Decimal `json:"target_price,omitempty"`
	HasPDF         bool             `json:"has_pdf"`
	Status         string           `json:"status"`
	PublishedAt    *string          `json:"published_at,omitempty"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

func analysisToResponse(a domain.QuarterlyAnalysis) AnalysisResponse {
	return AnalysisResponse{
		ID:             a.ID,
		Ticker:         a.Ticker,
		Quarter:        a.Quarter,
		Title:          a.Title,
		Summary:        a.Summary,
		Content:        a.Content,
		Recommendation: string(a.Recommendation),
		TargetPrice:    nullDecimal(a.TargetPrice),
		HasPDF:         a.PDFKey != "",
		Status:         string(a.Status),
		PublishedAt:    formatTimePtr(a.PublishedAt),
		CreatedAt:      formatTime(a.CreatedAt),
		UpdatedAt:      formatTime(a.UpdatedAt),
	}
}

func analysesToResponse(as []domain.QuarterlyAnalysis) []AnalysisResponse {
	resp := make([]AnalysisResponse, len(as))
	for i := range as {
		resp[i] = analysisToResponse(as[i])
	}
	return resp
}

type StorageObjectResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func objectToResponse(obj storage.ObjectInfo) StorageObjectResponse {
	return StorageObjectResponse{
		Key:          obj.Key,
		Size:         obj.Size,
		LastModified: formatTimePtr(obj.LastModified),
	}
}
