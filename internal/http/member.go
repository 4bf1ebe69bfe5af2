package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/marketdata"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/service"
)

const maxQuoteTickers = 20

func (h *Handler) listPortfolios(c *gin.Context) {
	portfolios, err := h.svc.Portfolios.ListVisible(c.Request.Context(), mustUser(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]PortfolioResponse, len(portfolios))
	for i := range portfolios {
		resp[i] = portfolioToResponse(portfolios[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) viewPortfolio(c *gin.Context) {
	view, err := h.svc.Portfolios.View(c.Request.Context(), mustUser(c), c.Param("slug"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolioViewToResponse(view))
}

func (h *Handler) quotes(c *gin.Context) {
	if h.svc.Quotes == nil {
		h.respondError(c, service.ErrUnavailable)
		return
	}
	tickers := marketdata.NormalizeTickers(splitList(c.Query("tickers")))
	if len(tickers) == 0 {
		badRequest(c, "tickers is required")
		return
	}
	if len(tickers) > maxQuoteTickers {
		badRequest(c, "too many tickers")
		return
	}

	quotes, err := h.svc.Quotes.Quotes(c.Request.Context(), tickers)
	if err != nil {
		h.log.WithError(err).WithField("tickers", tickers).Warn("quote lookup failed")
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "market data unavailable"})
		return
	}

	resp := make([]marketdata.Quote, 0, len(quotes))
	var missing []string
	for _, t := range tickers {
		if q, ok := quotes[t]; ok {
			resp = append(resp, q)
		} else {
			missing = append(missing, t)
		}
	}
	c.JSON(http.StatusOK, gin.H{"quotes": resp, "missing": missing})
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type askQuestionRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Category string `json:"category"`
}

func (h *Handler) askQuestion(c *gin.Context) {
	var req askQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	q, err := h.svc.Questions.Ask(c.Request.Context(), mustUser(c).ID, req.Title, req.Content, req.Category)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, questionToResponse(*q))
}

func (h *Handler) myQuestions(c *gin.Context) {
	questions, err := h.svc.Questions.ListMine(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questionsToResponse(questions))
}

func (h *Handler) getQuestion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	q, err := h.svc.Questions.Get(c.Request.Context(), mustUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questionToResponse(*q))
}

func (h *Handler) listFAQ(c *gin.Context) {
	questions, err := h.svc.Questions.FAQ(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questionsToResponse(questions))
}

func (h *Handler) listNotifications(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}
	unreadOnly := c.Query("unread") == "true"

	items, unread, err := h.svc.Notifications.List(c.Request.Context(), mustUser(c).ID, unreadOnly, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]NotificationResponse, len(items))
	for i := range items {
		resp[i] = notificationToResponse(items[i])
	}
	c.JSON(http.StatusOK, gin.H{"notifications": resp, "unread": unread})
}

func (h *Handler) unreadCount(c *gin.Context) {
	n, err := h.svc.Notifications.UnreadCount(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *Handler) markRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Notifications.MarkRead(c.Request.Context(), mustUser(c).ID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) markAllRead(c *gin.Context) {
	n, err := h.svc.Notifications.MarkAllRead(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) deleteNotification(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Notifications.Delete(c.Request.Context(), mustUser(c).ID, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) listProventos(c *gin.Context) {
	filter := repository.ProventoFilter{
		Tickers: splitList(c.Query("tickers")),
		Type:    domain.ProventoType(strings.ToUpper(c.Query("type"))),
	}
	if t := c.Query("ticker"); t != "" {
		filter.Tickers = append(filter.Tickers, t)
	}
	var ok bool
	if filter.From, ok = queryDate(c, "from"); !ok {
		return
	}
	if filter.To, ok = queryDate(c, "to"); !ok {
		return
	}
	if filter.Limit, ok = queryInt(c, "limit", 0); !ok {
		return
	}

	proventos, err := h.svc.Proventos.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]ProventoResponse, len(proventos))
	for i := range proventos {
		resp[i] = proventoToResponse(proventos[i])
	}
	c.JSON(http.StatusOK, resp)
}

func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := service.ParseDate(raw)
	if err != nil {
		badRequest(c, "invalid "+name)
		return nil, false
	}
	return &d, true
}

func (h *Handler) listPublishedReports(c *gin.Context) {
	reports, err := h.svc.Reports.ListPublished(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reportsToResponse(reports))
}

func (h *Handler) getPublishedReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rep, err := h.svc.Reports.Get(c.Request.Context(), id, false)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reportToResponse(*rep, true))
}

func (h *Handler) publishedReportPDF(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	url, err := h.svc.Reports.PDFURL(c.Request.Context(), id, false)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) listPublishedAnalyses(c *gin.Context) {
	analyses, err := h.svc.Analyses.List(c.Request.Context(), repository.AnalysisFilter{
		Ticker: c.Query("ticker"),
		Status: domain.AnalysisStatusPublished,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysesToResponse(analyses))
}

func (h *Handler) getPublishedAnalysis(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.Analyses.Get(c.Request.Context(), id, false)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysisToResponse(*a))
}

func (h *Handler) publishedAnalysisPDF(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	url, err := h.svc.Analyses.PDFURL(c.Request.Context(), id, false)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
