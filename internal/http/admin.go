package http

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/service"
)

const (
	maxPDFSize = 20 << 20
	maxCSVSize = 5 << 20
)

// optionalDate parses a nullable date field; empty strings mean "not set".
func optionalDate(c *gin.Context, field string, raw *string) (*time.Time, bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, true
	}
	d, err := service.ParseDate(*raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + field, "field": field})
		return nil, false
	}
	return &d, true
}

func requiredDate(c *gin.Context, field, raw string) (time.Time, bool) {
	d, ok := optionalDate(c, field, &raw)
	if !ok {
		return time.Time{}, false
	}
	if d == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": field + " is required", "field": field})
		return time.Time{}, false
	}
	return *d, true
}

// --- users ---

func (h *Handler) adminListUsers(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	users, total, err := h.svc.Users.List(c.Request.Context(), repository.UserFilter{
		Plan:   domain.Plan(strings.ToUpper(c.Query("plan"))),
		Status: domain.UserStatus(strings.ToUpper(c.Query("status"))),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i], nil)
	}
	c.JSON(http.StatusOK, gin.H{"users": resp, "total": total})
}

type createUserRequest struct {
	Email             string   `json:"email" binding:"required"`
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	Password          string   `json:"password"`
	Plan              string   `json:"plan"`
	Status            string   `json:"status"`
	CustomPermissions []string `json:"custom_permissions"`
	ExpirationDate    *string  `json:"expiration_date"`
}

func (h *Handler) adminCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	expiration, ok := optionalDate(c, "expiration_date", req.ExpirationDate)
	if !ok {
		return
	}

	user, temporary, err := h.svc.Users.Create(c.Request.Context(), service.CreateUserInput{
		Email:             req.Email,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Password:          req.Password,
		Plan:              domain.Plan(strings.ToUpper(req.Plan)),
		Status:            domain.UserStatus(strings.ToUpper(req.Status)),
		CustomPermissions: req.CustomPermissions,
		ExpirationDate:    expiration,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{"user": userToResponse(*user, nil)}
	if temporary != "" {
		resp["temporary_password"] = temporary
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) adminGetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	profile, err := h.svc.Users.Profile(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*profile.User, profile.Pages))
}

type updateUserRequest struct {
	Email             *string   `json:"email"`
	FirstName         *string   `json:"first_name"`
	LastName          *string   `json:"last_name"`
	Plan              *string   `json:"plan"`
	Status            *string   `json:"status"`
	CustomPermissions *[]string `json:"custom_permissions"`
	ExpirationDate    *string   `json:"expiration_date"`
	ClearExpiration   bool      `json:"clear_expiration"`
}

func (h *Handler) adminUpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	expiration, ok := optionalDate(c, "expiration_date", req.ExpirationDate)
	if !ok {
		return
	}

	in := service.UpdateUserInput{
		Email:             req.Email,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		CustomPermissions: req.CustomPermissions,
		ExpirationDate:    expiration,
		ClearExpiration:   req.ClearExpiration,
	}
	if req.Plan != nil {
		plan := domain.Plan(strings.ToUpper(*req.Plan))
		in.Plan = &plan
	}
	if req.Status != nil {
		status := domain.UserStatus(strings.ToUpper(*req.Status))
		in.Status = &status
	}

	user, err := h.svc.Users.Update(c.Request.Context(), id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user, h.catalog.Resolve(user, time.Now())))
}

func (h *Handler) adminDeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if id == mustUser(c).ID {
		badRequest(c, "you cannot delete your own account")
		return
	}
	if err := h.svc.Users.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) adminResetPassword(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	temporary, err := h.svc.Users.ResetPassword(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"temporary_password": temporary})
}

type pagesRequest struct {
	Pages []string `json:"pages" binding:"required"`
}

func (h *Handler) adminGrant(c *gin.Context) {
	h.changePermissions(c, h.svc.Users.Grant)
}

func (h *Handler) adminRevoke(c *gin.Context) {
	h.changePermissions(c, h.svc.Users.Revoke)
}

func (h *Handler) changePermissions(c *gin.Context, apply func(ctx context.Context, id int64, pages []string) (*domain.User, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req pagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := apply(c.Request.Context(), id, req.Pages)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user, h.catalog.Resolve(user, time.Now())))
}

func (h *Handler) adminUserPurchases(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	purchases, err := h.svc.Purchases.ListByUser(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]PurchaseResponse, len(purchases))
	for i := range purchases {
		resp[i] = purchaseToResponse(purchases[i])
	}
	c.JSON(http.StatusOK, resp)
}

// --- portfolios ---

type portfolioRequest struct {
	Slug        string `json:"slug" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Page        string `json:"page" binding:"required"`
}

func (r portfolioRequest) input() service.PortfolioInput {
	return service.PortfolioInput{Slug: r.Slug, Name: r.Name, Description: r.Description, Page: r.Page}
}

func (h *Handler) adminListPortfolios(c *gin.Context) {
	portfolios, err := h.svc.Portfolios.List(c.Request.Context())
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

func (h *Handler) adminCreatePortfolio(c *gin.Context) {
	var req portfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.svc.Portfolios.Create(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, portfolioToResponse(*p))
}

func (h *Handler) adminGetPortfolio(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Portfolios.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolioToResponse(*p))
}

func (h *Handler) adminUpdatePortfolio(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req portfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.svc.Portfolios.Update(c.Request.Context(), id, req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, portfolioToResponse(*p))
}

func (h *Handler) adminDeletePortfolio(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Portfolios.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

type assetRequest struct {
	Ticker      string              `json:"ticker" binding:"required"`
	Name        string              `json:"name"`
	Sector      string              `json:"sector"`
	EntryDate   string              `json:"entry_date"`
	EntryPrice  decimal.Decimal     `json:"entry_price"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	TargetPrice decimal.NullDecimal `json:"target_price"`
	Bias        string              `json:"bias"`
	ExitDate    *string             `json:"exit_date"`
	ExitPrice   decimal.NullDecimal `json:"exit_price"`
	Position    int                 `json:"position"`
}

func bindAsset(c *gin.Context) (service.AssetInput, bool) {
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return service.AssetInput{}, false
	}
	entry, ok := requiredDate(c, "entry_date", req.EntryDate)
	if !ok {
		return service.AssetInput{}, false
	}
	exit, ok := optionalDate(c, "exit_date", req.ExitDate)
	if !ok {
		return service.AssetInput{}, false
	}
	return service.AssetInput{
		Ticker:      req.Ticker,
		Name:        req.Name,
		Sector:      req.Sector,
		EntryDate:   entry,
		EntryPrice:  req.EntryPrice,
		Quantity:    req.Quantity,
		TargetPrice: req.TargetPrice,
		Bias:        domain.Bias(strings.ToUpper(req.Bias)),
		ExitDate:    exit,
		ExitPrice:   req.ExitPrice,
		Position:    req.Position,
	}, true
}

func (h *Handler) adminAddAsset(c *gin.Context) {
	portfolioID, ok := parseID(c, "id")
	if !ok {
		return
	}
	in, ok := bindAsset(c)
	if !ok {
		return
	}
	a, err := h.svc.Portfolios.AddAsset(c.Request.Context(), portfolioID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, assetToResponse(*a))
}

func (h *Handler) adminUpdateAsset(c *gin.Context) {
	portfolioID, ok := parseID(c, "id")
	if !ok {
		return
	}
	assetID, ok := parseID(c, "assetId")
	if !ok {
		return
	}
	in, ok := bindAsset(c)
	if !ok {
		return
	}
	a, err := h.svc.Portfolios.UpdateAsset(c.Request.Context(), portfolioID, assetID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assetToResponse(*a))
}

func (h *Handler) adminRemoveAsset(c *gin.Context) {
	portfolioID, ok := parseID(c, "id")
	if !ok {
		return
	}
	assetID, ok := parseID(c, "assetId")
	if !ok {
		return
	}
	if err := h.svc.Portfolios.RemoveAsset(c.Request.Context(), portfolioID, assetID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": assetID})
}

type eventRequest struct {
	Ticker string          `json:"ticker" binding:"required"`
	Type   string          `json:"type" binding:"required"`
	Date   string          `json:"date" binding:"required"`
	Factor decimal.Decimal `json:"factor"`
}

func (h *Handler) adminListEvents(c *gin.Context) {
	events, err := h.svc.Portfolios.ListEvents(c.Request.Context(), c.Query("ticker"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]CorporateEventResponse, len(events))
	for i := range events {
		resp[i] = eventToResponse(events[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) adminAddEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	date, ok := requiredDate(c, "date", req.Date)
	if !ok {
		return
	}
	ev, err := h.svc.Portfolios.AddEvent(c.Request.Context(), service.EventInput{
		Ticker: req.Ticker,
		Type:   domain.CorporateEventType(strings.ToUpper(req.Type)),
		Date:   date,
		Factor: req.Factor,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, eventToResponse(*ev))
}

func (h *Handler) adminDeleteEvent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Portfolios.DeleteEvent(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// --- proventos ---

type proventoRequest struct {
	Ticker      string          `json:"ticker" binding:"required"`
	Type        string          `json:"type"`
	Value       decimal.Decimal `json:"value"`
	ExDate      string          `json:"ex_date"`
	PaymentDate *string         `json:"payment_date"`
	Description string          `json:"description"`
}

func (h *Handler) adminCreateProvento(c *gin.Context) {
	var req proventoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	exDate, ok := requiredDate(c, "ex_date", req.ExDate)
	if !ok {
		return
	}
	payment, ok := optionalDate(c, "payment_date", req.PaymentDate)
	if !ok {
		return
	}
	typ, err := service.ParseProventoType(req.Type)
	if err != nil {
		h.respondError(c, err)
		return
	}

	p, inserted, err := h.svc.Proventos.Create(c.Request.Context(), service.ProventoInput{
		Ticker:      req.Ticker,
		Type:        typ,
		Value:       req.Value,
		ExDate:      exDate,
		PaymentDate: payment,
		Description: req.Description,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !inserted {
		c.JSON(http.StatusOK, gin.H{"duplicate": true, "provento": proventoToResponse(*p)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"duplicate": false, "provento": proventoToResponse(*p)})
}

func (h *Handler) adminImportProventos(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if fh.Size > maxCSVSize {
		badRequest(c, "file is too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.respondError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	result, err := h.svc.Proventos.Import(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) adminDeleteProvento(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Proventos.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// --- reports ---

func (h *Handler) adminListReports(c *gin.Context) {
	reports, err := h.svc.Reports.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reportsToResponse(reports))
}

// adminUploadReport takes a multipart form with title, report_date, text and an optional PDF in file.
func (h *Handler) adminUploadReport(c *gin.Context) {
	reportDate, ok := optionalDate(c, "report_date", stringPtr(c.PostForm("report_date")))
	if !ok {
		return
	}
	in := service.ReportUpload{
		Title: c.PostForm("title"),
		Text:  c.PostForm("text"),
	}
	if reportDate != nil {
		in.ReportDate = *reportDate
	}

	if fh, err := c.FormFile("file"); err == nil {
		if !isPDF(fh.Filename) || fh.Size > maxPDFSize {
			badRequest(c, "file must be a PDF up to 20MB")
			return
		}
		f, err := fh.Open()
		if err != nil {
			h.respondError(c, fmt.Errorf("open upload: %w", err))
			return
		}
		defer f.Close()
		in.FileName = fh.Filename
		in.PDF = f
	}

	rep, err := h.svc.Reports.Upload(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, reportToResponse(*rep, true))
}

func (h *Handler) adminGetReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rep, err := h.svc.Reports.Get(c.Request.Context(), id, true)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reportToResponse(*rep, true))
}

func (h *Handler) adminRegenerateReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rep, err := h.svc.Reports.Regenerate(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, reportToResponse(*rep, false))
}

func (h *Handler) adminPublishReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rep, err := h.svc.Reports.Publish(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reportToResponse(*rep, true))
}

func (h *Handler) adminDeleteReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Reports.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// --- analyses ---

type analysisRequest struct {
	Ticker         string              `json:"ticker" binding:"required"`
	Quarter        string              `json:"quarter" binding:"required"`
	Title          string              `json:"title" binding:"required"`
	Summary        string              `json:"summary"`
	Content        string              `json:"content"`
	Recommendation string              `json:"recommendation"`
	TargetPrice    decimal.NullDecimal `json:"target_price"`
}

func (r analysisRequest) input() service.AnalysisInput {
	return service.AnalysisInput{
		Ticker:         r.Ticker,
		Quarter:        r.Quarter,
		Title:          r.Title,
		Summary:        r.Summary,
		Content:        r.Content,
		Recommendation: domain.Bias(strings.ToUpper(r.Recommendation)),
		TargetPrice:    r.TargetPrice,
	}
}

func (h *Handler) adminListAnalyses(c *gin.Context) {
	analyses, err := h.svc.Analyses.List(c.Request.Context(), repository.AnalysisFilter{
		Ticker: c.Query("ticker"),
		Status: domain.AnalysisStatus(strings.ToUpper(c.Query("status"))),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysesToResponse(analyses))
}

func (h *Handler) adminCreateAnalysis(c *gin.Context) {
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.svc.Analyses.Create(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, analysisToResponse(*a))
}

func (h *Handler) adminGetAnalysis(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.Analyses.Get(c.Request.Context(), id, true)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysisToResponse(*a))
}

func (h *Handler) adminUpdateAnalysis(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req analysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.svc.Analyses.Update(c.Request.Context(), id, req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysisToResponse(*a))
}

func (h *Handler) adminPublishAnalysis(c *gin.Context) {
	h.setAnalysisPublished(c, true)
}

func (h *Handler) adminUnpublishAnalysis(c *gin.Context) {
	h.setAnalysisPublished(c, false)
}

func (h *Handler) setAnalysisPublished(c *gin.Context, published bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.Analyses.SetPublished(c.Request.Context(), id, published)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysisToResponse(*a))
}

func (h *Handler) adminAttachAnalysisPDF(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if !isPDF(fh.Filename) || fh.Size > maxPDFSize {
		badRequest(c, "file must be a PDF up to 20MB")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.respondError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	a, err := h.svc.Analyses.AttachPDF(c.Request.Context(), id, fh.Filename, f)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysisToResponse(*a))
}

func (h *Handler) adminDeleteAnalysis(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Analyses.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

func stringPtr(s string) *string {
	return &s
}

// --- questions ---

func (h *Handler) adminListQuestions(c *gin.Context) {
	var userID int64
	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "invalid user_id")
			return
		}
		userID = id
	}
	questions, err := h.svc.Questions.List(c.Request.Context(), repository.QuestionFilter{
		UserID:   userID,
		Status:   domain.QuestionStatus(strings.ToUpper(c.Query("status"))),
		Category: strings.ToUpper(c.Query("category")),
		FAQOnly:  c.Query("faq") == "true",
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questionsToResponse(questions))
}

type answerRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) adminAnswerQuestion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	a, err := h.svc.Questions.Answer(c.Request.Context(), mustUser(c).ID, id, req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, AnswerResponse{
		ID:        a.ID,
		AuthorID:  a.AuthorID,
		Content:   a.Content,
		CreatedAt: formatTime(a.CreatedAt),
	})
}

func (h *Handler) adminCloseQuestion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Questions.Close(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": id})
}

type faqRequest struct {
	IsFAQ bool   `json:"is_faq"`
	Order int    `json:"order"`
	Title string `json:"title"`
}

func (h *Handler) adminSetFAQ(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req faqRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.Questions.SetFAQ(c.Request.Context(), id, req.IsFAQ, req.Order, req.Title); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_faq": req.IsFAQ})
}

func (h *Handler) adminDeleteQuestion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Questions.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// --- notifications ---

type notificationRequest struct {
	UserID    int64  `json:"user_id"`
	Plan      string `json:"plan"`
	Title     string `json:"title" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Type      string `json:"type"`
	Category  string `json:"category"`
	ActionURL string `json:"action_url"`
}

func (r notificationRequest) input() service.NotificationInput {
	return service.NotificationInput{
		Title:     r.Title,
		Message:   r.Message,
		Type:      domain.NotificationType(strings.ToUpper(r.Type)),
		Category:  r.Category,
		ActionURL: r.ActionURL,
	}
}

func (h *Handler) adminSendNotification(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.UserID <= 0 {
		badRequest(c, "user_id is required")
		return
	}
	n, err := h.svc.Notifications.Send(c.Request.Context(), req.UserID, req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, notificationToResponse(*n))
}

func (h *Handler) adminBroadcast(c *gin.Context) {
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	sent, err := h.svc.Notifications.Broadcast(c.Request.Context(), req.input(), domain.Plan(strings.ToUpper(req.Plan)))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}
