package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/marketdata"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/permissions"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/service"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/storage"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Users         service.UserService
	Purchases     service.PurchaseService
	Questions     service.QuestionService
	Notifications service.NotificationService
	Portfolios    service.PortfolioService
	Proventos     service.ProventoService
	Reports       service.ReportService
	Analyses      service.AnalysisService
	Quotes        marketdata.Provider
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	svc     Services
	auth    Authorizer
	catalog *permissions.Catalog
	storage storage.Service
	log     logrus.FieldLogger
	origins map[string]bool
}

func NewHandler(svc Services, auth Authorizer, catalog *permissions.Catalog, store storage.Service, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		svc:     svc,
		auth:    auth,
		catalog: catalog,
		storage: store,
		log:     log,
	}
}

// AllowOrigins sets the browser origins that may send credentialed requests.
func (h *Handler) AllowOrigins(origins ...string) *Handler {
	h.origins = make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			h.origins[o] = true
		}
	}
	return h
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(h.origins))
	router.Use(accessLog(h.log))

	api := router.Group("/api")
	api.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
	api.POST("/webhooks/hotmart", h.hotmartWebhook)
	api.GET("/faq", h.listFAQ)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", h.login)
		authGroup.POST("/logout", h.logout)
		authGroup.POST("/change-password", h.auth.RequireAuth(), h.changePassword)
	}

	member := api.Group("", h.auth.RequireAuth())
	{
		member.GET("/me", h.me)
		member.GET("/me/purchases", h.myPurchases)

		member.GET("/portfolios", h.listPortfolios)
		member.GET("/portfolios/:slug", h.viewPortfolio)
		member.GET("/market/quotes", h.quotes)

		member.GET("/questions", h.myQuestions)
		member.POST("/questions", h.askQuestion)
		member.GET("/questions/:id", h.getQuestion)

		member.GET("/notifications", h.listNotifications)
		member.GET("/notifications/unread-count", h.unreadCount)
		member.POST("/notifications/read-all", h.markAllRead)
		member.POST("/notifications/:id/read", h.markRead)
		member.DELETE("/notifications/:id", h.deleteNotification)
	}

	proventos := api.Group("/proventos", h.auth.RequirePage(pageProventos))
	{
		proventos.GET("", h.listProventos)
	}

	reports := api.Group("/reports", h.auth.RequirePage(pageReports))
	{
		reports.GET("", h.listPublishedReports)
		reports.GET("/:id", h.getPublishedReport)
		reports.GET("/:id/pdf", h.publishedReportPDF)
	}

	analyses := api.Group("/analyses", h.auth.RequirePage(pageAnalyses))
	{
		analyses.GET("", h.listPublishedAnalyses)
		analyses.GET("/:id", h.getPublishedAnalysis)
		analyses.GET("/:id/pdf", h.publishedAnalysisPDF)
	}

	admin := api.Group("/admin", h.auth.RequireAdmin())
	{
		admin.GET("/pages", h.listPages)

		admin.GET("/users", h.adminListUsers)
		admin.POST("/users", h.adminCreateUser)
		admin.GET("/users/:id", h.adminGetUser)
		admin.PATCH("/users/:id", h.adminUpdateUser)
		admin.DELETE("/users/:id", h.adminDeleteUser)
		admin.POST("/users/:id/reset-password", h.adminResetPassword)
		admin.POST("/users/:id/permissions", h.adminGrant)
		admin.DELETE("/users/:id/permissions", h.adminRevoke)
		admin.GET("/users/:id/purchases", h.adminUserPurchases)

		admin.GET("/portfolios", h.adminListPortfolios)
		admin.POST("/portfolios", h.adminCreatePortfolio)
		admin.GET("/portfolios/:id", h.adminGetPortfolio)
		admin.PUT("/portfolios/:id", h.adminUpdatePortfolio)
		admin.DELETE("/portfolios/:id", h.adminDeletePortfolio)
		admin.POST("/portfolios/:id/assets", h.adminAddAsset)
		admin.PUT("/portfolios/:id/assets/:assetId", h.adminUpdateAsset)
		admin.DELETE("/portfolios/:id/assets/:assetId", h.adminRemoveAsset)

		admin.GET("/events", h.adminListEvents)
		admin.POST("/events", h.adminAddEvent)
		admin.DELETE("/events/:id", h.adminDeleteEvent)

		admin.POST("/proventos", h.adminCreateProvento)
		admin.POST("/proventos/import", h.adminImportProventos)
		admin.DELETE("/proventos/:id", h.adminDeleteProvento)

		admin.GET("/reports", h.adminListReports)
		admin.POST("/reports", h.adminUploadReport)
		admin.GET("/reports/:id", h.adminGetReport)
		admin.POST("/reports/:id/regenerate", h.adminRegenerateReport)
		admin.POST("/reports/:id/publish", h.adminPublishReport)
		admin.DELETE("/reports/:id", h.adminDeleteReport)

		admin.GET("/analyses", h.adminListAnalyses)
		admin.POST("/analyses", h.adminCreateAnalysis)
		admin.GET("/analyses/:id", h.adminGetAnalysis)
		admin.PUT("/analyses/:id", h.adminUpdateAnalysis)
		admin.POST("/analyses/:id/publish", h.adminPublishAnalysis)
		admin.POST("/analyses/:id/unpublish", h.adminUnpublishAnalysis)
		admin.POST("/analyses/:id/pdf", h.adminAttachAnalysisPDF)
		admin.DELETE("/analyses/:id", h.adminDeleteAnalysis)

		admin.GET("/questions", h.adminListQuestions)
		admin.POST("/questions/:id/answers", h.adminAnswerQuestion)
		admin.POST("/questions/:id/close", h.adminCloseQuestion)
		admin.PUT("/questions/:id/faq", h.adminSetFAQ)
		admin.DELETE("/questions/:id", h.adminDeleteQuestion)

		admin.POST("/notifications", h.adminSendNotification)
		admin.POST("/notifications/broadcast", h.adminBroadcast)

		admin.GET("/storage/objects", h.adminListObjects)
	}
}

// Pages that gate whole route groups.
const (
	pageProventos = "central-proventos"
	pageReports   = "relatorio-semanal"
	pageAnalyses  = "analises-trimestrais"
)

// corsMiddleware echoes allow-listed origins with credentials and answers
// every other origin with the wildcard.
func corsMiddleware(allowed map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Add("Vary", "Origin")
		if origin := c.GetHeader("Origin"); origin != "" && allowed[origin] {
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
		} else {
			header.Set("Access-Control-Allow-Origin", "*")
		}
		header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Hotmart-Hottok")
		header.Set("Access-Control-Expose-Headers", "Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func accessLog(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}

// respondError maps service and repository errors to status codes. Unexpected
// errors are logged and reported without details.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidWebhookToken):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrAccountInactive):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrUnavailable), errors.Is(err, storage.ErrDisabled):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": err.Error()}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func (h *Handler) listPages(c *gin.Context) {
	plans := make(map[string][]string)
	for _, plan := range domain.Plans {
		plans[string(plan)] = h.catalog.PlanPages(plan)
	}
	c.JSON(http.StatusOK, gin.H{"pages": h.catalog.Pages(), "plans": plans})
}

func (h *Handler) adminListObjects(c *gin.Context) {
	if h.storage == nil {
		h.respondError(c, service.ErrUnavailable)
		return
	}

	objects, err := h.storage.ListObjects(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}
