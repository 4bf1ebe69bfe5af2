package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/permissions"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository/sqlite"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/service"
)

const testHottok = "hottok-test"

type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, int64) error { return nil }
func (noopQueue) Cancel(context.Context, int64) error { return nil }

const testOrigin = "https://membros.fatosdabolsa.com.br"

type testServer struct {
	router *gin.Engine
	auth   Authorizer
	svc    Services
	logs   *logtest.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	repos := sqlite.NewRepositories(db)
	if err := repos.Init(context.Background()); err != nil {
		t.Fatalf("init db: %v", err)
	}

	log, logs := logtest.NewNullLogger()
	catalog := permissions.Default()

	users := service.NewUserService(repos.Users, catalog)
	svc := Services{
		Users: users,
		Purchases: service.NewPurchaseService(service.HotmartConfig{
			Hottok:   testHottok,
			Products: map[string]domain.Plan{"1001": domain.PlanLite},
		}, repos.Users, repos.Purchases, repos.Notifications, log),
		Questions:     service.NewQuestionService(repos.Questions, repos.Notifications, log),
		Notifications: service.NewNotificationService(repos.Notifications, repos.Users),
		Portfolios:    service.NewPortfolioService(repos.Portfolios, repos.Assets, repos.Events, repos.Proventos, nil, catalog, log),
		Proventos:     service.NewProventoService(repos.Proventos, service.ImportConfig{}, log),
		Reports:       service.NewReportService(repos.Reports, noopQueue{}, nil, log),
		Analyses:      service.NewAnalysisService(repos.Analyses, nil, log),
	}
	auth := NewAuthorizer(AuthConfig{Secret: "test-secret", TTL: time.Hour}, users, catalog)

	router := gin.New()
	NewHandler(svc, auth, catalog, nil, log).AllowOrigins(testOrigin + "/").RegisterRoutes(router)
	return &testServer{router: router, auth: auth, svc: svc, logs: logs}
}

func (s *testServer) createUser(t *testing.T, email string, plan domain.Plan) (*domain.User, string) {
	t.Helper()
	user, _, err := s.svc.Users.Create(context.Background(), service.CreateUserInput{
		Email:    email,
		Plan:     plan,
		Password: "senha-segura-1",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	token, _, err := s.auth.Issue(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodGet, "/api/health", "", nil), http.StatusOK)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "vip@example.com", domain.PlanVIP)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "VIP@example.com", "password": "senha-segura-1"})
	expectStatus(t, rec, http.StatusOK)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth-token" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %+v", rec.Result().Cookies())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	s.router.ServeHTTP(me, req)
	expectStatus(t, me, http.StatusOK)

	var user UserResponse
	decodeBody(t, me, &user)
	if user.Email != "vip@example.com" || user.Plan != "VIP" {
		t.Fatalf("unexpected profile: %+v", user)
	}
	found := false
	for _, p := range user.Pages {
		if p == pageAnalyses {
			found = true
		}
	}
	if !found {
		t.Fatalf("VIP profile should list %s, got %v", pageAnalyses, user.Pages)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.createUser(t, "vip@example.com", domain.PlanVIP)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "vip@example.com", "password": "errada-123"})
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	expectStatus(t, s.do(t, http.MethodGet, "/api/me", "", nil), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodGet, "/api/me", "not-a-jwt", nil), http.StatusUnauthorized)

	other := NewAuthorizer(AuthConfig{Secret: "another-secret"}, s.svc.Users, permissions.Default())
	user, _ := s.createUser(t, "lite@example.com", domain.PlanLite)
	forged, _, err := other.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	expectStatus(t, s.do(t, http.MethodGet, "/api/me", forged, nil), http.StatusUnauthorized)
}

func TestPageGuards(t *testing.T) {
	s := newTestServer(t)
	_, lite := s.createUser(t, "lite@example.com", domain.PlanLite)
	_, admin := s.createUser(t, "admin@example.com", domain.PlanAdmin)

	expectStatus(t, s.do(t, http.MethodGet, "/api/reports", lite, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/api/proventos", lite, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/api/analyses", lite, nil), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodGet, "/api/admin/users", lite, nil), http.StatusForbidden)

	expectStatus(t, s.do(t, http.MethodGet, "/api/analyses", admin, nil), http.StatusOK)
	rec := s.do(t, http.MethodGet, "/api/admin/users", admin, nil)
	expectStatus(t, rec, http.StatusOK)

	var body struct {
		Users []UserResponse `json:"users"`
		Total int            `json:"total"`
	}
	decodeBody(t, rec, &body)
	if body.Total != 2 || len(body.Users) != 2 {
		t.Fatalf("expected 2 users, got %+v", body)
	}
}

func TestGrantUnlocksPage(t *testing.T) {
	s := newTestServer(t)
	user, lite := s.createUser(t, "lite@example.com", domain.PlanLite)
	_, admin := s.createUser(t, "admin@example.com", domain.PlanAdmin)

	expectStatus(t, s.do(t, http.MethodGet, "/api/analyses", lite, nil), http.StatusForbidden)

	path := "/api/admin/users/" + itoa(user.ID) + "/permissions"
	expectStatus(t, s.do(t, http.MethodPost, path, admin, gin.H{"pages": []string{pageAnalyses}}), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/api/analyses", lite, nil), http.StatusOK)

	expectStatus(t, s.do(t, http.MethodDelete, path, admin, gin.H{"pages": []string{pageAnalyses}}), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/api/analyses", lite, nil), http.StatusForbidden)

	rec := s.do(t, http.MethodPost, path, admin, gin.H{"pages": []string{"no-such-page"}})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestInactiveUserIsBlocked(t *testing.T) {
	s := newTestServer(t)
	user, token := s.createUser(t, "lite@example.com", domain.PlanLite)
	expectStatus(t, s.do(t, http.MethodGet, "/api/me", token, nil), http.StatusOK)

	inactive := domain.UserStatusInactive
	if _, err := s.svc.Users.Update(context.Background(), user.ID, service.UpdateUserInput{Status: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	expectStatus(t, s.do(t, http.MethodGet, "/api/me", token, nil), http.StatusForbidden)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "lite@example.com", "password": "senha-segura-1"})
	expectStatus(t, rec, http.StatusForbidden)
}

func TestAdminErrorMapping(t *testing.T) {
	s := newTestServer(t)
	_, admin := s.createUser(t, "admin@example.com", domain.PlanAdmin)

	rec := s.do(t, http.MethodPost, "/api/admin/users", admin, gin.H{"email": "not-an-email"})
	expectStatus(t, rec, http.StatusBadRequest)
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["field"] != "email" {
		t.Fatalf("expected field email, got %v", body)
	}

	rec = s.do(t, http.MethodPost, "/api/admin/users", admin, gin.H{"email": "novo@example.com", "plan": "lite"})
	expectStatus(t, rec, http.StatusCreated)
	var created struct {
		User              UserResponse `json:"user"`
		TemporaryPassword string       `json:"temporary_password"`
	}
	decodeBody(t, rec, &created)
	if created.User.Plan != "LITE" || created.TemporaryPassword == "" || !created.User.MustChangePassword {
		t.Fatalf("unexpected create response: %+v", created)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/admin/users", admin, gin.H{"email": "novo@example.com"}), http.StatusConflict)
	expectStatus(t, s.do(t, http.MethodGet, "/api/admin/users/9999", admin, nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodGet, "/api/admin/users/abc", admin, nil), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodGet, "/api/admin/storage/objects", admin, nil), http.StatusServiceUnavailable)
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	s := newTestServer(t)
	user, admin := s.createUser(t, "admin@example.com", domain.PlanAdmin)

	expectStatus(t, s.do(t, http.MethodDelete, "/api/admin/users/"+itoa(user.ID), admin, nil), http.StatusBadRequest)
}

func TestAdminPortfolioAndEvents(t *testing.T) {
	s := newTestServer(t)
	_, admin := s.createUser(t, "admin@example.com", domain.PlanAdmin)

	rec := s.do(t, http.MethodPost, "/api/admin/portfolios", admin, gin.H{
		"slug": "small-caps", "name": "Small Caps", "page": "small-caps",
	})
	expectStatus(t, rec, http.StatusCreated)
	var p PortfolioResponse
	decodeBody(t, rec, &p)

	assetPath := "/api/admin/portfolios/" + itoa(p.ID) + "/assets"
	rec = s.do(t, http.MethodPost, assetPath, admin, gin.H{
		"ticker": "vulc3", "entry_date": "02/01/2024", "entry_price": "10.50", "bias": "compra",
	})
	expectStatus(t, rec, http.StatusCreated)
	var a AssetResponse
	decodeBody(t, rec, &a)
	if a.Ticker != "VULC3" {
		t.Fatalf("expected normalized ticker, got %+v", a)
	}

	rec = s.do(t, http.MethodPost, assetPath, admin, gin.H{
		"ticker": "VULC3", "entry_date": "2024-13-40", "entry_price": "10",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, http.MethodPost, "/api/admin/events", admin, gin.H{
		"ticker": "VULC3", "type": "split", "date": "2024-05-01", "factor": "2",
	})
	expectStatus(t, rec, http.StatusCreated)

	rec = s.do(t, http.MethodGet, "/api/admin/events?ticker=VULC3", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	var events []CorporateEventResponse
	decodeBody(t, rec, &events)
	if len(events) != 1 || events[0].Type != "SPLIT" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestHotmartWebhook(t *testing.T) {
	s := newTestServer(t)
	payload := gin.H{
		"event": "PURCHASE_APPROVED",
		"data": gin.H{
			"product":  gin.H{"id": 1001},
			"buyer":    gin.H{"email": "comprador@example.com", "name": "Maria Souza"},
			"purchase": gin.H{"transaction": "HP123", "status": "APPROVED"},
		},
	}

	rec := s.do(t, http.MethodPost, "/api/webhooks/hotmart?hottok=wrong", "", payload)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = s.do(t, http.MethodPost, "/api/webhooks/hotmart?hottok="+testHottok, "", payload)
	expectStatus(t, rec, http.StatusOK)
	var result map[string]any
	decodeBody(t, rec, &result)
	if result["action"] != service.WebhookActivated {
		t.Fatalf("expected activation, got %v", result)
	}
	if _, leaked := result["temporary_password"]; leaked {
		t.Fatal("webhook response must not include the temporary password")
	}
	for _, entry := range s.logs.AllEntries() {
		if _, leaked := entry.Data["temporary_password"]; leaked {
			t.Fatalf("log entry %q carries the temporary password", entry.Message)
		}
	}

	rec = s.do(t, http.MethodPost, "/api/webhooks/hotmart?hottok="+testHottok, "", payload)
	expectStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &result)
	if result["action"] != service.WebhookDuplicate {
		t.Fatalf("expected duplicate, got %v", result)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/hotmart", strings.NewReader(`{"event":"CLUB_FIRST_ACCESS"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(hottokHeader, testHottok)
	ignored := httptest.NewRecorder()
	s.router.ServeHTTP(ignored, req)
	expectStatus(t, ignored, http.StatusOK)
}

func TestCORSOnlyTrustsConfiguredOrigins(t *testing.T) {
	s := newTestServer(t)

	request := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	rec := request("https://evil.example")
	expectStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("untrusted origin allow-origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("untrusted origin allow-credentials = %q", got)
	}

	rec = request(testOrigin)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != testOrigin {
		t.Fatalf("trusted origin allow-origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("trusted origin allow-credentials = %q", got)
	}
	if got := rec.Header().Values("Vary"); len(got) == 0 || got[0] != "Origin" {
		t.Fatalf("vary = %v", got)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
	req.Header.Set("Origin", "https://evil.example")
	preflight := httptest.NewRecorder()
	s.router.ServeHTTP(preflight, req)
	expectStatus(t, preflight, http.StatusNoContent)
	if got := preflight.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("preflight allow-credentials = %q", got)
	}
}

func TestQuestionsFlow(t *testing.T) {
	s := newTestServer(t)
	_, member := s.createUser(t, "lite@example.com", domain.PlanLite)
	_, admin := s.createUser(t, "admin@example.com", domain.PlanAdmin)

	rec := s.do(t, http.MethodPost, "/api/questions", member, gin.H{"title": "Dúvida", "content": "Quando sai o relatório?"})
	expectStatus(t, rec, http.StatusCreated)
	var q QuestionResponse
	decodeBody(t, rec, &q)

	rec = s.do(t, http.MethodPost, "/api/admin/questions/"+itoa(q.ID)+"/answers", admin, gin.H{"content": "Toda segunda."})
	expectStatus(t, rec, http.StatusCreated)

	rec = s.do(t, http.MethodGet, "/api/notifications/unread-count", member, nil)
	expectStatus(t, rec, http.StatusOK)
	var count map[string]int
	decodeBody(t, rec, &count)
	if count["unread"] != 1 {
		t.Fatalf("expected one unread notification, got %v", count)
	}
}

func TestQuotesUnavailableWithoutProvider(t *testing.T) {
	s := newTestServer(t)
	_, member := s.createUser(t, "lite@example.com", domain.PlanLite)

	expectStatus(t, s.do(t, http.MethodGet, "/api/market/quotes?tickers=PETR4", member, nil), http.StatusServiceUnavailable)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
