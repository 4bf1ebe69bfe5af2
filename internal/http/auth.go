package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/permissions"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/repository"
	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/service"
)

const userContextKey = "membros.user"

// Authorizer issues session tokens and guards routes. Every protected route goes
// through one of its middlewares.
type Authorizer interface {
	Issue(user *domain.User) (string, time.Time, error)
	SetSessionCookie(c *gin.Context, token string, expires time.Time)
	ClearSessionCookie(c *gin.Context)
	RequireAuth() gin.HandlerFunc
	RequirePage(page string) gin.HandlerFunc
	RequireAdmin() gin.HandlerFunc
}

type AuthConfig struct {
	Secret       string
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

type sessionClaims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	Plan   string `json:"plan"`
	jwt.RegisteredClaims
}

type jwtAuthorizer struct {
	cfg     AuthConfig
	users   service.UserService
	catalog *permissions.Catalog
	now     func() time.Time
}

var _ Authorizer = (*jwtAuthorizer)(nil)

func NewAuthorizer(cfg AuthConfig, users service.UserService, catalog *permissions.Catalog) Authorizer {
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "auth-token"
	}
	return &jwtAuthorizer{cfg: cfg, users: users, catalog: catalog, now: time.Now}
}

func (a *jwtAuthorizer) Issue(user *domain.User) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.cfg.TTL)
	claims := sessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Plan:   string(user.Plan),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expires, nil
}

func (a *jwtAuthorizer) SetSessionCookie(c *gin.Context, token string, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *jwtAuthorizer) ClearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *jwtAuthorizer) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.authenticate(c); ok {
			c.Next()
		}
	}
}

func (a *jwtAuthorizer) RequirePage(page string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.authenticate(c)
		if !ok {
			return
		}
		if !a.catalog.CanAccess(user, page, a.now()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "your plan does not include " + page})
			return
		}
		c.Next()
	}
}

func (a *jwtAuthorizer) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.authenticate(c)
		if !ok {
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// authenticate loads the caller once per request. The user is read from the
// database so plan and status changes apply to existing sessions.
func (a *jwtAuthorizer) authenticate(c *gin.Context) (*domain.User, bool) {
	if user, ok := currentUser(c); ok {
		return user, true
	}

	raw := a.tokenFromRequest(c)
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, false
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || claims.UserID <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
		return nil, false
	}

	user, err := a.users.GetByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
		return nil, false
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return nil, false
	}
	if !user.IsAdmin() && user.Status != domain.UserStatusActive {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": service.ErrAccountInactive.Error()})
		return nil, false
	}

	c.Set(userContextKey, user)
	return user, true
}

func (a *jwtAuthorizer) tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(a.cfg.CookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func currentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}

// mustUser is used by handlers mounted behind an Authorizer middleware.
func mustUser(c *gin.Context) *domain.User {
	user, _ := currentUser(c)
	return user
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.svc.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	token, expires, err := h.auth.Issue(user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.auth.SetSessionCookie(c, token, expires)

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
		"user":       userToResponse(*user, h.catalog.Resolve(user, time.Now())),
	})
}

func (h *Handler) logout(c *gin.Context) {
	h.auth.ClearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user := mustUser(c)
	if err := h.svc.Users.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) me(c *gin.Context) {
	profile, err := h.svc.Users.Profile(c.Request.Context(), mustUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*profile.User, profile.Pages))
}

func (h *Handler) myPurchases(c *gin.Context) {
	purchases, err := h.svc.Purchases.ListByUser(c.Request.Context(), mustUser(c).ID)
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
