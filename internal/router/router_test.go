package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nivekithan/gig-marketplace/internal/auth"
	"github.com/nivekithan/gig-marketplace/internal/dashboard"
	"github.com/nivekithan/gig-marketplace/internal/handlers"
	"github.com/nivekithan/gig-marketplace/internal/ledger"
	"github.com/nivekithan/gig-marketplace/internal/memstore"
	"github.com/nivekithan/gig-marketplace/internal/middleware"
	"github.com/nivekithan/gig-marketplace/internal/models"
	"github.com/nivekithan/gig-marketplace/internal/services"
	"github.com/nivekithan/gig-marketplace/internal/validation"
)

type blockList map[string]bool

func (b blockList) IPIsEmbargoed(_ context.Context, ip string) (bool, error) { return false, nil }

func (b blockList) IPIsReputable(_ context.Context, ip string) (bool, error) { return !b[ip], nil }

func newRouter(t *testing.T, mutate func(d *Deps)) http.Handler {
	t.Helper()
	db := memstore.New()
	v, err := validation.New()
	require.NoError(t, err)

	authSvc := auth.NewService(db.Users(), nil, "router-test-secret", time.Hour, nil)
	led := ledger.NewService(db, db.Ledger(), nil, nil)
	engine := services.NewSettlementEngine(db, led, db.Gigs(), db.Proposals(), nil, nil, nil)
	workflow := services.NewProposalWorkflow(db, db.Gigs(), db.Proposals(), nil, nil)

	d := Deps{
		Auth:           auth.NewHandler(authSvc, v, nil),
		Account:        dashboard.NewHandler(db.Users(), db.Cards(), led, v, nil),
		Gigs:           handlers.NewGigHandler(engine, db.Gigs(), workflow, v, nil),
		Proposals:      handlers.NewProposalHandler(workflow, v, nil),
		Tokens:         authSvc,
		Limiter:        middleware.NewRateLimiter(1000, 1000, nil),
		AllowedOrigins: []string{"https://app.example"},
	}
	if mutate != nil {
		mutate(&d)
	}
	return New(d)
}

func call(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := call(h, http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"`+email+`","password":"correct horse battery","name":"Ada"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var session auth.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session.Token
}

func TestRegisterFundAndPostGig(t *testing.T) {
	h := newRouter(t, nil)
	token := register(t, h, "ada@example.com")

	rec := call(h, http.MethodPost, "/api/v1/account/credits/top-up", token, `{"amount":100}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(h, http.MethodPut, "/api/v1/account/card", token, `{"holder_name":"Ada","number":"4242424242424242"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = call(h, http.MethodPost, "/api/v1/account/credits/top-up", token, `{"amount":100}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = call(h, http.MethodPost, "/api/v1/gigs", token, `{"name":"Logo","description":"A new logo","price":60}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = call(h, http.MethodGet, "/api/v1/account/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, int64(40), me.Credits)

	rec = call(h, http.MethodGet, "/api/v1/gigs?scope=created", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Logo"`)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	h := newRouter(t, nil)
	for _, path := range []string{"/api/v1/account/me", "/api/v1/gigs"} {
		rec := call(h, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		rec = call(h, http.MethodGet, path, "not-a-jwt", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestUnknownMethodAndPath(t *testing.T) {
	h := newRouter(t, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, call(h, http.MethodGet, "/api/v1/auth/login", "", "").Code)
	assert.Equal(t, http.StatusNotFound, call(h, http.MethodGet, "/api/v1/nothing", "", "").Code)
}

func TestHealthz(t *testing.T) {
	h := newRouter(t, nil)
	rec := call(h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h = newRouter(t, func(d *Deps) {
		d.Ping = func(context.Context) error { return errors.New("connection refused") }
	})
	rec = call(h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newRouter(t, nil)
	call(h, http.MethodGet, "/healthz", "", "")
	rec := call(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gig_marketplace_http_requests_total")
}

func TestRateLimitOnPublicRoutes(t *testing.T) {
	h := newRouter(t, func(d *Deps) {
		d.Limiter = middleware.NewRateLimiter(0.001, 1, nil)
	})
	body := `{"email":"nobody@example.com","password":"whatever123"}`
	assert.Equal(t, http.StatusUnauthorized, call(h, http.MethodPost, "/api/v1/auth/login", "", body).Code)
	rec := call(h, http.MethodPost, "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestIPGuardIsMountedWhenConfigured(t *testing.T) {
	h := newRouter(t, func(d *Deps) {
		d.IPIntel = blockList{"203.0.113.9": true}
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newRouter(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/gigs", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
