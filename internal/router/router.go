// Package router mounts every endpoint under /api/v1 with its middleware chain.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/auth"
	"github.com/nivekithan/gig-marketplace/internal/dashboard"
	"github.com/nivekithan/gig-marketplace/internal/handlers"
	"github.com/nivekithan/gig-marketplace/internal/httputil"
	"github.com/nivekithan/gig-marketplace/internal/metrics"
	"github.com/nivekithan/gig-marketplace/internal/middleware"
)

const base = "/api/v1"

// Deps are the handlers and middleware collaborators built in cmd/api.
type Deps struct {
	Auth      *auth.Handler
	Account   *dashboard.Handler
	Gigs      *handlers.GigHandler
	Proposals *handlers.ProposalHandler

	Tokens  middleware.TokenValidator
	Limiter *middleware.RateLimiter
	// IPIntel enables the IP guard when set.
	IPIntel middleware.IPIntel
	// Ping backs /healthz; nil reports healthy.
	Ping func(ctx context.Context) error

	AllowedOrigins []string
	Log            *zap.Logger
}

// New returns the root handler: CORS, then request metrics, then the routes.
func New(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	mux := http.NewServeMux()

	public := func(h http.HandlerFunc) http.Handler {
		return d.guard(d.Limiter.Handler(h))
	}
	authed := func(h http.HandlerFunc) http.Handler {
		return d.guard(middleware.RequireUser(d.Tokens)(d.Limiter.Handler(h)))
	}

	mux.Handle("POST "+base+"/auth/register", public(d.Auth.Register))
	mux.Handle("POST "+base+"/auth/login", public(d.Auth.Login))
	mux.Handle("POST "+base+"/auth/logout", public(d.Auth.Logout))

	mux.Handle("GET "+base+"/account/me", authed(d.Account.GetMe))
	mux.Handle("PATCH "+base+"/account/profile", authed(d.Account.UpdateProfile))
	mux.Handle("GET "+base+"/account/ledger", authed(d.Account.ListLedger))
	mux.Handle("POST "+base+"/account/credits/top-up", authed(d.Account.TopUp))
	mux.Handle("POST "+base+"/account/credits/withdraw", authed(d.Account.Withdraw))
	mux.Handle("GET "+base+"/account/card", authed(d.Account.GetCard))
	mux.Handle("PUT "+base+"/account/card", authed(d.Account.PutCard))

	mux.Handle("POST "+base+"/gigs", authed(d.Gigs.Create))
	mux.Handle("GET "+base+"/gigs", authed(d.Gigs.List))
	mux.Handle("GET "+base+"/gigs/{id}", authed(d.Gigs.Get))
	mux.Handle("PATCH "+base+"/gigs/{id}", authed(d.Gigs.Edit))
	mux.Handle("DELETE "+base+"/gigs/{id}", authed(d.Gigs.Delete))
	mux.Handle("POST "+base+"/gigs/{id}/finish", authed(d.Gigs.Finish))
	mux.Handle("GET "+base+"/gigs/{id}/similar", authed(d.Gigs.Similar))

	mux.Handle("GET "+base+"/gigs/{id}/proposals", authed(d.Proposals.ListOpen))
	mux.Handle("GET "+base+"/gigs/{id}/proposals/accepted", authed(d.Proposals.Accepted))
	mux.Handle("POST "+base+"/gigs/{id}/proposals", authed(d.Proposals.Submit))
	mux.Handle("PATCH "+base+"/gigs/{id}/proposals/mine", authed(d.Proposals.EditMine))
	mux.Handle("DELETE "+base+"/gigs/{id}/proposals/mine", authed(d.Proposals.WithdrawMine))
	mux.Handle("POST "+base+"/gigs/{id}/proposals/{pid}/accept", authed(d.Proposals.Accept))
	mux.Handle("POST "+base+"/proposals/{pid}/reject", authed(d.Proposals.Reject))

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", d.healthz)

	return cors.New(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(metrics.InstrumentHandler(mux))
}

func (d Deps) guard(next http.Handler) http.Handler {
	if d.IPIntel == nil {
		return next
	}
	return middleware.IPGuard(d.IPIntel, d.Log)(next)
}

func (d Deps) healthz(w http.ResponseWriter, r *http.Request) {
	if d.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Ping(ctx); err != nil {
			d.Log.Warn("health check failed", zap.Error(err))
			httputil.WriteMessage(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
