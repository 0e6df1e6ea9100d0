package main

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/auth"
	"github.com/nivekithan/gig-marketplace/internal/config"
	"github.com/nivekithan/gig-marketplace/internal/dashboard"
	"github.com/nivekithan/gig-marketplace/internal/execution"
	"github.com/nivekithan/gig-marketplace/internal/handlers"
	"github.com/nivekithan/gig-marketplace/internal/ledger"
	"github.com/nivekithan/gig-marketplace/internal/middleware"
	"github.com/nivekithan/gig-marketplace/internal/repository"
	"github.com/nivekithan/gig-marketplace/internal/router"
	"github.com/nivekithan/gig-marketplace/internal/safety"
	"github.com/nivekithan/gig-marketplace/internal/services"
	"github.com/nivekithan/gig-marketplace/internal/validation"
)

// intelService is everything the threat intel client does for the app.
type intelService interface {
	safety.URLReputation
	middleware.IPIntel
	auth.BreachChecker
	execution.AuditLogger
}

type app struct {
	handler http.Handler
	ledger  *ledger.Service
	limiter *middleware.RateLimiter
}

func buildApp(
	cfg *config.Config,
	pool *pgxpool.Pool,
	intelSvc intelService,
	auditTx execution.InsertAuditTxFunc,
	embedTx execution.InsertEmbedTxFunc,
	log *zap.Logger,
) *app {
	validator, err := validation.New()
	if err != nil {
		// Schemas are embedded; failing here is a build defect.
		log.Fatal("compile request schemas", zap.Error(err))
	}

	users := repository.NewUserRepo(pool)
	cards := repository.NewCreditCardRepo(pool)
	gigs := repository.NewGigRepo(pool)
	proposals := repository.NewProposalRepo(pool)

	ledgerSvc := ledger.NewService(pool, ledger.NewRepository(pool), auditTx, log.Named("ledger"))
	checker := safety.NewChecker(intelSvc, log.Named("safety"))
	engine := services.NewSettlementEngine(pool, ledgerSvc, gigs, proposals, checker, embedTx, log.Named("settlement"))
	workflow := services.NewProposalWorkflow(pool, gigs, proposals, checker, log.Named("proposals"))
	authSvc := auth.NewService(users, intelSvc, cfg.JWTSecret, cfg.JWTTTL, log.Named("auth"))
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log.Named("ratelimit"))

	deps := router.Deps{
		Auth:           auth.NewHandler(authSvc, validator, log),
		Account:        dashboard.NewHandler(users, cards, ledgerSvc, validator, log),
		Gigs:           handlers.NewGigHandler(engine, gigs, workflow, validator, log).WithSimilarLimit(cfg.SimilarLimit),
		Proposals:      handlers.NewProposalHandler(workflow, validator, log),
		Tokens:         authSvc,
		Limiter:        limiter,
		Ping:           pool.Ping,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Log:            log,
	}
	if cfg.IntelEnabled() {
		deps.IPIntel = intelSvc
	}
	return &app{handler: router.New(deps), ledger: ledgerSvc, limiter: limiter}
}
