package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/config"
	"github.com/nivekithan/gig-marketplace/internal/database"
	"github.com/nivekithan/gig-marketplace/internal/embedding"
	"github.com/nivekithan/gig-marketplace/internal/execution"
	"github.com/nivekithan/gig-marketplace/internal/intel"
	"github.com/nivekithan/gig-marketplace/internal/logger"
	"github.com/nivekithan/gig-marketplace/internal/migrations"
	"github.com/nivekithan/gig-marketplace/internal/reconcile"
	"github.com/nivekithan/gig-marketplace/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("connected to postgres")

	sqlDB := stdlib.OpenDBFromPool(pool)
	if err := migrations.Run(sqlDB); err != nil {
		_ = sqlDB.Close()
		return err
	}
	_ = sqlDB.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return err
	}
	log.Info("migrations applied")

	var intelSvc intelService = intel.Offline{Log: log.Named("audit")}
	if cfg.IntelEnabled() {
		client, err := intel.NewClient(intel.Config{
			Domain:    cfg.IntelDomain,
			Token:     cfg.IntelToken,
			CacheSize: cfg.IntelCacheSize,
		}, log.Named("intel"))
		if err != nil {
			return err
		}
		intelSvc = client
	} else {
		log.Warn("threat intel not configured; url, ip and password checks are disabled")
	}

	// Insert funcs are set once the river client exists; the services need
	// them before that.
	var (
		insertMu    sync.Mutex
		insertAudit execution.InsertAuditTxFunc
		insertEmbed execution.InsertEmbedTxFunc
	)
	auditTx := func(ctx context.Context, tx pgx.Tx, args execution.AuditCreditArgs) error {
		insertMu.Lock()
		fn := insertAudit
		insertMu.Unlock()
		if fn == nil {
			return errors.New("job queue not ready")
		}
		return fn(ctx, tx, args)
	}
	var embedTx execution.InsertEmbedTxFunc
	if cfg.EmbeddingsEnabled() {
		embedTx = func(ctx context.Context, tx pgx.Tx, args execution.EmbedGigArgs) error {
			insertMu.Lock()
			fn := insertEmbed
			insertMu.Unlock()
			if fn == nil {
				return errors.New("job queue not ready")
			}
			return fn(ctx, tx, args)
		}
	} else {
		log.Warn("OPENAI_API_KEY not set; similar gig search returns no results")
	}

	app := buildApp(cfg, pool, intelSvc, auditTx, embedTx, log)

	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewAuditCreditWorker(intelSvc, log.Named("audit")))
	if cfg.EmbeddingsEnabled() {
		embedder, err := embedding.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
		if err != nil {
			return err
		}
		river.AddWorker(workers, execution.NewEmbedGigWorker(repository.NewGigRepo(pool), embedder, log.Named("embed")))
	}

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RiverMaxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return err
	}

	insertMu.Lock()
	insertAudit = func(ctx context.Context, tx pgx.Tx, args execution.AuditCreditArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertEmbed = func(ctx context.Context, tx pgx.Tx, args execution.EmbedGigArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	// Jobs keep running until Stop below, not until the signal arrives.
	if err := riverClient.Start(context.Background()); err != nil {
		return err
	}

	scheduler, err := reconcile.NewScheduler(cfg.ReconcileSchedule, app.ledger, app.limiter, log.Named("reconcile"))
	if err != nil {
		return err
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	scheduler.Stop()
	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.Error("river shutdown", zap.Error(err))
	}
	return nil
}
