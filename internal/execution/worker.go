// Package execution holds the river job args and workers for the side
// effects that must not run inside a ledger transaction.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

// AuditCreditArgs records one balance change for the external audit log.
type AuditCreditArgs struct {
	EntryID    uuid.UUID  `json:"entry_id"`
	UserID     uuid.UUID  `json:"user_id"`
	GigID      *uuid.UUID `json:"gig_id,omitempty"`
	EntryKind  string     `json:"kind"`
	OldBalance int64      `json:"old_balance"`
	NewBalance int64      `json:"new_balance"`
	At         time.Time  `json:"at"`
}

func (AuditCreditArgs) Kind() string { return "audit_credit" }

// EmbedGigArgs asks for the gig's similarity embedding to be (re)computed.
type EmbedGigArgs struct {
	GigID uuid.UUID `json:"gig_id"`
}

func (EmbedGigArgs) Kind() string { return "embed_gig" }

// InsertAuditTxFunc enqueues an audit job inside the caller's transaction.
type InsertAuditTxFunc func(ctx context.Context, tx pgx.Tx, args AuditCreditArgs) error

// InsertEmbedTxFunc enqueues an embedding job inside the caller's transaction.
type InsertEmbedTxFunc func(ctx context.Context, tx pgx.Tx, args EmbedGigArgs) error

// AuditLogger is the external audit sink.
type AuditLogger interface {
	LogCreditChange(ctx context.Context, args AuditCreditArgs) error
}

type AuditCreditWorker struct {
	river.WorkerDefaults[AuditCreditArgs]
	audit AuditLogger
	log   *zap.Logger
}

func NewAuditCreditWorker(audit AuditLogger, log *zap.Logger) *AuditCreditWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditCreditWorker{audit: audit, log: log}
}

func (w *AuditCreditWorker) Work(ctx context.Context, job *river.Job[AuditCreditArgs]) error {
	if err := w.audit.LogCreditChange(ctx, job.Args); err != nil {
		return fmt.Errorf("audit credit change: %w", err)
	}
	w.log.Debug("credit change audited",
		zap.String("user_id", job.Args.UserID.String()),
		zap.String("kind", job.Args.EntryKind),
		zap.Int64("old", job.Args.OldBalance),
		zap.Int64("new", job.Args.NewBalance),
	)
	return nil
}

// GigEmbeddingStore is the slice of the gig store the embed worker needs.
type GigEmbeddingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float64) error
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type EmbedGigWorker struct {
	river.WorkerDefaults[EmbedGigArgs]
	gigs     GigEmbeddingStore
	embedder Embedder
	log      *zap.Logger
}

func NewEmbedGigWorker(gigs GigEmbeddingStore, embedder Embedder, log *zap.Logger) *EmbedGigWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmbedGigWorker{gigs: gigs, embedder: embedder, log: log}
}

func (w *EmbedGigWorker) Work(ctx context.Context, job *river.Job[EmbedGigArgs]) error {
	gig, err := w.gigs.GetByID(ctx, job.Args.GigID)
	if errors.Is(err, apperr.ErrNotFound) {
		// Gig was deleted before the job ran.
		w.log.Info("skip embedding for missing gig", zap.String("gig_id", job.Args.GigID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load gig: %w", err)
	}

	vec, err := w.embedder.Embed(ctx, gig.EmbeddingText())
	if err != nil {
		return fmt.Errorf("embed gig: %w", err)
	}
	if err := w.gigs.SetEmbedding(ctx, gig.ID, vec); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}
