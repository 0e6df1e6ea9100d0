package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/database"
	"github.com/nivekithan/gig-marketplace/internal/execution"
	"github.com/nivekithan/gig-marketplace/internal/metrics"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

// GigInput is the owner-supplied part of a new gig.
type GigInput struct {
	Name        string
	Description string
	Price       int64
	Skills      []string
}

func (in GigInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Field("name", apperr.ErrValidation, "name is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return apperr.Field("description", apperr.ErrValidation, "description is required")
	}
	if in.Price <= 0 {
		return apperr.Field("price", apperr.ErrValidation, "price must be a positive number of credits")
	}
	for _, s := range in.Skills {
		if !slices.Contains(models.ValidSkills, s) {
			return apperr.Field("skills", apperr.ErrValidation, "unknown skill %q", s)
		}
	}
	return nil
}

// Settlement is the outcome of a finished gig.
type Settlement struct {
	Gig      *models.Gig         `json:"gig"`
	WorkerID uuid.UUID           `json:"worker_id"`
	Entry    *models.LedgerEntry `json:"entry"`
}

// SettlementEngine owns the gig lifecycle and every credit movement tied to
// it: escrow on create, refund on delete, payout on finish.
type SettlementEngine struct {
	db     database.TxBeginner
	ledger Ledger
	gigs   GigStore
	props  ProposalStore
	safety ContentChecker
	embed  execution.InsertEmbedTxFunc
	log    *zap.Logger
}

// NewSettlementEngine wires the engine. safety and embed may be nil.
func NewSettlementEngine(db database.TxBeginner, ledger Ledger, gigs GigStore, props ProposalStore, safety ContentChecker, embed execution.InsertEmbedTxFunc, log *zap.Logger) *SettlementEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettlementEngine{db: db, ledger: ledger, gigs: gigs, props: props, safety: safety, embed: embed, log: log}
}

func (e *SettlementEngine) verify(ctx context.Context, field, text string) error {
	if e.safety == nil {
		return nil
	}
	return e.safety.Verify(ctx, field, text)
}

func (e *SettlementEngine) enqueueEmbedding(ctx context.Context, tx pgx.Tx, gigID uuid.UUID) error {
	if e.embed == nil {
		return nil
	}
	if err := e.embed(ctx, tx, execution.EmbedGigArgs{GigID: gigID}); err != nil {
		return fmt.Errorf("enqueue embedding: %w", err)
	}
	return nil
}

// CreateGigWithEscrow debits the price from the owner and stores the gig in
// one transaction. Either both happen or neither does.
func (e *SettlementEngine) CreateGigWithEscrow(ctx context.Context, ownerID uuid.UUID, in GigInput) (*models.Gig, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := e.verify(ctx, "description", in.Description); err != nil {
		return nil, err
	}

	gig := &models.Gig{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Skills:      in.Skills,
	}
	err := database.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		if _, err := e.ledger.Debit(ctx, tx, ownerID, in.Price, models.LedgerKindDebitEscrow, &gig.ID); err != nil {
			if errors.Is(err, apperr.ErrInsufficientCredits) {
				return apperr.Field("price", apperr.ErrInsufficientCredits,
					"You do not have enough credits to choose this price. Either buy more credits or reduce the price of gig")
			}
			return fmt.Errorf("escrow price: %w", err)
		}
		if err := e.gigs.CreateTx(ctx, tx, gig); err != nil {
			return fmt.Errorf("create gig: %w", err)
		}
		return e.enqueueEmbedding(ctx, tx, gig.ID)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordGigEvent("created")
	metrics.RecordCredits(models.LedgerKindDebitEscrow, gig.Price)
	e.log.Info("gig created",
		zap.String("gig_id", gig.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.Int64("price", gig.Price),
	)
	return gig, nil
}

// EditGig changes the gig's name and description. Price, status and the
// ledger are never touched.
func (e *SettlementEngine) EditGig(ctx context.Context, gigID, editorID uuid.UUID, name, description string) (*models.Gig, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Field("name", apperr.ErrValidation, "name is required")
	}
	if strings.TrimSpace(description) == "" {
		return nil, apperr.Field("description", apperr.ErrValidation, "description is required")
	}
	if err := e.verify(ctx, "description", description); err != nil {
		return nil, err
	}

	var updated *models.Gig
	err := database.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		gig, err := e.gigs.GetForUpdate(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if gig.OwnerID != editorID {
			return apperr.ErrForbidden
		}
		updated, err = e.gigs.UpdateDetailsTx(ctx, tx, gigID, strings.TrimSpace(name), description)
		if err != nil {
			return fmt.Errorf("update gig: %w", err)
		}
		return e.enqueueEmbedding(ctx, tx, gigID)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordGigEvent("edited")
	return updated, nil
}

// DeleteGigAndRefund removes an unassigned gig with its proposals and
// returns the escrowed price to the owner.
func (e *SettlementEngine) DeleteGigAndRefund(ctx context.Context, gigID, ownerID uuid.UUID) (*models.LedgerEntry, error) {
	var refund *models.LedgerEntry
	err := database.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		gig, err := e.gigs.GetForUpdate(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if gig.OwnerID != ownerID {
			return apperr.ErrForbidden
		}
		if gig.Status != models.GigStatusCreated {
			return fmt.Errorf("%w: gig is %s, only CREATED gigs can be deleted", apperr.ErrInvalidState, gig.Status)
		}
		if err := e.props.DeleteByGigTx(ctx, tx, gigID); err != nil {
			return fmt.Errorf("delete proposals: %w", err)
		}
		if err := e.gigs.DeleteTx(ctx, tx, gigID); err != nil {
			return fmt.Errorf("delete gig: %w", err)
		}
		refund, err = e.ledger.Credit(ctx, tx, ownerID, gig.Price, models.LedgerKindRefund, &gigID)
		if err != nil {
			return fmt.Errorf("refund price: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordGigEvent("deleted")
	metrics.RecordCredits(models.LedgerKindRefund, refund.Amount)
	e.log.Info("gig deleted and refunded",
		zap.String("gig_id", gigID.String()),
		zap.Int64("refund", refund.Amount),
	)
	return refund, nil
}

// FinishGig pays the escrowed price to the accepted worker and completes the
// gig. A second call fails with ErrInvalidState and never pays twice.
func (e *SettlementEngine) FinishGig(ctx context.Context, gigID, callerID uuid.UUID) (*Settlement, error) {
	var out Settlement
	err := database.WithTx(ctx, e.db, func(tx pgx.Tx) error {
		gig, err := e.gigs.GetForUpdate(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if gig.OwnerID != callerID {
			return apperr.ErrForbidden
		}
		if gig.Status == models.GigStatusCompleted {
			return fmt.Errorf("%w: gig is already completed", apperr.ErrInvalidState)
		}

		accepted, err := e.props.ListAcceptedTx(ctx, tx, gigID)
		if err != nil {
			return fmt.Errorf("list accepted proposals: %w", err)
		}
		if len(accepted) != 1 {
			e.log.Error("gig has wrong number of accepted proposals",
				zap.String("gig_id", gigID.String()),
				zap.String("status", gig.Status),
				zap.Int("accepted", len(accepted)),
			)
			return fmt.Errorf("%w: gig %s has %d accepted proposals", apperr.ErrInvariantViolation, gigID, len(accepted))
		}
		if gig.Status != models.GigStatusAssigned {
			e.log.Error("gig with accepted proposal is not assigned",
				zap.String("gig_id", gigID.String()),
				zap.String("status", gig.Status),
			)
			return fmt.Errorf("%w: gig %s is %s with an accepted proposal", apperr.ErrInvariantViolation, gigID, gig.Status)
		}

		worker := accepted[0].ProposerID
		entry, err := e.ledger.Credit(ctx, tx, worker, gig.Price, models.LedgerKindCreditSettlement, &gigID)
		if err != nil {
			return fmt.Errorf("pay worker: %w", err)
		}
		ok, err := e.gigs.TransitionStatusTx(ctx, tx, gigID, models.GigStatusAssigned, models.GigStatusCompleted)
		if err != nil {
			return fmt.Errorf("complete gig: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: gig %s left ASSIGNED while locked", apperr.ErrInvariantViolation, gigID)
		}
		gig.Status = models.GigStatusCompleted
		out = Settlement{Gig: gig, WorkerID: worker, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordGigEvent("completed")
	metrics.RecordCredits(models.LedgerKindCreditSettlement, out.Entry.Amount)
	e.log.Info("gig settled",
		zap.String("gig_id", gigID.String()),
		zap.String("worker_id", out.WorkerID.String()),
		zap.Int64("amount", out.Entry.Amount),
	)
	return &out, nil
}

// SimilarGigs ranks other open gigs by how close their embedding is to this
// gig's. Gigs without an embedding are skipped.
func (e *SettlementEngine) SimilarGigs(ctx context.Context, gigID uuid.UUID, limit int) ([]*models.Gig, error) {
	gig, err := e.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if len(gig.Embedding) == 0 {
		return []*models.Gig{}, nil
	}
	candidates, err := e.gigs.ListEmbedded(ctx, gigID)
	if err != nil {
		return nil, fmt.Errorf("list embedded gigs: %w", err)
	}
	return rankBySimilarity(gig.Embedding, candidates, limit), nil
}
