package services

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/database"
	"github.com/nivekithan/gig-marketplace/internal/metrics"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

// MinProposalLength is the minimum proposal text length in characters.
const MinProposalLength = 100

// ProposalWorkflow moves proposals through OPEN -> ACCEPTED | REJECTED.
// Every transaction locks the gig row before any proposal row.
type ProposalWorkflow struct {
	db     database.TxBeginner
	gigs   GigStore
	props  ProposalStore
	safety ContentChecker
	log    *zap.Logger
}

// NewProposalWorkflow wires the workflow. safety may be nil.
func NewProposalWorkflow(db database.TxBeginner, gigs GigStore, props ProposalStore, safety ContentChecker, log *zap.Logger) *ProposalWorkflow {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProposalWorkflow{db: db, gigs: gigs, props: props, safety: safety, log: log}
}

func (w *ProposalWorkflow) checkText(ctx context.Context, text string) error {
	if utf8.RuneCountInString(text) < MinProposalLength {
		return apperr.Field("proposal", apperr.ErrValidation, "Proposal must be at least %d characters long", MinProposalLength)
	}
	if w.safety == nil {
		return nil
	}
	return w.safety.Verify(ctx, "proposal", text)
}

// Submit creates an OPEN proposal by proposerID on an unassigned gig.
func (w *ProposalWorkflow) Submit(ctx context.Context, gigID, proposerID uuid.UUID, text string) (*models.Proposal, error) {
	if err := w.checkText(ctx, text); err != nil {
		return nil, err
	}

	p := &models.Proposal{ID: uuid.New(), GigID: gigID, ProposerID: proposerID, Text: text}
	err := database.WithTx(ctx, w.db, func(tx pgx.Tx) error {
		gig, err := w.gigs.GetForUpdate(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if gig.OwnerID == proposerID {
			return fmt.Errorf("%w: cannot propose on your own gig", apperr.ErrForbidden)
		}
		if gig.Status != models.GigStatusCreated {
			return fmt.Errorf("%w: gig is no longer accepting proposals", apperr.ErrConflict)
		}
		_, err = w.props.GetByGigAndProposerForUpdate(ctx, tx, gigID, proposerID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: proposal already submitted", apperr.ErrConflict)
		case !errors.Is(err, apperr.ErrNotFound):
			return fmt.Errorf("lookup proposal: %w", err)
		}
		return w.props.CreateTx(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordProposalEvent("submitted")
	w.log.Info("proposal submitted",
		zap.String("proposal_id", p.ID.String()),
		zap.String("gig_id", gigID.String()),
		zap.String("proposer_id", proposerID.String()),
	)
	return p, nil
}

// Edit replaces the text of the caller's OPEN proposal on gigID.
func (w *ProposalWorkflow) Edit(ctx context.Context, gigID, proposerID uuid.UUID, text string) (*models.Proposal, error) {
	if err := w.checkText(ctx, text); err != nil {
		return nil, err
	}

	var updated *models.Proposal
	err := database.WithTx(ctx, w.db, func(tx pgx.Tx) error {
		p, err := w.props.GetByGigAndProposerForUpdate(ctx, tx, gigID, proposerID)
		if err != nil {
			return err
		}
		if p.Status != models.ProposalStatusOpen {
			return fmt.Errorf("%w: proposal is %s", apperr.ErrInvalidState, p.Status)
		}
		updated, err = w.props.UpdateTextTx(ctx, tx, p.ID, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordProposalEvent("edited")
	return updated, nil
}

// Withdraw deletes the caller's OPEN proposal on gigID.
func (w *ProposalWorkflow) Withdraw(ctx context.Context, gigID, proposerID uuid.UUID) error {
	err := database.WithTx(ctx, w.db, func(tx pgx.Tx) error {
		p, err := w.props.GetByGigAndProposerForUpdate(ctx, tx, gigID, proposerID)
		if err != nil {
			return err
		}
		if p.Status != models.ProposalStatusOpen {
			return fmt.Errorf("%w: proposal is %s", apperr.ErrInvalidState, p.Status)
		}
		return w.props.DeleteTx(ctx, tx, p.ID)
	})
	if err != nil {
		return err
	}
	metrics.RecordProposalEvent("withdrawn")
	return nil
}

// Reject moves an OPEN proposal to REJECTED. Only the gig owner may reject.
func (w *ProposalWorkflow) Reject(ctx context.Context, ownerID, proposalID uuid.UUID) (*models.Proposal, error) {
	p, err := w.props.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	err = database.WithTx(ctx, w.db, func(tx pgx.Tx) error {
		gig, err := w.gigs.GetForUpdate(ctx, tx, p.GigID)
		if err != nil {
			return err
		}
		if gig.OwnerID != ownerID {
			return apperr.ErrForbidden
		}
		locked, err := w.props.GetForUpdate(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if locked.Status != models.ProposalStatusOpen {
			return fmt.Errorf("%w: proposal is %s", apperr.ErrInvalidState, locked.Status)
		}
		ok, err := w.props.TransitionStatusTx(ctx, tx, proposalID, gig.ID, models.ProposalStatusOpen, models.ProposalStatusRejected)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: proposal is no longer open", apperr.ErrInvalidState)
		}
		p = locked
		p.Status = models.ProposalStatusRejected
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordProposalEvent("rejected")
	return p, nil
}

// Accept assigns the gig to the proposal's author. The gig and the proposal
// change status together or not at all, and a gig never ends up with two
// accepted proposals.
func (w *ProposalWorkflow) Accept(ctx context.Context, ownerID, gigID, proposalID uuid.UUID) (*models.Proposal, error) {
	var accepted *models.Proposal
	err := database.WithTx(ctx, w.db, func(tx pgx.Tx) error {
		gig, err := w.gigs.GetForUpdate(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if gig.OwnerID != ownerID {
			return apperr.ErrForbidden
		}
		if gig.Status != models.GigStatusCreated {
			return fmt.Errorf("%w: gig is %s", apperr.ErrInvalidState, gig.Status)
		}

		p, err := w.props.GetForUpdate(ctx, tx, proposalID)
		if err != nil {
			return err
		}
		if p.GigID != gigID {
			return apperr.ErrNotFound
		}
		if p.Status != models.ProposalStatusOpen {
			return fmt.Errorf("%w: proposal is %s", apperr.ErrInvalidState, p.Status)
		}

		ok, err := w.props.TransitionStatusTx(ctx, tx, proposalID, gigID, models.ProposalStatusOpen, models.ProposalStatusAccepted)
		if err != nil {
			return fmt.Errorf("accept proposal: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: proposal is no longer open", apperr.ErrInvalidState)
		}
		ok, err = w.gigs.TransitionStatusTx(ctx, tx, gigID, models.GigStatusCreated, models.GigStatusAssigned)
		if err != nil {
			return fmt.Errorf("assign gig: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: gig is no longer open", apperr.ErrInvalidState)
		}
		p.Status = models.ProposalStatusAccepted
		accepted = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordProposalEvent("accepted")
	w.log.Info("proposal accepted",
		zap.String("proposal_id", proposalID.String()),
		zap.String("gig_id", gigID.String()),
		zap.String("worker_id", accepted.ProposerID.String()),
	)
	return accepted, nil
}

// OpenProposals lists the gig's OPEN proposals with proposer details. Only
// the owner sees them.
func (w *ProposalWorkflow) OpenProposals(ctx context.Context, ownerID, gigID uuid.UUID) ([]*models.ProposalWithProposer, error) {
	gig, err := w.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if gig.OwnerID != ownerID {
		return nil, apperr.ErrForbidden
	}
	list, err := w.props.ListOpenForGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.ProposalWithProposer{}
	}
	return list, nil
}

// AcceptedProposal returns the gig's accepted proposal to its owner or its author.
func (w *ProposalWorkflow) AcceptedProposal(ctx context.Context, callerID, gigID uuid.UUID) (*models.ProposalWithProposer, error) {
	gig, err := w.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, err
	}
	p, err := w.props.GetAcceptedForGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if gig.OwnerID != callerID && p.ProposerID != callerID {
		return nil, apperr.ErrForbidden
	}
	return p, nil
}

// MyProposal returns the caller's own proposal on gigID.
func (w *ProposalWorkflow) MyProposal(ctx context.Context, gigID, proposerID uuid.UUID) (*models.Proposal, error) {
	return w.props.GetByGigAndProposer(ctx, gigID, proposerID)
}

func (w *ProposalWorkflow) Count(ctx context.Context, gigID uuid.UUID) (int, error) {
	return w.props.CountForGig(ctx, gigID)
}
