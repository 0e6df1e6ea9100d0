package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/httputil"
	"github.com/nivekithan/gig-marketplace/internal/models"
	"github.com/nivekithan/gig-marketplace/internal/validation"
)

type ProposalWorkflow interface {
	Submit(ctx context.Context, gigID, proposerID uuid.UUID, text string) (*models.Proposal, error)
	Edit(ctx context.Context, gigID, proposerID uuid.UUID, text string) (*models.Proposal, error)
	Withdraw(ctx context.Context, gigID, proposerID uuid.UUID) error
	Reject(ctx context.Context, ownerID, proposalID uuid.UUID) (*models.Proposal, error)
	Accept(ctx context.Context, ownerID, gigID, proposalID uuid.UUID) (*models.Proposal, error)
	OpenProposals(ctx context.Context, ownerID, gigID uuid.UUID) ([]*models.ProposalWithProposer, error)
	AcceptedProposal(ctx context.Context, callerID, gigID uuid.UUID) (*models.ProposalWithProposer, error)
}

// ProposalHandler serves the proposal endpoints under /api/v1/gigs/{id} and
// /api/v1/proposals.
type ProposalHandler struct {
	base
	workflow ProposalWorkflow
}

func NewProposalHandler(workflow ProposalWorkflow, validator *validation.Validator, log *zap.Logger) *ProposalHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProposalHandler{base: base{validator: validator, log: log}, workflow: workflow}
}

type proposalRequest struct {
	Proposal string `json:"proposal"`
}

// callerAndGig resolves the signed-in user and the {id} path segment.
func (h *ProposalHandler) callerAndGig(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := h.userID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	gigID, ok := h.pathID(w, r, "id")
	return userID, gigID, ok
}

// ListOpen handles GET /api/v1/gigs/{id}/proposals.
func (h *ProposalHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	userID, gigID, ok := h.callerAndGig(w, r)
	if !ok {
		return
	}
	list, err := h.workflow.OpenProposals(r.Context(), userID, gigID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"proposals": list})
}

// Accepted handles GET /api/v1/gigs/{id}/proposals/accepted.
func (h *ProposalHandler) Accepted(w http.ResponseWriter, r *http.Request) {
	userID, gigID, ok := h.callerAndGig(w, r)
	if !ok {
		return
	}
	p, err := h.workflow.AcceptedProposal(r.Context(), userID, gigID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// Submit handles POST /api/v1/gigs/{id}/proposals.
func (h *ProposalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, gigID, ok := h.callerAndGig(w, r)
	if !ok {
		return
	}
	var req proposalRequest
	if !h.decode(w, r, validation.Proposal, &req) {
		return
	}
	p, err := h.workflow.Submit(r.Context(), gigID, userID, req.Proposal)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// EditMine handles PATCH /api/v1/gigs/{id}/proposals/mine.
func (h *ProposalHandler) EditMine(w http.ResponseWriter, r *http.Request) {
	userID, gigID, ok := h.callerAndGig(w, r)
	if !ok {
		return
	}
	var req proposalRequest
	if !h.decode(w, r, validation.Proposal, &req) {
		return
	}
	p, err := h.workflow.Edit(r.Context(), gigID, userID, req.Proposal)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// WithdrawMine handles DELETE /api/v1/gigs/{id}/proposals/mine.
func (h *ProposalHandler) WithdrawMine(w http.ResponseWriter, r *http.Request) {
	userID, gigID, ok := h.callerAndGig(w, r)
	if !ok {
		return
	}
	if err := h.workflow.Withdraw(r.Context(), gigID, userID); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Accept handles POST /api/v1/gigs/{id}/proposals/{pid}/accept.
func (h *ProposalHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, gigID, ok := h.callerAndGig(w, r)
	if !ok {
		return
	}
	proposalID, ok := h.pathID(w, r, "pid")
	if !ok {
		return
	}
	p, err := h.workflow.Accept(r.Context(), userID, gigID, proposalID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// Reject handles POST /api/v1/proposals/{pid}/reject.
func (h *ProposalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	proposalID, ok := h.pathID(w, r, "pid")
	if !ok {
		return
	}
	p, err := h.workflow.Reject(r.Context(), userID, proposalID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
