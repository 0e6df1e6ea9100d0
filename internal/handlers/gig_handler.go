package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/httputil"
	"github.com/nivekithan/gig-marketplace/internal/models"
	"github.com/nivekithan/gig-marketplace/internal/services"
	"github.com/nivekithan/gig-marketplace/internal/validation"
)

// Listing scopes accepted by GET /gigs.
const (
	ScopeCreated  = "created"
	ScopeLatest   = "latest"
	ScopeProposed = "proposed"
	ScopeAssigned = "assigned"
)

const latestLimit = 50

type GigEngine interface {
	CreateGigWithEscrow(ctx context.Context, ownerID uuid.UUID, in services.GigInput) (*models.Gig, error)
	EditGig(ctx context.Context, gigID, editorID uuid.UUID, name, description string) (*models.Gig, error)
	DeleteGigAndRefund(ctx context.Context, gigID, ownerID uuid.UUID) (*models.LedgerEntry, error)
	FinishGig(ctx context.Context, gigID, callerID uuid.UUID) (*services.Settlement, error)
	SimilarGigs(ctx context.Context, gigID uuid.UUID, limit int) ([]*models.Gig, error)
}

// GigReader serves the read-only listings.
type GigReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Gig, error)
	ListLatest(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Gig, error)
	ListProposedBy(ctx context.Context, userID uuid.UUID) ([]*models.Gig, error)
	ListAssignedTo(ctx context.Context, userID uuid.UUID) ([]*models.Gig, error)
}

type ProposalCounter interface {
	Count(ctx context.Context, gigID uuid.UUID) (int, error)
	MyProposal(ctx context.Context, gigID, proposerID uuid.UUID) (*models.Proposal, error)
}

// GigHandler serves /api/v1/gigs.
type GigHandler struct {
	base
	engine       GigEngine
	gigs         GigReader
	proposals    ProposalCounter
	similarLimit int
}

func NewGigHandler(engine GigEngine, gigs GigReader, proposals ProposalCounter, validator *validation.Validator, log *zap.Logger) *GigHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &GigHandler{
		base:         base{validator: validator, log: log},
		engine:       engine,
		gigs:         gigs,
		proposals:    proposals,
		similarLimit: services.DefaultSimilarLimit,
	}
}

// WithSimilarLimit sets how many gigs /similar returns without ?limit.
func (h *GigHandler) WithSimilarLimit(n int) *GigHandler {
	if n > 0 {
		h.similarLimit = n
	}
	return h
}

type createGigRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Skills      []string `json:"skills"`
}

// Create handles POST /api/v1/gigs.
func (h *GigHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req createGigRequest
	if !h.decode(w, r, validation.CreateGig, &req) {
		return
	}
	gig, err := h.engine.CreateGigWithEscrow(r.Context(), userID, services.GigInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Skills:      req.Skills,
	})
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, gig)
}

// List handles GET /api/v1/gigs?scope=...
func (h *GigHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var (
		gigs []*models.Gig
		err  error
	)
	switch scope := r.URL.Query().Get("scope"); scope {
	case ScopeCreated:
		gigs, err = h.gigs.ListByOwner(r.Context(), userID)
	case "", ScopeLatest:
		gigs, err = h.gigs.ListLatest(r.Context(), userID, latestLimit)
	case ScopeProposed:
		gigs, err = h.gigs.ListProposedBy(r.Context(), userID)
	case ScopeAssigned:
		gigs, err = h.gigs.ListAssignedTo(r.Context(), userID)
	default:
		err = apperr.Field("scope", apperr.ErrValidation, "unknown scope %q", scope)
	}
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	if gigs == nil {
		gigs = []*models.Gig{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"gigs": gigs})
}

type gigDetail struct {
	*models.Gig
	IsOwner       bool             `json:"is_owner"`
	ProposalCount int              `json:"proposal_count"`
	MyProposal    *models.Proposal `json:"my_proposal,omitempty"`
}

// Get handles GET /api/v1/gigs/{id}.
func (h *GigHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	gigID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	gig, err := h.gigs.GetByID(r.Context(), gigID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	out := gigDetail{Gig: gig, IsOwner: gig.OwnerID == userID}
	if out.ProposalCount, err = h.proposals.Count(r.Context(), gigID); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	if !out.IsOwner {
		mine, err := h.proposals.MyProposal(r.Context(), gigID, userID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			httputil.WriteError(w, h.log, err)
			return
		}
		out.MyProposal = mine
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type editGigRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Edit handles PATCH /api/v1/gigs/{id}.
func (h *GigHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	gigID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req editGigRequest
	if !h.decode(w, r, validation.EditGig, &req) {
		return
	}
	gig, err := h.engine.EditGig(r.Context(), gigID, userID, req.Name, req.Description)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, gig)
}

// Delete handles DELETE /api/v1/gigs/{id}. The response carries the refund entry.
func (h *GigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	gigID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	refund, err := h.engine.DeleteGigAndRefund(r.Context(), gigID, userID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"refund": refund})
}

// Finish handles POST /api/v1/gigs/{id}/finish.
func (h *GigHandler) Finish(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	gigID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	settlement, err := h.engine.FinishGig(r.Context(), gigID, userID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settlement)
}

// Similar handles GET /api/v1/gigs/{id}/similar?limit=N.
func (h *GigHandler) Similar(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.userID(w, r); !ok {
		return
	}
	gigID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	limit := h.similarLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 20 {
			httputil.WriteError(w, h.log, apperr.Field("limit", apperr.ErrValidation, "limit must be between 1 and 20"))
			return
		}
		limit = n
	}
	gigs, err := h.engine.SimilarGigs(r.Context(), gigID, limit)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"gigs": gigs})
}
