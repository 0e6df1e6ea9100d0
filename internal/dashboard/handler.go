// Package dashboard serves the signed-in user's account: profile, balance,
// payment history, credit purchases and withdrawals, and the card on file.
package dashboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/httputil"
	"github.com/nivekithan/gig-marketplace/internal/metrics"
	"github.com/nivekithan/gig-marketplace/internal/middleware"
	"github.com/nivekithan/gig-marketplace/internal/models"
	"github.com/nivekithan/gig-marketplace/internal/validation"
)

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, email string, skills []string) (*models.User, error)
}

type CardStore interface {
	Upsert(ctx context.Context, c *models.CreditCard) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.CreditCard, error)
}

type Ledger interface {
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
	TopUp(ctx context.Context, userID uuid.UUID, amount int64) (*models.LedgerEntry, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount int64) (*models.LedgerEntry, error)
}

type Handler struct {
	users     UserStore
	cards     CardStore
	ledger    Ledger
	validator *validation.Validator
	log       *zap.Logger
}

func NewHandler(users UserStore, cards CardStore, ledger Ledger, validator *validation.Validator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{users: users, cards: cards, ledger: ledger, validator: validator, log: log}
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		httputil.WriteMessage(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	return id, ok
}

// decode reads and validates the body; it writes the error response itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := httputil.ReadBody(w, r)
	if err == nil {
		err = h.validator.Decode(schema, body, dst)
	}
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return false
	}
	return true
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

type ProfileRequest struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Skills []string `json:"skills"`
}

// PATCH /api/v1/account/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req ProfileRequest
	if !h.decode(w, r, validation.Profile, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	u, err := h.users.UpdateProfile(r.Context(), userID, strings.TrimSpace(req.Name), email, req.Skills)
	if errors.Is(err, apperr.ErrConflict) {
		err = apperr.Field("email", apperr.ErrConflict, "email already registered")
	}
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

// GET /api/v1/account/ledger?limit=N
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, h.log, apperr.Field("limit", apperr.ErrValidation, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	entries, err := h.ledger.History(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type CreditsRequest struct {
	Amount int64 `json:"amount"`
}

// POST /api/v1/account/credits/top-up
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req CreditsRequest
	if !h.decode(w, r, validation.Credits, &req) {
		return
	}
	if _, err := h.cards.GetByUserID(r.Context(), userID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			err = apperr.Field("card", apperr.ErrValidation, "Add a credit card before buying credits")
		}
		httputil.WriteError(w, h.log, err)
		return
	}
	entry, err := h.ledger.TopUp(r.Context(), userID, req.Amount)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	metrics.RecordCredits(models.LedgerKindTopUp, entry.Amount)
	httputil.WriteJSON(w, http.StatusOK, entry)
}

// POST /api/v1/account/credits/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req CreditsRequest
	if !h.decode(w, r, validation.Credits, &req) {
		return
	}
	entry, err := h.ledger.Withdraw(r.Context(), userID, req.Amount)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	metrics.RecordCredits(models.LedgerKindWithdrawal, entry.Amount)
	httputil.WriteJSON(w, http.StatusOK, entry)
}

// GET /api/v1/account/card
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	card, err := h.cards.GetByUserID(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}

type CardRequest struct {
	HolderName string `json:"holder_name"`
	Number     string `json:"number"`
}

// PUT /api/v1/account/card
func (h *Handler) PutCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req CardRequest
	if !h.decode(w, r, validation.CreditCard, &req) {
		return
	}
	if !luhnValid(req.Number) {
		httputil.WriteError(w, h.log, apperr.Field("number", apperr.ErrValidation, "card number is not valid"))
		return
	}
	card := &models.CreditCard{
		ID:         uuid.New(),
		UserID:     userID,
		HolderName: strings.TrimSpace(req.HolderName),
		Last4:      req.Number[len(req.Number)-4:],
		NumberHash: hashNumber(req.Number),
	}
	if err := h.cards.Upsert(r.Context(), card); err != nil {
		httputil.WriteError(w, h.log, err)
		return
	}
	h.log.Info("credit card saved", zap.String("user_id", userID.String()), zap.String("last4", card.Last4))
	httputil.WriteJSON(w, http.StatusOK, card)
}

func hashNumber(number string) string {
	sum := sha256.Sum256([]byte(number))
	return hex.EncodeToString(sum[:])
}

// luhnValid expects digits only; the schema guarantees that.
func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
