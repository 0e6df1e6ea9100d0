// Package ledger keeps user balances and the append-only history of every
// balance change. Each mutation locks the user row, updates the balance and
// appends an entry on the caller's transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/database"
	"github.com/nivekithan/gig-marketplace/internal/execution"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

// Store is the persistence contract of the ledger.
type Store interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	LockBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error)
	DeductTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (int64, error)
	AddTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) (int64, error)
	InsertEntryTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
	Reconcile(ctx context.Context, userID uuid.UUID) (models.Reconciliation, error)
	ListImbalances(ctx context.Context) ([]models.Reconciliation, error)
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

type Service struct {
	db    database.TxBeginner
	store Store
	audit execution.InsertAuditTxFunc
	log   *zap.Logger
}

// NewService returns a ledger service. audit may be nil.
func NewService(db database.TxBeginner, store Store, audit execution.InsertAuditTxFunc, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, store: store, audit: audit, log: log}
}

func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	bal, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

// Debit removes amount from the user's balance on tx and appends a negative entry.
func (s *Service) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, kind string, gigID *uuid.UUID) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apperr.Field("amount", apperr.ErrValidation, "amount must be positive")
	}
	balance, err := s.store.LockBalance(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock balance: %w", err)
	}
	if balance < amount {
		return nil, fmt.Errorf("%w: balance %d, need %d", apperr.ErrInsufficientCredits, balance, amount)
	}
	newBalance, err := s.store.DeductTx(ctx, tx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("deduct credits: %w", err)
	}
	return s.record(ctx, tx, userID, gigID, kind, -amount, balance, newBalance)
}

// Credit adds amount to the user's balance on tx and appends a positive entry.
func (s *Service) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, kind string, gigID *uuid.UUID) (*models.LedgerEntry, error) {
	if amount <= 0 {
		return nil, apperr.Field("amount", apperr.ErrValidation, "amount must be positive")
	}
	balance, err := s.store.LockBalance(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock balance: %w", err)
	}
	newBalance, err := s.store.AddTx(ctx, tx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("add credits: %w", err)
	}
	return s.record(ctx, tx, userID, gigID, kind, amount, balance, newBalance)
}

func (s *Service) record(ctx context.Context, tx pgx.Tx, userID uuid.UUID, gigID *uuid.UUID, kind string, amount, oldBalance, newBalance int64) (*models.LedgerEntry, error) {
	if oldBalance+amount != newBalance {
		return nil, fmt.Errorf("%w: balance moved from %d to %d for delta %d", apperr.ErrInvariantViolation, oldBalance, newBalance, amount)
	}
	entry := &models.LedgerEntry{
		ID:           uuid.New(),
		UserID:       userID,
		GigID:        gigID,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: newBalance,
	}
	if err := s.store.InsertEntryTx(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	if s.audit != nil {
		err := s.audit(ctx, tx, execution.AuditCreditArgs{
			EntryID:    entry.ID,
			UserID:     userID,
			GigID:      gigID,
			EntryKind:  kind,
			OldBalance: oldBalance,
			NewBalance: newBalance,
			At:         time.Now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("enqueue audit: %w", err)
		}
	}
	return entry, nil
}

// TopUp credits purchased credits in its own transaction.
func (s *Service) TopUp(ctx context.Context, userID uuid.UUID, amount int64) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		entry, err = s.Credit(ctx, tx, userID, amount, models.LedgerKindTopUp, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("credits topped up", zap.String("user_id", userID.String()), zap.Int64("amount", amount))
	return entry, nil
}

// Withdraw cashes credits out in its own transaction.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID, amount int64) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		entry, err = s.Debit(ctx, tx, userID, amount, models.LedgerKindWithdrawal, nil)
		return err
	})
	if errors.Is(err, apperr.ErrInsufficientCredits) {
		return nil, apperr.Field("amount", apperr.ErrInsufficientCredits, "You do not have enough credits to withdraw %d", amount)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("credits withdrawn", zap.String("user_id", userID.String()), zap.Int64("amount", amount))
	return entry, nil
}

// History returns the user's entries, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.store.ListEntries(ctx, userID, limit)
}

func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (models.Reconciliation, error) {
	return s.store.Reconcile(ctx, userID)
}

// ReconcileAll returns every user whose balance disagrees with their ledger.
func (s *Service) ReconcileAll(ctx context.Context) ([]models.Reconciliation, error) {
	bad, err := s.store.ListImbalances(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range bad {
		s.log.Error("ledger imbalance",
			zap.String("user_id", r.UserID.String()),
			zap.Int64("balance", r.Balance),
			zap.Int64("ledger_sum", r.LedgerSum),
		)
	}
	return bad, nil
}
