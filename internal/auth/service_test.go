package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/memstore"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

var _ UserStore = (*memstore.UserStore)(nil)

type stubBreach struct {
	breached bool
	err      error
	seen     []string
}

func (s *stubBreach) PasswordBreached(_ context.Context, pw string) (bool, error) {
	s.seen = append(s.seen, pw)
	return s.breached, s.err
}

func newTestService(breach BreachChecker) (*Service, *memstore.DB) {
	db := memstore.New()
	return NewService(db.Users(), breach, "test-secret", time.Hour, nil), db
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	breach := &stubBreach{}
	svc, _ := newTestService(breach)

	u, err := svc.Register(ctx, "  Ada@Example.com ", "correct horse", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, int64(0), u.Credits)
	assert.NotEqual(t, "correct horse", u.PasswordHash)
	assert.Equal(t, []string{"correct horse"}, breach.seen)

	token, logged, err := svc.Login(ctx, "ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)

	id, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	_, _, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(nil)
	_, err := svc.Register(ctx, "a@example.com", "password1", "A")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "A@example.com", "password2", "B")
	require.ErrorIs(t, err, apperr.ErrConflict)
	var fe *apperr.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "email", fe.Field)
}

func TestRegisterBreachedPassword(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(&stubBreach{breached: true})

	_, err := svc.Register(ctx, "a@example.com", "password", "A")
	require.ErrorIs(t, err, apperr.ErrValidation)
	var fe *apperr.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "password", fe.Field)

	_, err = db.Users().GetByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRegisterProceedsWhenBreachLookupFails(t *testing.T) {
	svc, _ := newTestService(&stubBreach{err: errors.New("timeout")})
	_, err := svc.Register(context.Background(), "a@example.com", "password", "A")
	assert.NoError(t, err)
}

func TestValidateTokenRejects(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(nil)
	u := &models.User{ID: uuid.New(), Email: "a@example.com"}

	other := NewService(nil, nil, "other-secret", time.Hour, nil)
	foreign, err := other.IssueToken(u)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewService(nil, nil, "test-secret", time.Hour, nil)
	expired.ttl = -time.Minute
	stale, err := expired.IssueToken(u)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, stale)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: u.ID.String()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
