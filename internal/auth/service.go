package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/models"
)

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken is returned by ValidateToken for any token it cannot trust.
var ErrInvalidToken = errors.New("invalid token")

// UserStore is the user persistence auth needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// BreachChecker reports whether a password appears in a known breach.
type BreachChecker interface {
	PasswordBreached(ctx context.Context, password string) (bool, error)
}

type Service struct {
	users  UserStore
	breach BreachChecker
	secret []byte
	ttl    time.Duration
	log    *zap.Logger
}

// NewService returns the auth service. breach may be nil.
func NewService(users UserStore, breach BreachChecker, secret string, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, breach: breach, secret: []byte(secret), ttl: ttl, log: log}
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user with a zero balance.
func (s *Service) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	if s.breach != nil {
		breached, err := s.breach.PasswordBreached(ctx, password)
		switch {
		case err != nil:
			s.log.Warn("password breach lookup failed", zap.Error(err))
		case breached:
			return nil, apperr.Field("password", apperr.ErrValidation,
				"This password has appeared in a data breach. Please choose a different password")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		ID:           uuid.New(),
		Email:        normalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Field("email", apperr.ErrConflict, "email already registered")
		}
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID.String()))
	return u, nil
}

// Login checks the password and issues a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) IssueToken(u *models.User) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: u.Email,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

// TTL is how long issued tokens stay valid.
func (s *Service) TTL() time.Duration { return s.ttl }

// ValidateToken returns the user id carried by a valid HS256 token.
func (s *Service) ValidateToken(_ context.Context, token string) (uuid.UUID, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}
