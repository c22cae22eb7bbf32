package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/landhub/internal/shared"
	"github.com/odyssey-erp/landhub/internal/users"
)

// AttemptLimiter throttles login attempts per caller address.
type AttemptLimiter interface {
	Check(ctx context.Context, identifier string) error
	Reset(ctx context.Context, identifier string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	limiter AttemptLimiter
	logger  *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, limiter AttemptLimiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, limiter: limiter, logger: logger}
}

// dummyHash keeps the cost of a miss close to the cost of a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("landhub-timing-equaliser"), bcrypt.DefaultCost)

// Login counts the attempt against remoteAddr, then verifies credentials. A successful login
// clears the counter. Wrong email and wrong password produce the same error.
func (s *Service) Login(ctx context.Context, email, password, remoteAddr string) (*users.User, error) {
	if s.limiter == nil {
		return nil, shared.ErrStoreUnavailable
	}
	if err := s.limiter.Check(ctx, remoteAddr); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, shared.ErrStoreUnavailable) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}

	if err := s.limiter.Reset(ctx, remoteAddr); err != nil {
		s.logger.Warn("reset login limiter", slog.Any("error", err))
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
