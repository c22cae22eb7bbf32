package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/landhub/internal/shared"
)

// Recorder counts denials per scope.
type Recorder interface {
	RateLimited(scope string)
}

// Policy is the attempt budget applied by Check.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces attempt budgets on top of a Store.
type Limiter struct {
	store   Store
	policy  Policy
	scope   string
	logger  *slog.Logger
	metrics Recorder
}

// NewLimiter creates a limiter for scope (used as a key prefix and metric label).
func NewLimiter(store Store, scope string, policy Policy, logger *slog.Logger, metrics Recorder) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, policy: policy, scope: scope, logger: logger, metrics: metrics}
}

// CheckAndRecordAttempt records one attempt for identifier and reports whether it is within
// maxAttempts for the current window. The attempt that reaches maxAttempts is allowed; the
// next one is not. Store failures deny and return ErrStoreUnavailable.
func (l *Limiter) CheckAndRecordAttempt(ctx context.Context, identifier string, maxAttempts int, window time.Duration) (bool, error) {
	if maxAttempts < 1 || window <= 0 {
		return false, fmt.Errorf("ratelimit: invalid budget %d/%s", maxAttempts, window)
	}
	if l == nil || l.store == nil {
		return false, fmt.Errorf("%w: rate limit store not configured", shared.ErrStoreUnavailable)
	}
	rec, err := l.store.Hit(ctx, l.key(identifier), window)
	if err != nil {
		l.logger.Error("rate limit store failed", slog.String("scope", l.scope), slog.Any("error", err))
		return false, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	if rec.AttemptCount > maxAttempts {
		if l.metrics != nil {
			l.metrics.RateLimited(l.scope)
		}
		l.logger.Warn("rate limit exceeded", slog.String("scope", l.scope), slog.String("identifier", identifier))
		return false, nil
	}
	return true, nil
}

// Check applies the limiter's policy and returns ErrRateLimited on denial.
func (l *Limiter) Check(ctx context.Context, identifier string) error {
	allowed, err := l.CheckAndRecordAttempt(ctx, identifier, l.policy.MaxAttempts, l.policy.Window)
	if err != nil {
		return err
	}
	if !allowed {
		return shared.ErrRateLimited
	}
	return nil
}

// Reset clears the counter for identifier, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	if l == nil || l.store == nil {
		return errors.New("ratelimit: store not configured")
	}
	if err := l.store.Reset(ctx, l.key(identifier)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		// Callers without an address share one bucket rather than bypassing the limit.
		identifier = "unknown"
	}
	if l.scope == "" {
		return identifier
	}
	return l.scope + ":" + identifier
}
