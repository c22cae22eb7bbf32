package audit

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/landhub/internal/rbac"
)

// FailureRecorder counts audit writes that did not reach the store.
type FailureRecorder interface {
	AuditWriteFailed()
}

// Logger records privileged actions. Failures are logged and counted; the action being
// described is never rolled back because of them.
type Logger struct {
	store   Store
	logger  *slog.Logger
	metrics FailureRecorder
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewLogger membuat audit logger baru di atas store.
func NewLogger(store Store, logger *slog.Logger, metrics FailureRecorder) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{store: store, logger: logger, metrics: metrics, now: time.Now}
}

// Record appends one entry attributed to p. Calls for non-admin principals are no-ops. The
// returned error is informational; callers must not undo their action on failure.
func (l *Logger) Record(ctx context.Context, p rbac.Principal, action string, target *Target, details any, ipAddress string) error {
	if l == nil || !p.Role.IsPrivileged() {
		return nil
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return l.fail(p, action, errors.New("audit: action is required"))
	}

	entry := Entry{
		AdminID:   p.ID,
		AdminRole: p.Role,
		Action:    action,
		IPAddress: ipAddress,
		CreatedAt: l.stamp(),
	}
	if target != nil {
		entry.TargetType = target.Type
		entry.TargetID = target.ID
	}
	encoded, err := encodeDetails(details)
	if err != nil {
		// The action still happened; keep the entry and drop the payload.
		l.logger.Warn("audit details not serialisable", slog.String("action", action), slog.Any("error", err))
	} else {
		entry.Details = encoded
	}

	if l.store == nil {
		return l.fail(p, action, errors.New("audit: store not configured"))
	}
	if err := l.store.Append(ctx, entry); err != nil {
		return l.fail(p, action, err)
	}
	return nil
}

// stamp returns a timestamp that never goes backwards for this logger.
func (l *Logger) stamp() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.now().UTC()
	if t.Before(l.last) {
		t = l.last
	}
	l.last = t
	return t
}

func (l *Logger) fail(p rbac.Principal, action string, err error) error {
	if l.metrics != nil {
		l.metrics.AuditWriteFailed()
	}
	l.logger.Error("audit write failed",
		slog.Int64("admin_id", p.ID),
		slog.String("action", action),
		slog.Any("error", err),
	)
	return err
}
