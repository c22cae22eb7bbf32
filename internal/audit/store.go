package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/landhub/internal/rbac"
	"github.com/odyssey-erp/landhub/internal/shared"
)

// Store appends audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// Lister reads back the trail, newest first.
type Lister interface {
	List(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error)
}

// PGStore writes the trail into audit_logs.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Postgres-backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Append persists the entry.
func (s *PGStore) Append(ctx context.Context, entry Entry) error {
	if s == nil || s.pool == nil {
		return errors.New("audit: postgres store not initialised")
	}
	var details any
	if len(entry.Details) > 0 {
		details = []byte(entry.Details)
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO audit_logs (admin_id, admin_role, action, target_type, target_id, details, ip_address, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.AdminID, string(entry.AdminRole), entry.Action,
		optionalText(entry.TargetType), optionalText(entry.TargetID),
		details, entry.IPAddress, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: audit append: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}

// List returns entries matching filters ordered by created_at descending.
func (s *PGStore) List(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("audit: postgres store not initialised")
	}
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if !filters.From.IsZero() {
		add("created_at >= ?", filters.From)
	}
	if !filters.To.IsZero() {
		add("created_at <= ?", filters.To)
	}
	if filters.AdminID > 0 {
		add("admin_id = ?", filters.AdminID)
	}
	if v := strings.TrimSpace(filters.TargetType); v != "" {
		add("target_type = ?", v)
	}
	if v := strings.TrimSpace(filters.Action); v != "" {
		add("action = ?", v)
	}
	query := `SELECT id, admin_id, admin_role, action, target_type, target_id, details, ip_address, created_at FROM audit_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: audit list: %v", shared.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			role       string
			targetType pgtype.Text
			targetID   pgtype.Text
			details    []byte
			createdAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&e.ID, &e.AdminID, &role, &e.Action, &targetType, &targetID, &details, &e.IPAddress, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: audit scan: %v", shared.ErrStoreUnavailable, err)
		}
		// Rows written before a role rename keep their original label.
		e.AdminRole = rbac.Role(role)
		e.TargetType = targetType.String
		e.TargetID = targetID.String
		e.Details = details
		if createdAt.Valid {
			e.CreatedAt = createdAt.Time.UTC()
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: audit rows: %v", shared.ErrStoreUnavailable, err)
	}
	return out, nil
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

var (
	_ Store  = (*PGStore)(nil)
	_ Lister = (*PGStore)(nil)
)
