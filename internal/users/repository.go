package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/landhub/internal/rbac"
	"github.com/odyssey-erp/landhub/internal/shared"
)

// IdentityStore is the read contract the access-control core consumes.
type IdentityStore interface {
	FetchUserByID(ctx context.Context, id int64) (*User, error)
	FetchUsersByRole(ctx context.Context, filter RoleFilter) ([]User, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, password_hash, role, is_admin, is_restricted, created_at, updated_at`

// collapsedRoleSQL mirrors collapseRole so role filters run in the database.
const collapsedRoleSQL = `(CASE WHEN LOWER(TRIM(role)) IN ('user', 'admin', 'super_admin') THEN LOWER(TRIM(role)) WHEN is_admin THEN 'admin' ELSE 'user' END)`

// FetchUserByID loads a single user. Missing rows map to shared.ErrNotFound; any other failure
// is reported as shared.ErrStoreUnavailable.
func (r *Repository) FetchUserByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: fetch %d: %w: %v", id, shared.ErrStoreUnavailable, err)
	}
	return user, nil
}

// FindByEmail loads the account used for credential checks.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("users: find by email: %w: %v", shared.ErrStoreUnavailable, err)
	}
	return user, nil
}

// FetchUsersByRole lists users whose collapsed role is in filter.Roles. An empty role set
// returns nothing rather than everything.
func (r *Repository) FetchUsersByRole(ctx context.Context, filter RoleFilter) ([]User, error) {
	if len(filter.Roles) == 0 {
		return nil, nil
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	roles := make([]string, 0, len(filter.Roles))
	for _, role := range filter.Roles {
		roles = append(roles, string(role))
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE `+collapsedRoleSQL+` = ANY($1) ORDER BY id LIMIT $2 OFFSET $3`, roles, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w: %v", shared.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	allowed := make(map[rbac.Role]struct{}, len(filter.Roles))
	for _, role := range filter.Roles {
		allowed[role] = struct{}{}
	}
	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan: %w: %v", shared.ErrStoreUnavailable, err)
		}
		if _, ok := allowed[user.Role]; !ok {
			continue
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: rows: %w: %v", shared.ErrStoreUnavailable, err)
	}
	return out, nil
}

// SetRestricted flips the restriction flag of a user.
func (r *Repository) SetRestricted(ctx context.Context, id int64, restricted bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_restricted = $2, updated_at = NOW() WHERE id = $1`, id, restricted)
	if err != nil {
		return fmt.Errorf("users: restrict %d: %w: %v", id, shared.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user        User
		role        string
		legacyAdmin bool
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &role, &legacyAdmin, &user.IsRestricted, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.Role = collapseRole(role, legacyAdmin)
	return &user, nil
}

var _ IdentityStore = (*Repository)(nil)
