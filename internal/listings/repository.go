package listings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/landhub/internal/platform/db"
	"github.com/odyssey-erp/landhub/internal/platform/httpx"
	"github.com/odyssey-erp/landhub/internal/shared"
)

// ErrNotPending indicates the application was already decided.
var ErrNotPending = errors.New("listings: application is not pending")

// Repository provides PostgreSQL backed persistence for listings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LandOwner returns the owner of land id.
func (r *Repository) LandOwner(ctx context.Context, id int64) (int64, error) {
	var owner int64
	err := r.pool.QueryRow(ctx, `SELECT owner_id FROM lands WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, fmt.Errorf("listings: land owner: %w: %v", shared.ErrStoreUnavailable, err)
	}
	return owner, nil
}

// CreateLand inserts a listing owned by ownerID.
func (r *Repository) CreateLand(ctx context.Context, ownerID int64, input LandInput) (*Land, error) {
	var photo pgtype.Text
	if input.PhotoPath != "" {
		photo = pgtype.Text{String: input.PhotoPath, Valid: true}
	}
	land := Land{
		OwnerID:   ownerID,
		Title:     input.Title,
		Location:  input.Location,
		AreaSqm:   input.AreaSqm,
		Price:     input.Price,
		PhotoPath: input.PhotoPath,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lands (owner_id, title, location, area_sqm, price, photo_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at`,
		ownerID, input.Title, input.Location, input.AreaSqm, input.Price, photo,
	).Scan(&land.ID, &land.CreatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("listings: create land: %w", httpx.ErrValidation)
		}
		return nil, fmt.Errorf("listings: create land: %w: %v", shared.ErrStoreUnavailable, err)
	}
	return &land, nil
}

// DeleteLand removes land id together with its applications.
func (r *Repository) DeleteLand(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM applications WHERE land_id = $1`, id); err != nil {
			return fmt.Errorf("listings: delete applications: %w: %v", shared.ErrStoreUnavailable, err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM lands WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("listings: delete land: %w: %v", shared.ErrStoreUnavailable, err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// ApplicationOwner returns the applicant of application id.
func (r *Repository) ApplicationOwner(ctx context.Context, id int64) (int64, error) {
	var applicant int64
	err := r.pool.QueryRow(ctx, `SELECT applicant_id FROM applications WHERE id = $1`, id).Scan(&applicant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, fmt.Errorf("listings: application owner: %w: %v", shared.ErrStoreUnavailable, err)
	}
	return applicant, nil
}

// DecideApplication moves a pending application to status.
func (r *Repository) DecideApplication(ctx context.Context, id int64, status ApplicationStatus, reviewerID int64) (*Application, error) {
	var app Application
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM applications WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("listings: lock application: %w: %v", shared.ErrStoreUnavailable, err)
		}
		if ApplicationStatus(current) != ApplicationPending {
			return ErrNotPending
		}
		var reviewedBy pgtype.Int8
		err = tx.QueryRow(ctx, `
			UPDATE applications SET status = $2, reviewed_by = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING id, land_id, applicant_id, status, reviewed_by, updated_at`,
			id, string(status), reviewerID,
		).Scan(&app.ID, &app.LandID, &app.ApplicantID, &app.Status, &reviewedBy, &app.UpdatedAt)
		if err != nil {
			return fmt.Errorf("listings: update application: %w: %v", shared.ErrStoreUnavailable, err)
		}
		if reviewedBy.Valid {
			reviewer := reviewedBy.Int64
			app.ReviewedBy = &reviewer
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

var _ RepositoryPort = (*Repository)(nil)

// isConstraintViolation reports foreign-key and check failures, which are caller errors.
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.ForeignKeyViolation, pgerrcode.CheckViolation:
		return true
	}
	return false
}
