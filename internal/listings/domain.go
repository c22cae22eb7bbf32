// Package listings exposes the guarded land and application endpoints. Persistence beyond
// ownership lookups and state changes lives behind RepositoryPort.
package listings

import "time"

// Land is a property listing.
type Land struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Title     string    `json:"title"`
	Location  string    `json:"location"`
	AreaSqm   float64   `json:"area_sqm"`
	Price     int64     `json:"price"`
	PhotoPath string    `json:"photo_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LandInput carries the fields for a new listing.
type LandInput struct {
	Title     string  `json:"title" validate:"required,max=200"`
	Location  string  `json:"location" validate:"required,max=200"`
	AreaSqm   float64 `json:"area_sqm" validate:"gt=0"`
	Price     int64   `json:"price" validate:"gte=0"`
	PhotoPath string  `json:"photo_path" validate:"omitempty,max=128"`
}

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

// Application states.
const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application is a buyer's request on a land listing.
type Application struct {
	ID          int64             `json:"id"`
	LandID      int64             `json:"land_id"`
	ApplicantID int64             `json:"applicant_id"`
	Status      ApplicationStatus `json:"status"`
	ReviewedBy  *int64            `json:"reviewed_by,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
