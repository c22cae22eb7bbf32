package audit

import (
	"encoding/json"
	"time"

	"github.com/odyssey-erp/landhub/internal/rbac"
)

// Entry adalah satu baris jejak audit. Entry hanya ditambahkan, tidak pernah diubah.
type Entry struct {
	ID         int64           `json:"id,omitempty"`
	AdminID    int64           `json:"admin_id"`
	AdminRole  rbac.Role       `json:"admin_role"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type,omitempty"`
	TargetID   string          `json:"target_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	IPAddress  string          `json:"ip_address"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Target identifies the object a privileged action touched.
type Target struct {
	Type string
	ID   string
}

// TimelineFilters menampung filter dasar untuk audit timeline.
type TimelineFilters struct {
	From       time.Time
	To         time.Time
	AdminID    int64
	TargetType string
	Action     string
	Page       int
	PageSize   int
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"has_next"`
	PageSize int  `json:"page_size"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result membungkus hasil timeline dengan informasi paging.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
