package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleDataEntry UserRole = "data_entry"
	RoleTeamLead  UserRole = "team_lead"
	RoleViewer    UserRole = "data_viewer"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleDataEntry, RoleTeamLead, RoleViewer:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Matriculate  string    `db:"matriculate" json:"matriculate"`
	Phone        string    `db:"phone" json:"phone"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	LocationID   *string   `db:"location_id" json:"location_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AssignedTo reports whether the user currently sits at locationID.
func (u *User) AssignedTo(locationID string) bool {
	return u != nil && u.LocationID != nil && *u.LocationID == locationID
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role       *UserRole
	LocationID string
	Search     string
	Page       int
	PageSize   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
