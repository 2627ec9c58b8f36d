package models

import "time"

// Role keys seeded on first start.
const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
	RoleAuthor        = "author"
	RoleContributor   = "contributor"
	RoleSubscriber    = "subscriber"
)

// Role is a named role that email patterns grant on Google sign-in.
type Role struct {
	// ID is the unique identifier for the role.
	ID uint `gorm:"primaryKey"`
	// Key is the stable identifier referenced by email patterns, e.g. "editor".
	Key string `gorm:"column:role_key;uniqueIndex;size:100;not null"`
	// Name is the human readable role name.
	Name string `gorm:"size:100;not null"`
	// Description provides a human-readable description of the role's purpose.
	Description string `gorm:"size:255"`
	// IsSystem indicates if this is a system role that cannot be deleted.
	IsSystem bool `gorm:"default:false"`
	// CreatedAt is the timestamp when the role was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the role was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Role model.
func (Role) TableName() string {
	return "roles"
}
