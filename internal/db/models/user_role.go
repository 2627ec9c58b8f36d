package models

import "time"

// UserRole is the join table between users and roles.
// The role set of a Google linked account is replaced on every sign-in.
type UserRole struct {
	// UserID is the ID of the user.
	UserID uint64 `gorm:"primaryKey;column:user_id"`
	// RoleID is the ID of the granted role.
	RoleID uint `gorm:"primaryKey;column:role_id"`
	// CreatedAt is the timestamp when the role was granted (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the UserRole model.
func (UserRole) TableName() string {
	return "user_roles"
}

// All returns every model managed by AutoMigrate, in dependency order.
func All() []any {
	return []any{
		&Setting{},
		&Role{},
		&User{},
		&UserRole{},
		&UserMeta{},
	}
}
