// Package models contains database model definitions.
package models

// Setting is a named JSON blob, e.g. the Google sign-in settings or the cached discovery endpoints.
type Setting struct {
	ID    uint64 `gorm:"primaryKey"`
	Name  string `gorm:"uniqueIndex;size:191;not null"`
	Value []byte
}
