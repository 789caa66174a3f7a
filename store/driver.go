package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that a database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Reminder model related methods.
	CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error)
	ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error)
	// GetNextDue returns the reminder with the smallest due time strictly
	// after afterTs, or nil when none exists.
	GetNextDue(ctx context.Context, afterTs int64) (*Reminder, error)
	DeleteReminder(ctx context.Context, id string) error
	// DeleteExpiredReminders removes reminders whose due time passed before
	// beforeTs and returns the number of rows removed.
	DeleteExpiredReminders(ctx context.Context, beforeTs int64) (int64, error)

	// User model related methods.
	GetUser(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, create *User) (*User, error)
	UpdateUserTimezone(ctx context.Context, id string, timezone string) error
}
