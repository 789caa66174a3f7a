// Package store provides database access to all raw objects.
package store

import (
	"context"
	"time"

	"github.com/hrygo/shuvi/internal/profile"
	"github.com/hrygo/shuvi/store/cache"
)

// Store provides database access to reminder and user records. Reminder rows
// are never cached: the watchdog re-reads ground truth on every poll.
type Store struct {
	profile *profile.Profile
	driver  Driver

	userCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		userCache: cache.New(cache.Config{
			DefaultTTL:      10 * time.Minute,
			CleanupInterval: 5 * time.Minute,
			MaxItems:        1000,
		}),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.userCache.Close()
	return s.driver.Close()
}

// CreateReminder persists a new reminder.
func (s *Store) CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error) {
	return s.driver.CreateReminder(ctx, create)
}

// ListReminders returns reminders matching find, ascending by due time.
func (s *Store) ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error) {
	return s.driver.ListReminders(ctx, find)
}

// CheckNextDue returns the soonest upcoming due instant and the seconds
// remaining until it, or nil when no future reminder exists.
func (s *Store) CheckNextDue(ctx context.Context) (*NextDue, error) {
	now := time.Now()
	reminder, err := s.driver.GetNextDue(ctx, now.Unix())
	if err != nil {
		return nil, err
	}
	if reminder == nil {
		return nil, nil
	}
	return &NextDue{
		DueAt:     reminder.DueAt(),
		Remaining: reminder.DueTs - now.Unix() + 1,
	}, nil
}

// GetNextDue returns the full record of the soonest upcoming reminder, or nil.
func (s *Store) GetNextDue(ctx context.Context) (*Reminder, error) {
	return s.driver.GetNextDue(ctx, time.Now().Unix())
}

// DeleteReminder removes a reminder by ID.
func (s *Store) DeleteReminder(ctx context.Context, id string) error {
	return s.driver.DeleteReminder(ctx, id)
}

// DeleteExpiredReminders removes reminders that have been overdue for longer
// than the given age.
func (s *Store) DeleteExpiredReminders(ctx context.Context, age time.Duration) (int64, error) {
	return s.driver.DeleteExpiredReminders(ctx, time.Now().Add(-age).Unix())
}

// GetUser returns the user record for id, or nil when unknown.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	if cached, ok := s.userCache.Get(id); ok {
		if user, ok := cached.(*User); ok {
			return user, nil
		}
	}
	user, err := s.driver.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user != nil {
		s.userCache.Set(id, user)
	}
	return user, nil
}

// CreateUser creates a user record.
func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	user, err := s.driver.CreateUser(ctx, create)
	if err != nil {
		return nil, err
	}
	if user != nil {
		s.userCache.Set(user.ID, user)
	}
	return user, nil
}

// UpdateUserTimezone sets the user's IANA timezone.
func (s *Store) UpdateUserTimezone(ctx context.Context, id string, timezone string) error {
	if err := s.driver.UpdateUserTimezone(ctx, id, timezone); err != nil {
		return err
	}
	s.userCache.Delete(id)
	return nil
}
