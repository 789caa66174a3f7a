package store

import "time"

// Reminder is the object representing a scheduled one-shot reminder.
// Due times are stored as UTC Unix seconds; presentation in a user's zone
// happens at the service layer.
type Reminder struct {
	ID        string
	UserID    string
	ChannelID string
	DueTs     int64
	Memo      string
	CreatedTs int64
}

// DueAt returns the due instant.
func (r *Reminder) DueAt() time.Time {
	return time.Unix(r.DueTs, 0).UTC()
}

// FindReminder is the find condition for reminders. Matching rows are always
// returned in ascending due-time order.
type FindReminder struct {
	ID     *string
	UserID *string
	// ChannelIDs restricts to reminders bound to one of the given channels.
	ChannelIDs []string
	// DueAfter restricts to reminders strictly due after the given Unix time.
	DueAfter *int64
}

// NextDue describes the soonest upcoming reminder.
type NextDue struct {
	DueAt time.Time
	// Remaining is the number of seconds until DueAt, padded by one second
	// because deliveries otherwise land a fraction of a second early.
	Remaining int64
}
