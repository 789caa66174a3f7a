// Package timezone provides timezone utilities for the reminder service.
//
// All reminders are stored as UTC instants; this package handles parsing,
// validation and per-user presentation of times.
package timezone

import (
	"fmt"
	"time"
)

// UTC is the coordinated universal time timezone.
var UTC = time.UTC

// ParseTimezone parses an IANA timezone identifier (e.g. "Europe/Berlin").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	if tz == "" || tz == "UTC" {
		return true
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// NowInTimezone returns the current time in the given timezone.
func NowInTimezone(tz *time.Location) time.Time {
	if tz == nil {
		tz = UTC
	}
	return time.Now().In(tz)
}

// FormatDate renders the date part the way users write it (dd.mm.yyyy).
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// FormatClock renders the time-of-day part on the 24h clock.
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}
