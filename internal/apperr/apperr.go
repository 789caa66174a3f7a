// Package apperr defines the recoverable error kinds of the reminder service.
// Every kind is caught at the dispatcher boundary and mapped to one localized
// user-facing message; none of them crash the watchdog or a running conversation.
package apperr

import "fmt"

// Cause narrows an error kind down to the specific trigger.
type Cause string

const (
	CauseUnknown            Cause = "unknown"
	CauseNotANumber         Cause = "not_a_number"
	CauseDateNotFound       Cause = "date_not_found"
	CauseTimeNotFound       Cause = "time_not_found"
	CauseIncorrectDate      Cause = "incorrect_date"
	CauseIncorrectTime      Cause = "incorrect_time"
	CauseTimestampInPast    Cause = "timestamp_in_the_past"
	CauseEmptyList          Cause = "empty_list"
	CauseIllegalDeletion    Cause = "illegal_reminder_deletion"
	CauseSelectionExhausted Cause = "selection_exhausted"
)

// Goal names the user action an error occurred in.
type Goal string

const (
	GoalUnknown     Goal = "unknown"
	GoalReminderSet Goal = "reminder_set"
	GoalReminderDel Goal = "reminder_del"
	GoalTimezone    Goal = "timezone"
	GoalHelp        Goal = "help"
)

// ParseError reports that a time expression could not be turned into a valid
// instant. Cause is one of the four parser causes or CauseTimestampInPast;
// Input carries the offending text for diagnostics.
type ParseError struct {
	Cause Cause
	Goal  Goal
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed (%s) for input %q", e.Cause, e.Input)
}

// InvalidArgumentError reports malformed command arguments, e.g. a missing
// numeric ordinal.
type InvalidArgumentError struct {
	Cause     Cause
	Goal      Goal
	Arguments []string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments (%s) for %s: %v", e.Cause, e.Goal, e.Arguments)
}

// ReminderNotFoundError reports an empty reminder result set.
type ReminderNotFoundError struct {
	Cause Cause
}

func (*ReminderNotFoundError) Error() string {
	return "there are no upcoming reminders at the moment"
}

// IndexOutOfBoundsError reports an ordinal outside the listed reminders.
// Index is zero-based, Length is the bound it violated.
type IndexOutOfBoundsError struct {
	Index  int
	Length int
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("index %d not in scope of available reminders (length: %d)", e.Index, e.Length)
}

// UnauthorizedError reports an attempt to delete a reminder owned by someone else.
type UnauthorizedError struct {
	Cause      Cause
	AccessorID string
	OwnerID    string
	ReminderID string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("user %s tried to delete reminder %s of user %s", e.AccessorID, e.ReminderID, e.OwnerID)
}

// FruitlessSelectionError reports a timezone selection flow that ended without
// a result, most likely due to a timeout.
type FruitlessSelectionError struct {
	Cause  Cause
	UserID string
}

func (e *FruitlessSelectionError) Error() string {
	return fmt.Sprintf("failed to select a timezone for user %s", e.UserID)
}

// UnknownCommandError reports a command the dispatcher does not know.
type UnknownCommandError struct {
	Command string
	Goal    Goal
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Command)
}
