package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/shuvi/store"
)

func (d *DB) CreateReminder(ctx context.Context, create *store.Reminder) (*store.Reminder, error) {
	fields := []string{"id", "user_id", "channel_id", "due_ts", "memo"}
	args := []any{create.ID, create.UserID, create.ChannelID, create.DueTs, create.Memo}
	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		args = append(args, create.CreatedTs)
	}

	stmt := `INSERT INTO reminder (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING created_ts`

	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to create reminder")
	}
	return create, nil
}

func (d *DB) ListReminders(ctx context.Context, find *store.FindReminder) ([]*store.Reminder, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "reminder.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "reminder.user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ChannelIDs; len(v) > 0 {
		holders := make([]string, 0, len(v))
		for _, channelID := range v {
			holders = append(holders, placeholder(len(args)+1))
			args = append(args, channelID)
		}
		where = append(where, "reminder.channel_id IN ("+strings.Join(holders, ", ")+")")
	}
	if v := find.DueAfter; v != nil {
		where, args = append(where, "reminder.due_ts > "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, user_id, channel_id, due_ts, memo, created_ts
		FROM reminder
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY due_ts ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query reminders")
	}
	defer rows.Close()

	list := make([]*store.Reminder, 0)
	for rows.Next() {
		var reminder store.Reminder
		if err := rows.Scan(
			&reminder.ID,
			&reminder.UserID,
			&reminder.ChannelID,
			&reminder.DueTs,
			&reminder.Memo,
			&reminder.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan reminder")
		}
		list = append(list, &reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate reminders")
	}
	return list, nil
}

func (d *DB) GetNextDue(ctx context.Context, afterTs int64) (*store.Reminder, error) {
	query := `
		SELECT id, user_id, channel_id, due_ts, memo, created_ts
		FROM reminder
		WHERE due_ts > ` + placeholder(1) + `
		ORDER BY due_ts ASC
		LIMIT 1`

	var reminder store.Reminder
	err := d.db.QueryRowContext(ctx, query, afterTs).Scan(
		&reminder.ID,
		&reminder.UserID,
		&reminder.ChannelID,
		&reminder.DueTs,
		&reminder.Memo,
		&reminder.CreatedTs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query next due reminder")
	}
	return &reminder, nil
}

func (d *DB) DeleteReminder(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, "DELETE FROM reminder WHERE id = "+placeholder(1), id); err != nil {
		return errors.Wrap(err, "failed to delete reminder")
	}
	return nil
}

func (d *DB) DeleteExpiredReminders(ctx context.Context, beforeTs int64) (int64, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM reminder WHERE due_ts < "+placeholder(1), beforeTs)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete expired reminders")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count deleted reminders")
	}
	return affected, nil
}
