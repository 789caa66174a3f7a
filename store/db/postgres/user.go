package postgres

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/shuvi/store"
)

func (d *DB) GetUser(ctx context.Context, id string) (*store.User, error) {
	var user store.User
	err := d.db.QueryRowContext(ctx,
		"SELECT id, name, timezone FROM users WHERE id = "+placeholder(1), id,
	).Scan(&user.ID, &user.Name, &user.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query user")
	}
	return &user, nil
}

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	stmt := `INSERT INTO users (id, name, timezone)
		VALUES (` + placeholders(3) + `)
		ON CONFLICT (id) DO NOTHING`
	if _, err := d.db.ExecContext(ctx, stmt, create.ID, create.Name, create.Timezone); err != nil {
		return nil, errors.Wrap(err, "failed to create user")
	}
	// The insert is a no-op for an existing user; return the actual row.
	return d.GetUser(ctx, create.ID)
}

func (d *DB) UpdateUserTimezone(ctx context.Context, id string, timezone string) error {
	stmt := "UPDATE users SET timezone = " + placeholder(1) + " WHERE id = " + placeholder(2)
	if _, err := d.db.ExecContext(ctx, stmt, timezone, id); err != nil {
		return errors.Wrap(err, "failed to update user timezone")
	}
	return nil
}
