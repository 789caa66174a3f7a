package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/shuvi/internal/profile"
	"github.com/hrygo/shuvi/store"
	"github.com/hrygo/shuvi/store/db/postgres"
	"github.com/hrygo/shuvi/store/db/sqlite"
)

// NewDBDriver creates a new db driver based on profile.
// PostgreSQL is the production database (the bot historically ran on a hosted
// Postgres); SQLite serves development and tests.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
