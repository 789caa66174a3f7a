// Package test provides a SQLite-backed store for package tests.
package test

import (
	"context"
	"fmt"
	"testing"

	"github.com/hrygo/shuvi/internal/profile"
	"github.com/hrygo/shuvi/store"
	"github.com/hrygo/shuvi/store/db"
)

// NewTestingStore creates a migrated store on a throwaway SQLite database.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	p := &profile.Profile{
		Mode: "dev",
		Data: t.TempDir(),
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("failed to validate test profile: %v", err)
	}
	p.DSN = fmt.Sprintf("%s/shuvi_test.db", p.Data)

	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create test db driver: %v", err)
	}

	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}
