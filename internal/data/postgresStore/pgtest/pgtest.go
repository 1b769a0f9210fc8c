// Package pgtest opens a migrated Postgres for integration tests. Tests skip unless
// TEST_DATABASE_URL points at a database with the pgvector extension available.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/akolanti/GoDocRAG/internal/data/postgresStore"
	"github.com/jmoiron/sqlx"
)

func OpenTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres test")
	}
	ctx := context.Background()
	db, err := postgresStore.Connect(ctx, url)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := postgresStore.ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// UnitVector returns a dims-long vector with the given leading components, the rest zero.
func UnitVector(dims int, lead ...float32) []float32 {
	v := make([]float32, dims)
	copy(v, lead)
	return v
}
