package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tabibdesk/internal/store"
)

func openPostgres(t *testing.T) *store.Postgres {
	t.Helper()
	_ = godotenv.Load("../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pg, err := store.OpenPostgres(ctx, dbURL, zap.NewNop())
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(pg.Close)
	if _, err := pg.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pg
}

func TestPostgres(t *testing.T) {
	pg := openPostgres(t)
	runContract(t, func(t *testing.T) store.Store { return pg })
}
