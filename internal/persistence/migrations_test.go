package persistence

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("migration names: %v", err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("unexpected migrations %v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("migrations not sorted: %v", names)
		}
	}
}

func TestInitMigrationCreatesAccessTables(t *testing.T) {
	content, err := migrationFiles.ReadFile("migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, table := range []string{"users", "staff_roles", "leads"} {
		if !strings.Contains(string(content), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("migration missing table %s", table)
		}
	}
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	if err := RunMigrations(context.Background(), nil, zap.NewNop()); err != nil {
		t.Fatalf("expected skip without pool, got %v", err)
	}
}
