package migrate

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return db
}

func TestRun_AppliesAndIsIdempotent(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	if err := Run(ctx, db, logger); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := Run(ctx, db, logger); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("schema_migrations rows = %d, want 1", n)
	}
	if _, err := db.Exec(`SELECT id, address, payload, accepted FROM sightings LIMIT 1`); err != nil {
		t.Errorf("sightings table missing: %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		in      string
		version string
		name    string
		ok      bool
	}{
		{in: "0001_sightings.sql", version: "0001", name: "sightings", ok: true},
		{in: "0012_add_index.sql", version: "0012", name: "add_index", ok: true},
		{in: "1_short.sql", ok: false},
		{in: "0001_x.txt", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.in)
			if ok != tt.ok || version != tt.version || name != tt.name {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.in, version, name, ok, tt.version, tt.name, tt.ok)
			}
		})
	}
}

func TestPendingMigrations_OrderAndSkip(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0002_second.sql": {Data: []byte("SELECT 2;")},
		"sql/0001_first.sql":  {Data: []byte("SELECT 1;")},
		"sql/0003_third.sql":  {Data: []byte("SELECT 3;")},
		"sql/README":          {Data: []byte("ignored")},
	}

	got, err := pendingMigrations(fsys, map[string]bool{"0002": true})
	if err != nil {
		t.Fatalf("pendingMigrations: %v", err)
	}
	if len(got) != 2 || got[0].version != "0001" || got[1].version != "0003" {
		t.Fatalf("pendingMigrations = %+v, want versions 0001, 0003", got)
	}
}
