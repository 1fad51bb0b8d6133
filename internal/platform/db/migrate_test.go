package db

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadMigrationsOrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "002_referrals.sql", "CREATE TABLE referral ();")
	writeFile(t, dir, "001_core.sql", "CREATE TABLE account ();")
	writeFile(t, dir, "010_indexes.sql", "CREATE INDEX foo ON account (id);")
	writeFile(t, dir, "README.md", "not a migration")
	writeFile(t, dir, "notes.sql", "no numeric prefix")

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("got %d migrations, want 3", len(migrations))
	}
	wantVersions := []int{1, 2, 10}
	for i, mig := range migrations {
		if mig.Version != wantVersions[i] {
			t.Errorf("migration %d: version = %d, want %d", i, mig.Version, wantVersions[i])
		}
	}
	if migrations[0].SQL != "CREATE TABLE account ();" {
		t.Errorf("migration content not loaded: %q", migrations[0].SQL)
	}
}

func TestLoadMigrationsMissingDir(t *testing.T) {
	m := NewMigrator(nil, "/nonexistent/migrations")
	if _, err := m.LoadMigrations(); err == nil {
		t.Error("expected error for missing directory")
	}
}
