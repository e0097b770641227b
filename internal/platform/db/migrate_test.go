package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"001_inpatient.sql": {Data: []byte("CREATE TABLE ward (id UUID PRIMARY KEY);")},
		"002_directory.sql": {Data: []byte("CREATE TABLE department (id UUID PRIMARY KEY);")},
		"003_sequence.sql":  {Data: []byte("CREATE TABLE admission_sequence (year INT PRIMARY KEY);")},
	}

	migrations, err := NewMigratorFS(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	first := migrations[0]
	if first.Version != 1 || first.Name != "001_inpatient.sql" {
		t.Errorf("unexpected first migration %d %s", first.Version, first.Name)
	}
	if first.SQL != "CREATE TABLE ward (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", first.SQL)
	}
	if len(first.Checksum) != 64 {
		t.Errorf("expected hex sha256 checksum, got %q", first.Checksum)
	}
	if first.Checksum == migrations[1].Checksum {
		t.Error("different files should not share a checksum")
	}
}

func TestLoadMigrations_Filtering(t *testing.T) {
	tests := []struct {
		name     string
		fsys     fstest.MapFS
		versions []int
	}{
		{
			name: "sorted numerically",
			fsys: fstest.MapFS{
				"010_tables.sql": {Data: []byte("SELECT 10;")},
				"002_second.sql": {Data: []byte("SELECT 2;")},
				"001_first.sql":  {Data: []byte("SELECT 1;")},
			},
			versions: []int{1, 2, 10},
		},
		{
			name: "skips unversioned and nested files",
			fsys: fstest.MapFS{
				"001_valid.sql":      {Data: []byte("SELECT 1;")},
				"readme.sql":         {Data: []byte("-- no prefix")},
				"notes.txt":          {Data: []byte("not sql")},
				"abc_invalid.sql":    {Data: []byte("-- non-numeric")},
				"000_zero.sql":       {Data: []byte("-- zero is not a version")},
				"sub/003_nested.sql": {Data: []byte("SELECT 3;")},
			},
			versions: []int{1},
		},
		{
			name:     "empty",
			fsys:     fstest.MapFS{},
			versions: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			migrations, err := NewMigratorFS(nil, tt.fsys).LoadMigrations()
			if err != nil {
				t.Fatalf("LoadMigrations() error: %v", err)
			}
			if len(migrations) != len(tt.versions) {
				t.Fatalf("expected %d migrations, got %d", len(tt.versions), len(migrations))
			}
			for i, v := range tt.versions {
				if migrations[i].Version != v {
					t.Errorf("migration[%d]: expected version %d, got %d", i, v, migrations[i].Version)
				}
			}
		})
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"002_beds.sql":  {Data: []byte("SELECT 1;")},
		"02_rooms.sql":  {Data: []byte("SELECT 2;")},
		"001_wards.sql": {Data: []byte("SELECT 3;")},
	}
	_, err := NewMigratorFS(nil, fsys).LoadMigrations()
	if err == nil || !strings.Contains(err.Error(), "share version 2") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
}

func TestLoadMigrations_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_core.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatalf("write migration: %v", err)
	}

	migrations, err := NewMigratorDir(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 1 || migrations[0].Name != "001_core.sql" {
		t.Errorf("unexpected migrations: %+v", migrations)
	}
}

func TestLoadMigrations_MissingDirectory(t *testing.T) {
	_, err := NewMigratorDir(nil, "/nonexistent/path/that/does/not/exist").LoadMigrations()
	if err == nil {
		t.Error("expected error for non-existent directory")
	}
}

func TestStatusOf(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "001_inpatient.sql", Checksum: "aaa"},
		{Version: 2, Name: "002_board.sql", Checksum: "bbb"},
		{Version: 3, Name: "003_legacy.sql", Checksum: "ccc"},
	}
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	applied := map[int]appliedMigration{
		1: {at: at, checksum: "aaa"},
		2: {at: at, checksum: "edited"},
	}

	got := statusOf(migrations, applied)
	if len(got) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(got))
	}
	if !got[0].Applied || got[0].Drifted || !got[0].AppliedAt.Equal(at) {
		t.Errorf("001: unexpected status %+v", got[0])
	}
	if !got[1].Applied || !got[1].Drifted {
		t.Errorf("002: expected applied and drifted, got %+v", got[1])
	}
	if got[2].Applied || got[2].AppliedAt != nil {
		t.Errorf("003: expected pending, got %+v", got[2])
	}
}
