package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("orders by numeric version", func(t *testing.T) {
		t.Parallel()
		fsys := fstest.MapFS{
			"m/010_add_index.sql":     {Data: []byte("CREATE INDEX i ON t(a);")},
			"m/002_create_table.sql":  {Data: []byte("-- table\nCREATE TABLE t (a TEXT);")},
			"m/README.md":             {Data: []byte("ignored")},
			"m/001_create_schema.sql": {Data: []byte("CREATE TABLE s (a TEXT); CREATE TABLE u (b TEXT);")},
		}
		migrations, err := Scan(fsys, "m")
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if len(migrations) != 3 {
			t.Fatalf("expected 3 migrations, got %d", len(migrations))
		}
		if migrations[0].Version != "001" || migrations[1].Version != "002" || migrations[2].Version != "010" {
			t.Fatalf("unexpected order: %s, %s, %s", migrations[0].Version, migrations[1].Version, migrations[2].Version)
		}
		if migrations[1].Description != "create table" || migrations[1].Checksum == "" {
			t.Fatalf("unexpected metadata: %+v", migrations[1])
		}
	})

	t.Run("rejects bad names and duplicates", func(t *testing.T) {
		t.Parallel()
		_, err := Scan(fstest.MapFS{"m/init.sql": {Data: []byte("SELECT 1;")}}, "m")
		if !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}

		_, err = Scan(fstest.MapFS{
			"m/001_a.sql":  {Data: []byte("SELECT 1;")},
			"m/0001_b.sql": {Data: []byte("SELECT 1;")},
			"m/1_c.sql":    {Data: []byte("SELECT 1;")},
			"m/001_d.sql":  {Data: []byte("SELECT 1;")},
		}, "m")
		if !errors.Is(err, ErrDuplicateVersion) {
			t.Fatalf("expected ErrDuplicateVersion, got %v", err)
		}
	})

	t.Run("rejects empty files", func(t *testing.T) {
		t.Parallel()
		_, err := Scan(fstest.MapFS{"m/001_empty.sql": {Data: []byte("-- nothing here\n")}}, "m")
		if !errors.Is(err, ErrInvalidMigrationFile) {
			t.Fatalf("expected ErrInvalidMigrationFile, got %v", err)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := SplitStatements("-- header\nCREATE TABLE a (x TEXT);\n\n  -- note\nCREATE INDEX b ON a(x);\n")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (x TEXT)" {
		t.Fatalf("unexpected first statement %q", got[0])
	}
}
