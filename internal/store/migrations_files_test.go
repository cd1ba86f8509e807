package store

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			t.Fatalf("unexpected file in migrations dir: %s", entry.Name())
		}
		version := match[1]
		direction := match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}

	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestTemplatesMigrationKeepsSoftDeleteColumn(t *testing.T) {
	sqlBytes, err := fs.ReadFile(migrationFiles, "migrations/0001_templates.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(sqlBytes)

	for _, snippet := range []string{
		"ttl TIMESTAMPTZ",
		"template_id TEXT PRIMARY KEY REFERENCES templates(id)",
		"PRIMARY KEY (template_id, user_id)",
	} {
		if !strings.Contains(sqlText, snippet) {
			t.Fatalf("expected migration to contain %q", snippet)
		}
	}
}

func TestMigrationURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/forms?sslmode=disable":   "pgx5://u:p@localhost:5432/forms?sslmode=disable",
		"postgresql://u:p@localhost:5432/forms?sslmode=disable": "pgx5://u:p@localhost:5432/forms?sslmode=disable",
		"pgx5://localhost/forms":                                "pgx5://localhost/forms",
	}
	for input, want := range cases {
		if got := migrationURL(input); got != want {
			t.Fatalf("migrationURL(%q) = %q, want %q", input, got, want)
		}
	}
}
