package database

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	if len(ups) == 0 {
		t.Fatal("no up migrations embedded")
	}
	for name := range ups {
		if !downs[name] {
			t.Errorf("migration %s has no down file", name)
		}
	}
}

func TestInitialMigrationCreatesGradingTables(t *testing.T) {
	body, err := fs.ReadFile(migrations, "migrations/000001_grading_tables.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	sql := string(body)
	for _, table := range []string{"user_question_attempts", "user_question_sets", "default_question_sets", "topic_mastery"} {
		if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("migration does not create %s", table)
		}
	}
	if !strings.Contains(sql, "grading_mode      BOOLEAN NOT NULL DEFAULT FALSE") {
		t.Error("user_question_sets.grading_mode missing or nullable")
	}
}
