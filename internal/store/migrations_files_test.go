package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
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

func TestInitMigrationCreatesAllTables(t *testing.T) {
	migrationPath := filepath.Join("..", "..", "db", "migrations", "0001_init.up.sql")
	sqlBytes, err := os.ReadFile(migrationPath)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(sqlBytes)

	tables := []string{
		"accounts",
		"refresh_sessions",
		"revoked_access_tokens",
		"play_sessions",
		"session_participants",
		"session_invites",
		"groups",
		"group_members",
		"discussions",
		"discussion_participants",
		"posts",
		"replies",
		"post_reactions",
		"reply_reactions",
		"post_reads",
		"attachments",
	}
	for _, table := range tables {
		if !strings.Contains(sqlText, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("expected migration to create table %q", table)
		}
	}

	// Reaction uniqueness lives in the schema so idempotent toggling holds
	// across concurrent requests.
	for _, constraint := range []string{
		"PRIMARY KEY (post_id, account_id, reaction_type)",
		"PRIMARY KEY (reply_id, account_id, reaction_type)",
		"UNIQUE (discussion_type, entity_id)",
	} {
		if !strings.Contains(sqlText, constraint) {
			t.Errorf("expected migration to declare %q", constraint)
		}
	}
}
