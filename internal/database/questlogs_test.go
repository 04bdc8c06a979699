package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "quests.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRunsMigrations(t *testing.T) {
	db := openTestDB(t)

	version, err := db.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("SchemaVersion = %d, want 2", version)
	}
}

func TestOpenTwiceIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quests.db")
	ctx := context.Background()

	first, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := first.SaveQuestLog(ctx, "p1", []byte(`{"quests":[]}`)); err != nil {
		t.Fatalf("SaveQuestLog failed: %v", err)
	}
	first.Close()

	second, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	defer second.Close()

	if _, ok, err := second.LoadQuestLog(ctx, "p1"); err != nil || !ok {
		t.Errorf("LoadQuestLog after reopen: ok=%v err=%v", ok, err)
	}
}

func TestSaveAndLoadQuestLog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	data, ok, err := db.LoadQuestLog(ctx, "p1")
	if err != nil || ok || data != nil {
		t.Fatalf("LoadQuestLog on empty db = %q, %v, %v", data, ok, err)
	}

	blob := []byte(`{"quests":[{"questId":"first_logs","state":"active","objectiveProgress":{"chop":2}}]}`)
	if err := db.SaveQuestLog(ctx, "p1", blob); err != nil {
		t.Fatalf("SaveQuestLog failed: %v", err)
	}

	data, ok, err = db.LoadQuestLog(ctx, "p1")
	if err != nil || !ok {
		t.Fatalf("LoadQuestLog: ok=%v err=%v", ok, err)
	}
	if string(data) != string(blob) {
		t.Errorf("LoadQuestLog = %s, want %s", data, blob)
	}

	updated := []byte(`{"quests":[]}`)
	if err := db.SaveQuestLog(ctx, "p1", updated); err != nil {
		t.Fatalf("SaveQuestLog update failed: %v", err)
	}
	data, _, _ = db.LoadQuestLog(ctx, "p1")
	if string(data) != string(updated) {
		t.Errorf("LoadQuestLog after update = %s, want %s", data, updated)
	}

	count, err := db.CountQuestLogs(ctx)
	if err != nil || count != 1 {
		t.Errorf("CountQuestLogs = %d, %v; want 1", count, err)
	}
}

func TestLoadQuestLogDetectsTampering(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveQuestLog(ctx, "p1", []byte(`{"quests":[]}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.DB().Exec(`UPDATE quest_logs SET data = ? WHERE player_id = ?`, []byte(`{"quests":null}`), "p1"); err != nil {
		t.Fatal(err)
	}

	_, ok, err := db.LoadQuestLog(ctx, "p1")
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("LoadQuestLog error = %v, want ErrChecksumMismatch", err)
	}
	if ok {
		t.Error("Tampered row should not be returned")
	}
}

func TestLoadQuestLogRejectsNewerVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveQuestLog(ctx, "p1", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := db.DB().Exec(`UPDATE quest_logs SET version = ? WHERE player_id = ?`, QuestLogVersion+1, "p1"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := db.LoadQuestLog(ctx, "p1"); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("LoadQuestLog error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestDeleteQuestLog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.SaveQuestLog(ctx, "p1", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}

	removed, err := db.DeleteQuestLog(ctx, "p1")
	if err != nil || !removed {
		t.Errorf("DeleteQuestLog = %v, %v; want true", removed, err)
	}
	removed, err = db.DeleteQuestLog(ctx, "p1")
	if err != nil || removed {
		t.Errorf("second DeleteQuestLog = %v, %v; want false", removed, err)
	}
}

func TestChecksumStable(t *testing.T) {
	a := Checksum([]byte("quest"))
	if len(a) != 64 {
		t.Errorf("Checksum length = %d, want 64 hex chars", len(a))
	}
	if a != Checksum([]byte("quest")) {
		t.Error("Checksum is not deterministic")
	}
	if a == Checksum([]byte("quests")) {
		t.Error("Different data produced the same checksum")
	}
}

// Set QUESTD_TEST_POSTGRES=1 and the QUESTD_TEST_POSTGRES_* variables to run
// against a live server.
func TestPostgresQuestLogs(t *testing.T) {
	if os.Getenv("QUESTD_TEST_POSTGRES") == "" {
		t.Skip("QUESTD_TEST_POSTGRES not set")
	}

	cfg := DefaultConfig("")
	cfg.Driver = string(DialectPostgres)
	cfg.Postgres.Host = envOr("QUESTD_TEST_POSTGRES_HOST", "localhost")
	cfg.Postgres.User = envOr("QUESTD_TEST_POSTGRES_USER", "questd")
	cfg.Postgres.Password = envOr("QUESTD_TEST_POSTGRES_PASSWORD", "questd")
	cfg.Postgres.Database = envOr("QUESTD_TEST_POSTGRES_DATABASE", "questd_test")
	if port, err := strconv.Atoi(os.Getenv("QUESTD_TEST_POSTGRES_PORT")); err == nil {
		cfg.Postgres.Port = port
	}

	ctx := context.Background()
	db, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	playerID := "pg-test-" + t.Name()
	defer db.DeleteQuestLog(ctx, playerID)

	if err := db.SaveQuestLog(ctx, playerID, []byte(`{"quests":[]}`)); err != nil {
		t.Fatalf("SaveQuestLog failed: %v", err)
	}
	data, ok, err := db.LoadQuestLog(ctx, playerID)
	if err != nil || !ok || string(data) != `{"quests":[]}` {
		t.Errorf("LoadQuestLog = %s, %v, %v", data, ok, err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
