package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestRun_ServeCommand_UnreachableDB_ReturnsError はserveコマンドがDB接続に失敗した場合にエラーを返すことを検証する。
func TestRun_ServeCommand_UnreachableDB_ReturnsError(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	setTestEnv(t)

	for _, args := range [][]string{{"serve"}, {}} {
		var buf bytes.Buffer
		err := Run(&buf, args)
		if err == nil {
			t.Fatalf("Run(%v) should fail when the database is unreachable", args)
		}
		if !strings.Contains(err.Error(), "database") {
			t.Errorf("error should mention the database, got %v", err)
		}
	}
}

func TestRun_MigrateCommand_FirestoreIsNoop(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	setTestEnv(t)
	t.Setenv("STORE_BACKEND", "firestore")
	t.Setenv("FIRESTORE_PROJECT_ID", "flagfinder-test")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"migrate"}); err != nil {
		t.Fatalf("migrate on firestore should be a no-op, got %v", err)
	}
	if !strings.Contains(buf.String(), "store backend has no migrations") {
		t.Errorf("expected no-op log, got %s", buf.String())
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("BASE_URL", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("DATABASE_URL", "")

	var buf bytes.Buffer
	err := Run(&buf, []string{"serve"})
	if err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_Healthcheck_NoServer_ReturnsError(t *testing.T) {
	t.Setenv("SERVER_PORT", "1")

	if err := Run(&bytes.Buffer{}, []string{"healthcheck"}); err == nil {
		t.Fatal("healthcheck should fail without a running server")
	}
}
