package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("API_BASE_URL", "https://online-go.test/api/v1/")
	t.Setenv("REALTIME_URL", "wss://online-go.test/socket")
	t.Setenv("USER_ID", "42")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.NoteSaveDelay != 250*time.Millisecond {
		t.Fatalf("NoteSaveDelay = %v", cfg.NoteSaveDelay)
	}
	if cfg.NoteSavePolicy != "per-report" {
		t.Fatalf("NoteSavePolicy = %q", cfg.NoteSavePolicy)
	}
	if !cfg.DeferSessionOpen {
		t.Fatalf("expected deferred session open by default")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("REALTIME_URL", "wss://x")
	t.Setenv("USER_ID", "1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without API_BASE_URL")
	}
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	setRequired(t)
	t.Setenv("NOTE_SAVE_POLICY", "whenever")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestLoadNormalizesPolicy(t *testing.T) {
	setRequired(t)
	t.Setenv("NOTE_SAVE_POLICY", " Block ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NoteSavePolicy != "block" {
		t.Fatalf("NoteSavePolicy = %q", cfg.NoteSavePolicy)
	}
}

func TestLoadReadsEnvFileWithoutOverriding(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "desk.env")
	body := "DESK_JWT_SECRET=from-file\nUSER_ID=99\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", path)
	t.Cleanup(func() { _ = os.Unsetenv("DESK_JWT_SECRET") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeskJWTSecret != "from-file" {
		t.Fatalf("DeskJWTSecret = %q", cfg.DeskJWTSecret)
	}
	if cfg.UserID != 42 {
		t.Fatalf("env file overrode USER_ID: %d", cfg.UserID)
	}
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	setRequired(t)
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	if _, err := Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
}
