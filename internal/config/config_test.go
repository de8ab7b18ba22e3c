package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := load(source{file: map[string]string{
		"STORAGE_DIR":    filepath.Join(dir, "objects"),
		"SESSION_SECRET": "s3cret",
	}})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("unexpected port: %s", cfg.HTTPPort)
	}
	if cfg.MaxUploadBytes != 50*1024*1024 {
		t.Fatalf("unexpected max upload bytes: %d", cfg.MaxUploadBytes)
	}
	if cfg.LoginMaxAttempts != 5 || cfg.LoginLockout != 15*time.Minute {
		t.Fatalf("unexpected lockout policy: %d/%s", cfg.LoginMaxAttempts, cfg.LoginLockout)
	}
	if cfg.AuthMode != AuthModeSession {
		t.Fatalf("unexpected auth mode: %s", cfg.AuthMode)
	}
	if _, err := os.Stat(cfg.StorageDir); err != nil {
		t.Fatalf("expected storage dir to be created: %v", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_OP_TIMEOUT", "5s")

	cfg, err := load(source{file: map[string]string{
		"PORT":           "7070",
		"STORAGE_DRIVER": "s3",
		"S3_BUCKET":      "gallery",
		"AUTH_MODE":      "apikey",
		"API_KEYS":       "a, b ,",
	}})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if cfg.HTTPPort != "9090" {
		t.Fatalf("env should win over file, got %s", cfg.HTTPPort)
	}
	if cfg.StoreOpTimeout != 5*time.Second {
		t.Fatalf("unexpected store timeout: %s", cfg.StoreOpTimeout)
	}
	if cfg.S3Bucket != "gallery" {
		t.Fatalf("file value not applied: %s", cfg.S3Bucket)
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[1] != "b" {
		t.Fatalf("unexpected api keys: %+v", cfg.APIKeys)
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	if _, err := load(source{file: map[string]string{"STORAGE_DRIVER": "ftp"}}); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestLoad_SessionModeRequiresSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	_, err := load(source{file: map[string]string{
		"STORAGE_DRIVER": "s3",
		"AUTH_MODE":      "session",
	}})
	if err == nil {
		t.Fatal("expected error when SESSION_SECRET is missing")
	}
}

func TestLoadFile_ParsesFlatYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fileshelf.yaml")
	if err := os.WriteFile(path, []byte("PORT: \"7000\"\nS3_BUCKET: media\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	values, err := loadFile(path)
	if err != nil {
		t.Fatalf("loadFile returned error: %v", err)
	}
	if values["PORT"] != "7000" || values["S3_BUCKET"] != "media" {
		t.Fatalf("unexpected values: %+v", values)
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: 5432, DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "disable"}
	if got := cfg.PostgresDSN(); got != "postgres://u:p@db:5432/n?sslmode=disable" {
		t.Fatalf("unexpected dsn: %s", got)
	}
}
