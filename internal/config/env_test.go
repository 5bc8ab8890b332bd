package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvMissingFile(t *testing.T) {
	if err := LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file must not error, got %v", err)
	}
}

func TestLoadEnvParsesAndQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\n" +
		"BYBIT_API_KEY=abc123\n" +
		"export BYBIT_API_SECRET=\"s3cr3t\"\n" +
		"QUOTED='single'\n" +
		"malformed line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("BYBIT_API_KEY", "")
	os.Unsetenv("BYBIT_API_KEY")
	t.Setenv("BYBIT_API_SECRET", "")
	os.Unsetenv("BYBIT_API_SECRET")
	t.Setenv("QUOTED", "")
	os.Unsetenv("QUOTED")

	if err := LoadEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("BYBIT_API_KEY"); got != "abc123" {
		t.Fatalf("expected abc123, got %q", got)
	}
	if got := os.Getenv("BYBIT_API_SECRET"); got != "s3cr3t" {
		t.Fatalf("expected quotes stripped, got %q", got)
	}
	if got := os.Getenv("QUOTED"); got != "single" {
		t.Fatalf("expected single quotes stripped, got %q", got)
	}
}

func TestLoadEnvDoesNotOverrideExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("BYBIT_API_KEY=from_file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("BYBIT_API_KEY", "from_env")
	if err := LoadEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("BYBIT_API_KEY"); got != "from_env" {
		t.Fatalf("existing env must win, got %q", got)
	}
}
