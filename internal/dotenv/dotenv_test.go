package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestLoadFileSetsVars(t *testing.T) {
	path := writeEnvFile(t, `
# comment
OPENAI_API_KEY=sk-test-123
export QUOTED="with spaces"
SINGLE='single'
`)
	for _, key := range []string{"OPENAI_API_KEY", "QUOTED", "SINGLE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if got := os.Getenv("OPENAI_API_KEY"); got != "sk-test-123" {
		t.Errorf("OPENAI_API_KEY = %q", got)
	}
	if got := os.Getenv("QUOTED"); got != "with spaces" {
		t.Errorf("QUOTED = %q", got)
	}
	if got := os.Getenv("SINGLE"); got != "single" {
		t.Errorf("SINGLE = %q", got)
	}
}

func TestLoadFilePreservesExisting(t *testing.T) {
	path := writeEnvFile(t, "KEEP_ME=from_file\n")
	t.Setenv("KEEP_ME", "from_env")

	if err := LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := os.Getenv("KEEP_ME"); got != "from_env" {
		t.Errorf("KEEP_ME = %q, want existing env value", got)
	}
}

func TestLoadFileMissingIsNoError(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("LoadFile(missing) = %v, want nil", err)
	}
}
