package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile_missing(t *testing.T) {
	err := LoadEnvFile(filepath.Join(t.TempDir(), "nonexistent"))
	if err != nil {
		t.Fatalf("missing file should return nil: %v", err)
	}
}

func TestLoadEnvFile_setsEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	data := "EPGMERGE_TEST_FOO=bar\n# comment\nexport EPGMERGE_TEST_BAZ=\"hello world\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("EPGMERGE_TEST_FOO")
		os.Unsetenv("EPGMERGE_TEST_BAZ")
	})
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("EPGMERGE_TEST_FOO") != "bar" {
		t.Errorf("FOO = %q", os.Getenv("EPGMERGE_TEST_FOO"))
	}
	if os.Getenv("EPGMERGE_TEST_BAZ") != "hello world" {
		t.Errorf("BAZ = %q", os.Getenv("EPGMERGE_TEST_BAZ"))
	}
}

func TestLoadEnvFile_environmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("EPGMERGE_TEST_KEEP=file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EPGMERGE_TEST_KEEP", "env")
	if err := LoadEnvFile(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("EPGMERGE_TEST_KEEP"); got != "env" {
		t.Errorf("KEEP = %q, want env", got)
	}
}
