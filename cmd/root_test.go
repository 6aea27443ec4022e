package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func testCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	c.Flags().String("config", "", "")
	c.Flags().String("db", "", "")
	if err := c.ParseFlags(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return c
}

func TestLoadConfig_Flags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vha.toml")
	if err := os.WriteFile(path, []byte("listen = \":9090\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	db := filepath.Join(dir, "clinic.db")

	cfg, err := loadConfig(testCommand(t, "--config", path, "--db", db))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("listen = %q, want :9090", cfg.Listen)
	}
	if cfg.DBPath != db {
		t.Errorf("db = %q, want %q", cfg.DBPath, db)
	}
}

func TestLoadConfig_EnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte("strategy = \"race\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VHA_CONFIG", path)

	cfg, err := loadConfig(testCommand(t))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Strategy != "race" {
		t.Errorf("strategy = %q, want race", cfg.Strategy)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "predict", "chat", "history", "providers", "symptoms", "llm", "version"}
	for _, name := range want {
		c, _, err := rootCmd.Find([]string{name})
		if err != nil || c.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestResolveVersion_LdflagsWins(t *testing.T) {
	old := version
	t.Cleanup(func() { version = old })

	version = "v1.4.0"
	if got := resolveVersion(); got != "v1.4.0" {
		t.Fatalf("resolveVersion() = %q, want v1.4.0", got)
	}

	version = "(devel)"
	if got := resolveVersion(); got == "" {
		t.Fatal("resolveVersion() returned an empty version")
	}
}
