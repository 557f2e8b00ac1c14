package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestVersion(t *testing.T) {
	if got := execute(t, "version"); got != "dynresp dev\n" {
		t.Errorf("got %q", got)
	}
}

func TestRoutes(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("log_level: error\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := execute(t, "routes", "--config", cfgPath)
	for _, want := range []string{"/example", "/admin", "role:admin", "Registry:", "/openapi.json", "404.html"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_BadConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"run", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEvents(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "events.db")
	if err := os.WriteFile(cfgPath, []byte("audit:\n  db_path: "+dbPath+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUDIT_DB", "")

	out := execute(t, "events", "--config", cfgPath)
	if !strings.Contains(out, "STATE") {
		t.Errorf("missing header:\n%s", out)
	}
	out = execute(t, "events", "--config", cfgPath, "--prune", "24h")
	if !strings.Contains(out, "pruned 0 events") {
		t.Errorf("prune output: %q", out)
	}
}
