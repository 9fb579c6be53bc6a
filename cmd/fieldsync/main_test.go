package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Network:")
	requireContains(t, out, "online")
	requireContains(t, out, "Last Sync:")
	requireContains(t, out, "never")
}

func TestStatusJSONOutput(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	requireContains(t, out, `"running"`)
	requireContains(t, out, `"queue_stats"`)
}

func TestDialErrorMentionsDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	missing := filepath.Join(t.TempDir(), "missing.sock")
	_, _, err := runCLI(t, []string{"status"}, missing, env.configPath)
	if err == nil {
		t.Fatal("expected dial against missing socket to fail")
	}
	if !strings.Contains(err.Error(), "fieldsyncd") {
		t.Fatalf("error %q should point at the daemon binary", err)
	}
}

func TestTitleLabel(t *testing.T) {
	cases := map[string]string{
		"last_sync": "Last Sync",
		"network":   "Network",
		"database":  "Database",
	}
	for input, want := range cases {
		if got := titleLabel(input); got != want {
			t.Errorf("titleLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRenderStatusLineColors(t *testing.T) {
	plain := renderStatusLine("network", statusOK, "online", false)
	if strings.Contains(plain, ansiGreen) {
		t.Fatalf("uncolored line contains ANSI codes: %q", plain)
	}
	colored := renderStatusLine("network", statusOK, "online", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("colored line missing ANSI framing: %q", colored)
	}
}

func TestResolveData(t *testing.T) {
	if payload, err := resolveData(""); err != nil || payload != nil {
		t.Fatalf("empty data: payload=%v err=%v", payload, err)
	}
	if _, err := resolveData("{not json"); err == nil {
		t.Fatal("expected malformed JSON to be rejected")
	}
	payload, err := resolveData(`{"a":1}`)
	if err != nil || string(payload) != `{"a":1}` {
		t.Fatalf("inline JSON: payload=%s err=%v", payload, err)
	}

	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{"b":2}`), 0o644); err != nil {
		t.Fatalf("write data file: %v", err)
	}
	payload, err = resolveData("@" + path)
	if err != nil || string(payload) != `{"b":2}` {
		t.Fatalf("file JSON: payload=%s err=%v", payload, err)
	}
}
