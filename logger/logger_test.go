package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesFile(t *testing.T) {
	dir := t.TempDir()
	err := Init(Config{Enabled: true, Level: "info", File: "logs/run.log"}, dir)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	Info("session established", "id", "sess-1")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "run.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "session established") {
		t.Fatalf("log file missing entry: %q", data)
	}
}

func TestSuspendParksTerminalSink(t *testing.T) {
	if err := Init(Config{Enabled: true, Stdout: true}, t.TempDir()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	resume := Suspend()
	if cur.terminal {
		t.Fatal("terminal sink should be parked during Suspend")
	}

	resume()
	if !cur.terminal {
		t.Fatal("resume should restore the terminal sink")
	}

	// Idempotent on repeated exit paths.
	resume()
	if !cur.terminal {
		t.Fatal("repeated resume must not toggle the sink again")
	}
}

func TestSuspendKeepsFileSink(t *testing.T) {
	dir := t.TempDir()
	if err := Init(Config{Enabled: true, File: "run.log"}, dir); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	resume := Suspend()
	Warn("mid-session warning")
	resume()

	data, err := os.ReadFile(filepath.Join(dir, "run.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "mid-session warning") {
		t.Fatalf("file sink should keep recording during Suspend: %q", data)
	}
}

func TestDisabledLoggerDiscards(t *testing.T) {
	dir := t.TempDir()
	if err := Init(Config{Enabled: false, File: "run.log"}, dir); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	Error("should go nowhere")

	if _, err := os.Stat(filepath.Join(dir, "run.log")); !os.IsNotExist(err) {
		t.Fatal("disabled logger must not create a log file")
	}
}

func TestLevelFrom(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"warn":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range cases {
		if got := levelFrom(in).String(); got != want {
			t.Fatalf("levelFrom(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestResolvePath(t *testing.T) {
	if got := resolvePath("/var/log/x.log", "/cfg"); got != "/var/log/x.log" {
		t.Fatalf("resolvePath(abs) = %q", got)
	}
	if got := resolvePath("logs/x.log", "/cfg"); got != "/cfg/logs/x.log" {
		t.Fatalf("resolvePath(rel) = %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		if got := resolvePath("~/x.log", "/cfg"); got != filepath.Join(home, "x.log") {
			t.Fatalf("resolvePath(~) = %q", got)
		}
	}
}
