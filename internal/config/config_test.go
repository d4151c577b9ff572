package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseConfig_ValidFull(t *testing.T) {
	yaml := `
log:
  level: debug
  format: json
cache:
  max_sites: 128
trace:
  enabled: true
  path: traces/events.db
grpc:
  target: localhost:50051
  import_paths: [proto]
  protos: [greeter.proto]
  timeout: 2s
`
	cfg, err := ParseConfig([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.Cache.MaxSites != 128 {
		t.Errorf("max_sites = %d, want 128", cfg.Cache.MaxSites)
	}
	if !cfg.Trace.Enabled || cfg.Trace.Path != "traces/events.db" {
		t.Errorf("trace = %+v", cfg.Trace)
	}
	if cfg.Grpc.Target != "localhost:50051" {
		t.Errorf("target = %q", cfg.Grpc.Target)
	}
	if got := cfg.Grpc.TimeoutDuration(); got != 2*time.Second {
		t.Errorf("timeout = %s, want 2s", got)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(""), "empty.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}
	if cfg.Trace.Path != DefaultTracePath {
		t.Errorf("trace path = %q", cfg.Trace.Path)
	}
	if got := cfg.Grpc.TimeoutDuration(); got != 10*time.Second {
		t.Errorf("timeout = %s, want 10s", got)
	}
	if d := Default(); d.Log != cfg.Log || d.Trace != cfg.Trace || d.Grpc.Timeout != cfg.Grpc.Timeout {
		t.Errorf("Default() = %+v, parsed empty = %+v", d, cfg)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad level", "log:\n  level: verbose\n", "log.level: must be one of"},
		{"bad format", "log:\n  format: xml\n", "log.format: must be one of"},
		{"negative cache", "cache:\n  max_sites: -1\n", "cache.max_sites: must be at least 0"},
		{"protos without target", "grpc:\n  protos: [a.proto]\n", "grpc.target: required when protos is set"},
		{"not a proto", "grpc:\n  target: x:1\n  protos: [a.txt]\n", "must end with .proto"},
		{"bad timeout", "grpc:\n  timeout: soon\n", "grpc.timeout"},
		{"zero timeout", "grpc:\n  timeout: 0s\n", "must be positive"},
		{"bad yaml", "log: [", "parsing bad.yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.yaml), "bad.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not contain %q", err, tc.want)
			}
		})
	}
}

func TestLoadConfig_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	content := "trace:\n  path: events.db\ngrpc:\n  import_paths: [proto, /abs/proto]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(dir, "events.db"); cfg.Trace.Path != want {
		t.Errorf("trace path = %q, want %q", cfg.Trace.Path, want)
	}
	if want := filepath.Join(dir, "proto"); cfg.Grpc.ImportPaths[0] != want {
		t.Errorf("import path = %q, want %q", cfg.Grpc.ImportPaths[0], want)
	}
	if cfg.Grpc.ImportPaths[1] != "/abs/proto" {
		t.Errorf("absolute import path changed to %q", cfg.Grpc.ImportPaths[1])
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestFindConfig_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "a", AltConfigFileName)
	if err := os.WriteFile(want, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := FindConfig(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("FindConfig = %q, want %q", got, want)
	}

	// the primary name wins in the same directory
	primary := filepath.Join(root, "a", ConfigFileName)
	if err := os.WriteFile(primary, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := FindConfig(nested); got != primary {
		t.Errorf("FindConfig = %q, want %q", got, primary)
	}
}

func TestLogConfig_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("unexpected output %q", out)
	}

	buf.Reset()
	LogConfig{Level: "debug", Format: "text"}.Logger(&buf).Debug("dbg")
	if !strings.Contains(buf.String(), "msg=dbg") {
		t.Errorf("text output %q", buf.String())
	}
}
