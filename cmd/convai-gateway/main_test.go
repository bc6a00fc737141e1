// ABOUTME: Tests for the convai-gateway CLI helpers
// ABOUTME: Covers config discovery, flag parsing, local URLs, logging and token minting

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2389/convai-gateway/internal/auth"
	"github.com/2389/convai-gateway/internal/config"
)

const testSecret = "test-secret-key-for-jwt-signing!"

func TestGetConfigPath(t *testing.T) {
	t.Run("env var wins", func(t *testing.T) {
		t.Setenv("CONVAI_CONFIG", "/etc/convai/custom.yaml")
		if got := getConfigPath(); got != "/etc/convai/custom.yaml" {
			t.Errorf("getConfigPath() = %q", got)
		}
	})

	t.Run("xdg file present", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("CONVAI_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", dir)
		path := filepath.Join(dir, "convai", "gateway.yaml")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("environment: development\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := getConfigPath(); got != path {
			t.Errorf("getConfigPath() = %q, want %q", got, path)
		}
	})

	t.Run("no file", func(t *testing.T) {
		t.Setenv("CONVAI_CONFIG", "")
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		if got := getConfigPath(); got != "" {
			t.Errorf("getConfigPath() = %q, want empty", got)
		}
	})
}

func TestFlagValue(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "separate value", args: []string{"--user", "alice"}, want: "alice"},
		{name: "equals form", args: []string{"--user=bob"}, want: "bob"},
		{name: "trimmed", args: []string{"--user", "  carol "}, want: "carol"},
		{name: "absent", args: []string{"--ttl", "1h"}, want: ""},
		{name: "missing value", args: []string{"--user"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := flagValue(tt.args, "user")
			if (err != nil) != tt.wantErr {
				t.Fatalf("flagValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("flagValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalURL(t *testing.T) {
	tests := []struct {
		addr    string
		want    string
		wantErr bool
	}{
		{addr: "0.0.0.0:8001", want: "http://127.0.0.1:8001/health"},
		{addr: ":8001", want: "http://127.0.0.1:8001/health"},
		{addr: "localhost:9000", want: "http://localhost:9000/health"},
		{addr: "[::]:8001", want: "http://127.0.0.1:8001/health"},
		{addr: "no-port", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			got, err := localURL(tt.addr, "/health")
			if (err != nil) != tt.wantErr {
				t.Fatalf("localURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("localURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("text respects level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

		logger.Info("hidden")
		logger.With("component", "gateway").Warn("shown", "user_id", "alice")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("info message logged at warn level: %q", out)
		}
		for _, want := range []string{"shown", "component=", "gateway", "user_id=", "alice"} {
			if !strings.Contains(out, want) {
				t.Errorf("output %q missing %q", out, want)
			}
		}
	})

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
		logger.Debug("hello", "n", 1)

		if !strings.Contains(buf.String(), `"msg":"hello"`) {
			t.Errorf("unexpected json output: %q", buf.String())
		}
	})

	t.Run("unknown level defaults to info", func(t *testing.T) {
		logger := newLogger(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
		if logger.Enabled(t.Context(), slog.LevelDebug) {
			t.Error("debug should be disabled")
		}
		if !logger.Enabled(t.Context(), slog.LevelInfo) {
			t.Error("info should be enabled")
		}
	})
}

func TestRunToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	content := "auth:\n  jwt_secret: \"" + testSecret + "\"\nstorage:\n  data_dir: \"" + dir + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONVAI_CONFIG", path)

	var out bytes.Buffer
	if err := runToken([]string{"--user", "alice", "--ttl", "1h"}, &out); err != nil {
		t.Fatalf("runToken() error = %v", err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	userID, err := verifier.Verify(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if userID != "alice" {
		t.Errorf("token subject = %q, want alice", userID)
	}
}

func TestRunToken_Errors(t *testing.T) {
	t.Setenv("CONVAI_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing user", args: nil},
		{name: "bad ttl", args: []string{"--user", "alice", "--ttl", "soon"}},
		{name: "negative ttl", args: []string{"--user", "alice", "--ttl", "-1h"}},
		{name: "no secret configured", args: []string{"--user", "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runToken(tt.args, &bytes.Buffer{}); err == nil {
				t.Error("runToken() expected error")
			}
		})
	}
}
