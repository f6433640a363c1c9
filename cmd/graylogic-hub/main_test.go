package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("GRAYLOGIC_CONFIG", path)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_ShutsDownOnCancel verifies a minimal hub starts, journals to
// SQLite and returns cleanly when the context ends.
func TestRun_ShutsDownOnCancel(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hub.db")
	writeConfig(t, `
site:
  id: test-site
database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5
  audit:
    enabled: true
mqtt:
  enabled: false
logging:
  level: error
  format: text
  output: stderr
`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("journal database not created: %v", err)
	}
}

// TestRun_AllBackendsFail verifies startup fails when no enabled adapter comes up.
func TestRun_AllBackendsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	t.Setenv("GRAYLOGIC_HOMEASSISTANT_TOKEN", "")
	writeConfig(t, `
site:
  id: test-site
mqtt:
  enabled: false
logging:
  level: error
  output: stderr
backends:
  homeassistant:
    enabled: true
    base_url: "`+srv.URL+`"
    token: wrong
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); !errors.Is(err, errNoBackends) {
		t.Fatalf("run() error = %v, want errNoBackends", err)
	}
}

// TestRun_ServesAPI verifies the API comes up with the hub and stops on cancel.
func TestRun_ServesAPI(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	writeConfig(t, fmt.Sprintf(`
site:
  id: test-site
api:
  enabled: true
  host: 127.0.0.1
  port: %d
logging:
  level: error
  output: stderr
`, port))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url) //nolint:gosec // Test URL
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("health status = %d, want 200", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("API never answered: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestHubConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Executor.RetryAttempts = 4
	cfg.Executor.Confirm = false

	hc := hubConfig(cfg)
	if hc.Executor.Retry.Attempts != 4 || hc.Cache.Retry.Attempts != 4 {
		t.Errorf("retry attempts = %d / %d, want 4", hc.Executor.Retry.Attempts, hc.Cache.Retry.Attempts)
	}
	if hc.Executor.Retry.Multiplier != 2 {
		t.Errorf("Multiplier = %v, want 2", hc.Executor.Retry.Multiplier)
	}
	if hc.Executor.Confirm {
		t.Error("Confirm = true, want false")
	}
	if hc.Cache.TTL != 60*time.Second {
		t.Errorf("TTL = %v, want 60s", hc.Cache.TTL)
	}
}

func TestBuildAdapters(t *testing.T) {
	cfg := config.Default()
	cfg.Backends.SmartThings = config.SmartThingsConfig{Enabled: true, Token: "t"}
	cfg.Backends.HomeAssistant = config.HomeAssistantConfig{Enabled: true, BaseURL: "http://ha.local:8123", Token: "t"}

	adapters, err := buildAdapters(cfg, logging.Default())
	if err != nil {
		t.Fatalf("buildAdapters() error = %v", err)
	}
	if len(adapters) != 2 {
		t.Fatalf("buildAdapters() = %d adapters, want 2", len(adapters))
	}
	if adapters[0].Backend() != "smartthings" || adapters[1].Backend() != "homeassistant" {
		t.Errorf("backends = %s, %s", adapters[0].Backend(), adapters[1].Backend())
	}
}
