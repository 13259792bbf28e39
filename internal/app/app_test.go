package app_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/liuwenjie/api-mock-server/internal/app"
)

func writeTestArchive(t *testing.T, dir string) string {
	t.Helper()
	archive := `{
  "log": {
    "entries": [
      {
        "request": {"method": "GET", "url": "http://api.example.com/api/health"},
        "response": {
          "status": 200,
          "headers": [{"name": "Content-Type", "value": "application/json"}],
          "content": {"mimeType": "application/json", "text": "{\"status\":\"ok\"}"}
        }
      }
    ]
  }
}`
	path := filepath.Join(dir, "session.har")
	if err := os.WriteFile(path, []byte(archive), 0o644); err != nil {
		t.Fatalf("failed to write archive file: %v", err)
	}
	return path
}

func TestNew_Success(t *testing.T) {
	dir := t.TempDir()
	path := writeTestArchive(t, dir)

	cfg := app.DefaultConfig()
	cfg.ArchivePath = path

	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a == nil {
		t.Fatal("expected non-nil App")
	}
}

func TestNew_MissingArchive(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.ArchivePath = "/nonexistent/session.har"

	_, err := app.New(cfg)
	if err == nil {
		t.Error("expected error for missing archive file")
	}
}

func TestNew_InvalidFilter(t *testing.T) {
	dir := t.TempDir()
	path := writeTestArchive(t, dir)

	cfg := app.DefaultConfig()
	cfg.ArchivePath = path
	cfg.Filter = "status =="

	_, err := app.New(cfg)
	if err == nil {
		t.Error("expected error for invalid filter expression")
	}
}

func TestRun_StartsAndShutdownsGracefully(t *testing.T) {
	dir := t.TempDir()
	path := writeTestArchive(t, dir)

	port := freePort(t)
	cfg := app.DefaultConfig()
	cfg.ArchivePath = path
	cfg.Port = port

	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
	}()

	addr := fmt.Sprintf("http://localhost:%d/__admin/health", port)
	waitForServer(t, addr, 3*time.Second)

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRun_FailsOnInvalidArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.har")
	if err := os.WriteFile(path, []byte(`{"log": {}}`), 0o644); err != nil {
		t.Fatalf("failed to write archive file: %v", err)
	}

	cfg := app.DefaultConfig()
	cfg.ArchivePath = path

	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Run(ctx); err == nil {
		t.Error("expected error for archive without log.entries")
	}
}

func TestRun_ServesRecordedEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeTestArchive(t, dir)

	port := freePort(t)
	cfg := app.DefaultConfig()
	cfg.ArchivePath = path
	cfg.Port = port

	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
	}()

	addr := fmt.Sprintf("http://localhost:%d/api/health", port)
	waitForServer(t, addr, 3*time.Second)

	resp, err := http.Get(addr)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server not ready at %s after %v", url, timeout)
}
