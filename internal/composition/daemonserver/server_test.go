package daemonserver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"seedslot/go-backend/internal/config"
	"seedslot/go-backend/internal/ledger/sqlstore"
)

func TestBuildInMemoryNodeServesRPC(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	n, err := Build(cfg, "test", NewLogger(&bytes.Buffer{}, "error"))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if n.Recorder != nil {
		t.Fatal("metrics disabled must not create a recorder")
	}
	if n.Journal.ID() != cfg.JournalProgramID() || n.Voting.ID() != cfg.VotingProgramID() {
		t.Fatal("programs must use configured ids")
	}

	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"health_check"}`))
	rec := httptest.NewRecorder()
	n.RPC.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d: %s", rec.Code, rec.Body.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Run(ctx); err != nil {
		t.Fatalf("run with cancelled context failed: %v", err)
	}
}

func TestBuildWiresMetricsRecorder(t *testing.T) {
	cfg := config.Default()
	n, err := Build(cfg, "test", NewLogger(&bytes.Buffer{}, "error"))
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if n.Recorder == nil || n.metricsServer == nil || n.metricsServer.Addr != cfg.Metrics.Addr {
		t.Fatal("expected metrics server on configured addr")
	}
	if err := n.Ledger.Airdrop(context.Background(), cfg.JournalProgramID(), 1); err != nil {
		t.Fatalf("airdrop failed: %v", err)
	}
}

func TestBuildStoreDrivers(t *testing.T) {
	dir := t.TempDir()

	store, err := BuildStore(config.StorageConfig{Driver: config.DriverMemory})
	if err != nil || store != nil {
		t.Fatalf("memory driver should have no store, got %v, %v", store, err)
	}

	store, err = BuildStore(config.StorageConfig{Driver: config.DriverFile, Path: filepath.Join(dir, "ledger.enc"), Passphrase: "pw"})
	if err != nil || store == nil {
		t.Fatalf("file store failed: %v", err)
	}

	store, err = BuildStore(config.StorageConfig{Driver: config.DriverSQLite, Path: filepath.Join(dir, "ledger.db")})
	if err != nil {
		t.Fatalf("sqlite store failed: %v", err)
	}
	if _, ok := store.(*sqlstore.Store); !ok {
		t.Fatalf("expected sql store, got %T", store)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close sqlite store failed: %v", err)
	}

	if _, err := BuildStore(config.StorageConfig{Driver: "mysql"}); err == nil {
		t.Fatal("expected unknown driver to fail")
	}
}

func TestNewLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug")
	logger.Debug("boot", "rpc_token", "t0k", "owner", "alice")
	out := buf.String()
	if strings.Contains(out, "t0k") || strings.Contains(out, `"alice"`) {
		t.Fatalf("secret or identity leaked: %s", out)
	}
	if !strings.Contains(out, "owner_fp") {
		t.Fatalf("expected fingerprinted owner: %s", out)
	}

	buf.Reset()
	NewLogger(&buf, "warn").Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level: %s", buf.String())
	}
}
