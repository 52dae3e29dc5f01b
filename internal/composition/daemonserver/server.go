package daemonserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"seedslot/go-backend/internal/adapters/rpc"
	"seedslot/go-backend/internal/config"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/metrics"
	"seedslot/go-backend/internal/platform/privacylog"
	"seedslot/go-backend/internal/program"

	"golang.org/x/sync/errgroup"
)

const componentName = "ledgerd"

// Node is a running ledger with its programs, rpc surface and metrics endpoint.
type Node struct {
	Ledger   *ledger.Ledger
	Journal  *program.JournalProgram
	Voting   *program.VotingProgram
	Recorder *metrics.Recorder
	RPC      *rpc.Server

	metricsServer *http.Server
	logger        *slog.Logger
}

// NewLogger builds the JSON logger used by the daemon with secrets redacted and
// wallet identities fingerprinted.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(privacylog.WrapHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// Build wires storage, ledger, programs, rpc and metrics from cfg.
func Build(cfg config.Config, version string, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, err := BuildStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	var recorder *metrics.Recorder
	opts := ledger.Options{Rent: cfg.Rent, Store: store, Logger: logger}
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
		opts.Recorder = recorder
	}
	l, err := ledger.New(opts)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	journal := program.NewJournalProgram(cfg.JournalProgramID())
	voting := program.NewVotingProgram(cfg.VotingProgramID())
	l.Register(journal)
	l.Register(voting)

	srv, err := rpc.NewServer(rpc.Options{
		Addr:           cfg.RPC.Addr,
		Token:          cfg.RPC.Token,
		RateLimitRPS:   cfg.RPC.RateLimitRPS,
		RateLimitBurst: cfg.RPC.RateLimitBurst,
		MaxBodyBytes:   cfg.RPC.MaxBodyBytes,
		RequestTimeout: cfg.RPC.RequestTimeout,
		Ledger:         l,
		Journal:        journal,
		Voting:         voting,
		Metrics:        recorder,
		Logger:         logger,
		Storage:        cfg.Storage.Driver,
		Version:        version,
	})
	if err != nil {
		_ = l.Close()
		return nil, err
	}

	n := &Node{
		Ledger:   l,
		Journal:  journal,
		Voting:   voting,
		Recorder: recorder,
		RPC:      srv,
		logger:   logger,
	}
	if recorder != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", recorder.Handler())
		n.metricsServer = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	logger.Info("ledger ready",
		"component", componentName,
		"storage", cfg.Storage.Driver,
		"journal_program", journal.ID().String(),
		"voting_program", voting.ID().String(),
	)
	return n, nil
}

// Run serves rpc and metrics until ctx ends or one of them fails, then flushes the ledger.
func (n *Node) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.RPC.Run(gctx)
	})
	if n.metricsServer != nil {
		g.Go(func() error {
			return n.serveMetrics(gctx)
		})
	}
	err := g.Wait()
	if closeErr := n.Ledger.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (n *Node) serveMetrics(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		n.logger.Info("metrics listening", "component", componentName, "addr", n.metricsServer.Addr)
		err := n.metricsServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.metricsServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
