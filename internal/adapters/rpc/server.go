package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/internal/metrics"
	"seedslot/go-backend/internal/platform/ratelimiter"
	"seedslot/go-backend/internal/program"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultRPCAddr = "127.0.0.1:8899"
	TokenHeader    = "X-Seedslot-RPC-Token"

	defaultMaxBodyBytes   int64 = 1 << 20
	defaultRequestTimeout       = 10 * time.Second
)

// Backend is the ledger surface the rpc server needs.
type Backend interface {
	program.AccountReader
	Submit(ctx context.Context, stx ledger.SignedTransaction) (ledger.Receipt, error)
	Receipt(txID string) (ledger.Receipt, bool)
	Airdrop(ctx context.Context, to address.Address, lamports uint64) error
	GetBalance(addr address.Address) uint64
}

type Options struct {
	Addr           string
	Token          string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	AllowedOrigins []string

	Ledger  Backend
	Journal *program.JournalProgram
	Voting  *program.VotingProgram
	Metrics *metrics.Recorder
	Logger  *slog.Logger

	Storage string
	Version string
}

type Server struct {
	httpServer *http.Server
	handler    http.Handler

	backend  Backend
	journal  *program.JournalProgram
	voting   *program.VotingProgram
	recorder *metrics.Recorder
	logger   *slog.Logger

	token          string
	limiter        *ratelimiter.MapLimiter
	validate       *validator.Validate
	maxBodyBytes   int64
	requestTimeout time.Duration
	origins        map[string]struct{}

	storage string
	version string
	started time.Time
}

func NewServer(opts Options) (*Server, error) {
	if opts.Ledger == nil {
		return nil, errors.New("rpc: ledger is required")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultRPCAddr
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Journal == nil {
		opts.Journal = program.NewJournalProgram(address.Zero)
	}
	if opts.Voting == nil {
		opts.Voting = program.NewVotingProgram(address.Zero)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	mux := http.NewServeMux()
	s := &Server{
		backend:        opts.Ledger,
		journal:        opts.Journal,
		voting:         opts.Voting,
		recorder:       opts.Metrics,
		logger:         opts.Logger,
		token:          strings.TrimSpace(opts.Token),
		limiter:        ratelimiter.New(opts.RateLimitRPS, opts.RateLimitBurst, 10*time.Minute),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxBodyBytes:   opts.MaxBodyBytes,
		requestTimeout: opts.RequestTimeout,
		origins:        make(map[string]struct{}, len(opts.AllowedOrigins)),
		storage:        opts.Storage,
		version:        opts.Version,
		started:        time.Now(),
	}
	for _, origin := range opts.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			s.origins[origin] = struct{}{}
		}
	}
	if s.token == "" {
		s.logger.Warn("rpc token is not set; RPC auth disabled", "component", "rpc")
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	s.handler = mux
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler exposes the routes without binding a listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rpc listening", "component", "rpc", "addr", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
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
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.applyCORS(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.health())
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin != "" && !s.isAllowedOrigin(origin) {
		http.Error(w, "origin is not allowed", http.StatusForbidden)
		return false
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("Vary", "Origin")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, "+TokenHeader)
	return true
}

// isAllowedOrigin accepts loopback origins and any origin configured explicitly.
func (s *Server) isAllowedOrigin(raw string) bool {
	if _, ok := s.origins[raw]; ok {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.TrimSpace(u.Hostname()) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

func (s *Server) authorizeRPC(w http.ResponseWriter, r *http.Request) bool {
	if s.token == "" {
		return true
	}
	if extractRPCToken(r) != s.token {
		s.recordError("Unauthorized")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func extractRPCToken(r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get(TokenHeader))
	if token != "" {
		return token
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

func (s *Server) recordError(kind string) {
	if s.recorder != nil {
		s.recorder.RecordError(kind)
	}
}
