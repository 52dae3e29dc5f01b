package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"seedslot/go-backend/internal/composition/daemonserver"
	"seedslot/go-backend/internal/config"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to seedslot.yaml (optional)")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address override")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-Seedslot-RPC-Token (optional)")
	storage := flag.String("storage", "", "Storage driver override: memory | file | sqlite | postgres")
	flag.Parse()
	if *showVersion {
		fmt.Printf("ledgerd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *rpcAddr != "" {
		_ = os.Setenv("SEEDSLOT_RPC_ADDR", *rpcAddr)
	}
	if *rpcToken != "" {
		_ = os.Setenv("SEEDSLOT_RPC_TOKEN", *rpcToken)
	}
	if *storage != "" {
		_ = os.Setenv("SEEDSLOT_STORAGE_DRIVER", *storage)
	}

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		log.Fatalf("ledgerd failed to load config: %v", err)
	}
	logger := daemonserver.NewLogger(os.Stdout, cfg.Log.Level)
	node, err := daemonserver.Build(cfg, version, logger)
	if err != nil {
		log.Fatalf("ledgerd failed to initialize: %v", err)
	}

	logger.Info("ledgerd starting", "component", "ledgerd", "version", version, "commit", commit)
	if err := node.Run(ctx); err != nil {
		log.Fatalf("ledgerd failed: %v", err)
	}
	logger.Info("ledgerd stopped", "component", "ledgerd")
}
