package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defistate/poolfactory-go/cmd/factoryd/config"
	"github.com/defistate/poolfactory-go/engine"
	"github.com/defistate/poolfactory-go/host"
	"github.com/defistate/poolfactory-go/protocols/pool"
	"github.com/defistate/poolfactory-go/protocols/poolfactory"
	"github.com/defistate/poolfactory-go/store"
	"github.com/defistate/poolfactory-go/streams/jsonrpc/server"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	close := func() {
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		bootLogger.Error("Failed to load configuration", "error", err)
		close()
	}
	rootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h, err := host.New(host.Config{
		Store:    store.NewMemStore(),
		Logger:   rootLogger.With("component", "host"),
		Registry: registry,
		MaxDepth: cfg.MaxDepth,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize host", "error", err)
		close()
	}

	factory, err := bootstrap(ctx, h, cfg)
	if err != nil {
		rootLogger.Error("Failed to deploy factory", "error", err)
		close()
	}
	rootLogger.Info("Factory deployed", "address", factory, "admin", cfg.Admin)

	rpcServer, err := server.NewServer(server.Config{
		Backend:  h,
		Logger:   rootLogger.With("component", "jsonrpc-server"),
		Registry: registry,
	})
	if err != nil {
		rootLogger.Error("Failed to initialize RPC server", "error", err)
		close()
	}
	defer rpcServer.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/ws", rpcServer.WebsocketHandler([]string{"*"}))
	mux.Handle("/", rpcServer)

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		rootLogger.Info("Serving JSON-RPC", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		rootLogger.Error("HTTP server failed", "error", err)
	case <-ctx.Done():
		rootLogger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// bootstrap stores the contract code, credits genesis balances and instantiates the
// factory. It returns the factory address.
func bootstrap(ctx context.Context, h *host.Host, cfg *config.FactoryConfig) (common.Address, error) {
	poolCode := h.StoreCode(pool.New())
	factoryCode := h.StoreCode(poolfactory.New())

	for _, g := range cfg.Genesis {
		coins, err := engine.ParseCoins(g.Coins)
		if err != nil {
			return common.Address{}, err
		}
		if err := h.Mint(ctx, common.HexToAddress(g.Address), coins); err != nil {
			return common.Address{}, err
		}
	}

	msg, err := json.Marshal(poolfactory.InstantiateMsg{Admin: cfg.Admin, PoolCodeID: poolCode})
	if err != nil {
		return common.Address{}, err
	}
	admin := cfg.AdminAddress()
	res, err := h.Instantiate(ctx, cfg.DeployerAddress(), factoryCode, msg, nil, "pool-factory", &admin)
	if err != nil {
		return common.Address{}, err
	}
	return res.Contract, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadConfig() (*config.FactoryConfig, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
