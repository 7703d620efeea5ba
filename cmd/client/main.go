package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defistate/poolfactory-go/cmd/client/config"
	"github.com/defistate/poolfactory-go/streams/jsonrpc/client"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

const (
	DefaultClientEventBufferSize = 100
	connectTimeout               = 10 * time.Second
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "client",
	Short:         "Talk to a pool factory node over JSON-RPC",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the configuration file.")
}

func main() {
	rootLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	// Create a context that cancels when the OS sends an interrupt (Ctrl+C) or termination signal.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		rootLogger.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// connect loads the configuration and waits for the first connection.
func connect(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), nil))

	c, err := client.NewClient(cmd.Context(), client.Config{
		URL:        cfg.URL,
		Logger:     logger.With("component", "jsonrpc-client"),
		BufferSize: DefaultClientEventBufferSize,
		Sender:     common.HexToAddress(cfg.Sender),
		Factory:    common.HexToAddress(cfg.Factory),
	})
	if err != nil {
		return nil, err
	}

	readyCtx, cancel := context.WithTimeout(cmd.Context(), connectTimeout)
	defer cancel()
	if err := c.WaitReady(readyCtx); err != nil {
		return nil, err
	}
	return c, nil
}
