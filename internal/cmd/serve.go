package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/foreman/internal/config"
	"github.com/harrison/foreman/internal/filelock"
	"github.com/harrison/foreman/internal/gateway"
	"github.com/harrison/foreman/internal/history"
	"github.com/harrison/foreman/internal/logger"
	"github.com/harrison/foreman/internal/registry"
	"github.com/harrison/foreman/internal/scheduler"
	"github.com/harrison/foreman/internal/server"
	"github.com/harrison/foreman/internal/store"
	"github.com/harrison/foreman/internal/workflow"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator",
		Long: `Run the orchestrator: register the agent fleet, start the scheduler
loop, and expose the HTTP API.

Configuration is loaded from .foreman/config.yaml if present; a missing
file means defaults (localhost API, localhost bridge, the stock
pr/report/branch agent fleet).

Examples:
  foreman serve
  foreman serve --config /etc/foreman/config.yaml
  foreman serve --listen :9090`,
		Args: cobra.NoArgs,
		RunE: serveCommand,
	}

	cmd.Flags().String("listen", "", "HTTP API listen address (overrides config)")
	cmd.Flags().String("bridge", "", "Tool bridge base URL (overrides config)")
	cmd.Flags().String("log-level", "", "Log verbosity: trace, debug, info, warn, error")

	return cmd
}

func serveCommand(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.ListenAddr = v
	}
	if v, _ := cmd.Flags().GetString("bridge"); v != "" {
		cfg.BridgeURL = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}

	log := logger.NewConsoleLogger(os.Stdout, cfg.LogLevel)

	// One orchestrator per data dir.
	lock, err := filelock.AcquireDataDir(cfg.LockPath())
	if err != nil {
		return err
	}
	defer lock.Unlock()

	hist, err := history.NewStore(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer hist.Close()

	taskStore := store.New()
	reg := registry.New()
	for _, a := range cfg.Agents {
		if err := reg.Register(a.Agent()); err != nil {
			return fmt.Errorf("register agent: %w", err)
		}
		log.LogInfo(fmt.Sprintf("registered agent %s (%v)", a.ID, a.Capabilities))
	}

	bridge := gateway.New(cfg.BridgeURL, cfg.BridgeTimeout)
	sched := scheduler.New(taskStore, reg, bridge, scheduler.Options{
		TickInterval:      cfg.TickInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Logger:            log,
		Recorder:          hist,
	})
	workflows := workflow.NewService(taskStore, hist)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	defer sched.Stop()

	api := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(workflows, reg, taskStore).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.LogInfo(fmt.Sprintf("API listening on %s, bridge %s", cfg.ListenAddr, cfg.BridgeURL))
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.LogInfo("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.LogWarn(fmt.Sprintf("API shutdown: %v", err))
	}
	return nil
}
