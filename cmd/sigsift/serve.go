package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/sigsift"
)

// createServeCommand creates the serve subcommand
func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	serveFlags := &ServeFlags{ConfigPath: globalFlags.ConfigPath}

	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the sigsift daemon",
		Long: `Start the sigsift daemon: the fixed-cadence filter scheduler plus the
admin HTTP API. All configuration is loaded from a TOML file.

Examples:
  sigsift serve config.toml
  sigsift serve --config=config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if serveFlags.ConfigPath == "" {
				serveFlags.ConfigPath = globalFlags.ConfigPath
			}
			return runServeCommand(serveFlags, args)
		},
	}
	return cmd
}

// detachedCircuit is the world view of a standalone daemon: no circuit is
// attached, so every node is valid, powered, and reads empty inputs.
// Embedders supply their own Circuit instead of running this binary.
type detachedCircuit struct{}

func (detachedCircuit) HasPower(sigsift.NodeID) bool { return true }
func (detachedCircuit) ReadInputs(sigsift.NodeID) (sigsift.List, sigsift.List) {
	return nil, nil
}
func (detachedCircuit) IsValid(sigsift.NodeID) bool { return true }

func runServeCommand(flags *ServeFlags, args []string) error {
	configPath := flags.ConfigPath
	if len(args) > 0 {
		configPath = args[0]
	}
	if configPath == "" {
		return fmt.Errorf("config file required for serve command. Use --config=config.toml or provide as argument")
	}

	cfg, err := sigsift.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	slog.SetDefault(cfg.LoggerConfig().New())

	engine := sigsift.New(sigsift.NewMemorySinkFactory(), detachedCircuit{}, cfg.EveryTicks)
	engine.SetDefaultConfig(cfg.DefaultPatch())

	if cfg.Store != nil && cfg.Store.Path != "" {
		st, err := sigsift.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = st.Close() }()
		if err := engine.SetStore(st); err != nil {
			return fmt.Errorf("store schema: %w", err)
		}
	}

	if cfg.History != nil {
		var sinks []sigsift.HistorySink
		if cfg.History.PostgresDSN != "" {
			s, err := sigsift.NewPostgresHistorySink(cfg.History.PostgresDSN)
			if err != nil {
				return fmt.Errorf("postgres history: %w", err)
			}
			sinks = append(sinks, s)
		}
		if cfg.History.ClickhouseAddr != "" {
			s, err := sigsift.NewClickHouseHistorySink(cfg.History.ClickhouseAddr, cfg.History.ClickhouseTable)
			if err != nil {
				return fmt.Errorf("clickhouse history: %w", err)
			}
			sinks = append(sinks, s)
		}
		engine.SetHistorySinks(sinks...)
	}

	if cfg.MetricsListen != "" {
		if err := sigsift.RegisterMetricsDefault(); err != nil {
			slog.Warn("metrics registration failed", "err", err)
		}
		go func() {
			if err := sigsift.ServeMetrics(cfg.MetricsListen); err != nil {
				slog.Error("metrics server error", "err", err)
			}
		}()
	}

	listen := cfg.Listen
	if listen == "" {
		listen = ":8080"
	}
	srv, err := sigsift.NewHTTPServer(listen, cfg.BasePath, engine)
	if err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	if err := engine.Start(cfg.TickInterval); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	slog.Info("sigsift daemon started", "listen", listen, "base_path", cfg.BasePath,
		"tick_interval", cfg.TickInterval, "every_ticks", cfg.EveryTicks)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	engine.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
