// Command linkpulse monitors provider uplinks with ICMP probes, alerts on
// confirmed outages and serves a live status dashboard.
//
// Usage:
//
//	linkpulse [-config path/to/linkpulse.yaml]
//	linkpulse version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HerbHall/linkpulse/internal/config"
	"github.com/HerbHall/linkpulse/internal/dashboard"
	"github.com/HerbHall/linkpulse/internal/event"
	"github.com/HerbHall/linkpulse/internal/gateway"
	"github.com/HerbHall/linkpulse/internal/linkmon"
	"github.com/HerbHall/linkpulse/internal/mqtt"
	"github.com/HerbHall/linkpulse/internal/notify"
	"github.com/HerbHall/linkpulse/internal/registry"
	"github.com/HerbHall/linkpulse/internal/report"
	"github.com/HerbHall/linkpulse/internal/server"
	"github.com/HerbHall/linkpulse/internal/store"
	"github.com/HerbHall/linkpulse/internal/version"
	"github.com/HerbHall/linkpulse/internal/ws"
	"github.com/HerbHall/linkpulse/pkg/plugin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(version.Info())
		return
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "linkpulse: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	v, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := config.New(v)

	logger, err := config.NewLogger(v)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("linkpulse starting", zap.String("version", version.Short()))
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults", zap.String("component", "config"))
	}

	endpoints, err := config.Endpoints(v)
	if err != nil {
		return err
	}
	logger.Info("link table loaded", zap.String("component", "config"), zap.Int("links", len(endpoints)))

	srvCfg, err := server.ConfigFromViper(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The database is only opened when something stores data in it.
	var db *store.SQLiteStore
	var pluginStore plugin.Store
	if cfg.GetString("plugins.linkmon.ledger_driver") == "sqlite" {
		dbPath := v.GetString("database.path")
		db, err = store.New(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.CheckVersion(ctx, version.Short()); err != nil {
			return fmt.Errorf("database version check: %w", err)
		}
		pluginStore = db
		logger.Info("database initialized", zap.String("component", "database"), zap.String("path", dbPath))
	}

	bus := event.NewBus(logger.Named("event"))
	notifier := notify.FromConfig(cfg.Sub("notify"))
	logger.Info("notifier configured", zap.String("component", "notify"), zap.String("type", notifier.Type()))

	monitor := linkmon.New(endpoints, notifier)
	reg := registry.New(logger.Named("registry"))
	modules := []plugin.Plugin{
		monitor,
		report.New(notifier),
		gateway.New(),
		mqtt.New(endpoints),
	}
	for _, m := range modules {
		if err := reg.Register(m); err != nil {
			return fmt.Errorf("register plugin: %w", err)
		}
	}
	if err := reg.Validate(); err != nil {
		return fmt.Errorf("plugin validation: %w", err)
	}

	if err := reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Store:   pluginStore,
			Bus:     bus,
			Plugins: reg,
		}
	}); err != nil {
		return fmt.Errorf("initialize plugins: %w", err)
	}

	wsHandler := ws.NewHandler(bus, srvCfg.AllowedOrigins, logger.Named("ws"))
	defer wsHandler.Close()

	ready := server.ReadinessChecker(monitor.Ready)
	srv := server.New(srvCfg, reg, logger.Named("server"), ready, dashboard.Handler(),
		linkmon.NewStatusAPI(monitor.Monitor()),
		wsHandler,
	)

	if err := reg.StartAll(ctx); err != nil {
		return fmt.Errorf("start plugins: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	logger.Info("linkpulse ready", zap.String("addr", srvCfg.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveErr:
		runErr = err
		if runErr == nil {
			runErr = errors.New("HTTP server stopped unexpectedly")
		}
		logger.Error("HTTP server failed", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	reg.StopAll(shutdownCtx)

	logger.Info("linkpulse stopped")
	return runErr
}
