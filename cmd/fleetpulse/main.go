package main

//	@title			FleetPulse API
//	@version		0.1.0
//	@description	Device liveness monitoring: sweeps, per-device state and offline alerts.
//	@BasePath		/api/v1

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/HerbHall/fleetpulse/api/swagger"
	"github.com/HerbHall/fleetpulse/internal/config"
	"github.com/HerbHall/fleetpulse/internal/event"
	"github.com/HerbHall/fleetpulse/internal/liveness"
	"github.com/HerbHall/fleetpulse/internal/registry"
	"github.com/HerbHall/fleetpulse/internal/server"
	"github.com/HerbHall/fleetpulse/internal/store"
	"github.com/HerbHall/fleetpulse/internal/version"
	"github.com/HerbHall/fleetpulse/internal/ws"
	"github.com/HerbHall/fleetpulse/pkg/plugin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "sweep":
			os.Exit(runSweep(os.Args[2:]))
		case "import":
			os.Exit(runImport(os.Args[2:]))
		case "version":
			fmt.Println(version.Info())
			return
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if err := serve(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fleetpulse: %v\n", err)
		os.Exit(1)
	}
}

// app holds the shared services every command builds the same way.
type app struct {
	v        *viper.Viper
	logger   *zap.Logger
	db       *store.SQLiteStore
	bus      *event.Bus
	reg      *registry.Registry
	liveness *liveness.Module
}

// bootstrap loads configuration, opens the database and initializes the
// liveness module. adjust runs on the raw config before plugins read it.
func bootstrap(ctx context.Context, configPath string, adjust func(v *viper.Viper)) (*app, error) {
	// Load configuration (before logger, so log level/format can be configured).
	v, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if adjust != nil {
		adjust(v)
	}

	logger, err := config.NewLogger(v)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults", zap.String("component", "config"))
	}

	dbPath := v.GetString("database.path")
	if dbPath == "" {
		dbPath = "fleetpulse.db"
	}
	db, err := store.Open(ctx, dbPath, version.Short())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Info("database initialized", zap.String("component", "database"), zap.String("path", dbPath))

	rt := &app{
		v:        v,
		logger:   logger,
		db:       db,
		bus:      event.NewBus(logger.Named("event")),
		reg:      registry.New(logger.Named("registry")),
		liveness: liveness.New(),
	}

	if err := rt.reg.Register(rt.liveness); err != nil {
		db.Close()
		return nil, fmt.Errorf("register plugin: %w", err)
	}
	if err := rt.reg.Validate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("plugin validation: %w", err)
	}

	cfg := config.New(v)
	if err := rt.reg.InitAll(ctx, func(name string) plugin.Dependencies {
		return plugin.Dependencies{
			Config:  cfg.Sub("plugins." + name),
			Logger:  logger.Named(name),
			Store:   db,
			Bus:     rt.bus,
			Plugins: rt.reg,
		}
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize plugins: %w", err)
	}
	return rt, nil
}

// close stops plugins, drains async events and closes the database.
func (rt *app) close(ctx context.Context) {
	rt.reg.StopAll(ctx)
	rt.bus.Drain()
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("database close failed", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

func serve(configPath string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := bootstrap(ctx, configPath, nil)
	if err != nil {
		return err
	}
	logger := rt.logger
	logger.Info("FleetPulse server starting", zap.String("version", version.Short()))

	if err := rt.reg.StartAll(ctx); err != nil {
		rt.close(context.Background())
		return fmt.Errorf("start plugins: %w", err)
	}

	srvCfg, err := server.ConfigFrom(rt.v)
	if err != nil {
		rt.close(context.Background())
		return fmt.Errorf("server configuration: %w", err)
	}

	wsHandler := ws.NewHandler(rt.bus, logger.Named("ws"), rt.v.GetStringSlice("server.ws_origins")...)
	defer wsHandler.Close()

	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return rt.db.Ping(ctx)
	})
	srv := server.New(srvCfg, rt.reg, logger, readyCheck, wsHandler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	logger.Info("FleetPulse server ready", zap.String("addr", srvCfg.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	rt.close(shutdownCtx)

	logger.Info("FleetPulse server stopped")
	return runErr
}
