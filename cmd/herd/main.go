package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/herd/internal/agent"
	"github.com/nidhogg/herd/internal/api"
	"github.com/nidhogg/herd/internal/bus"
	"github.com/nidhogg/herd/internal/command"
	"github.com/nidhogg/herd/internal/config"
	"github.com/nidhogg/herd/internal/gateway"
	"github.com/nidhogg/herd/internal/geom"
	"github.com/nidhogg/herd/internal/motion"
	"github.com/nidhogg/herd/internal/species"
	pgstore "github.com/nidhogg/herd/internal/store"
	"github.com/nidhogg/herd/internal/world"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

// run blocks until the server stops; deferred cleanup finishes before the
// exit code reaches main.
func run() int {
	_ = godotenv.Load()

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = config.DefaultPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "herd: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting herd...", zap.String("config", cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Species definitions
	registry := species.NewRegistry(logger)
	n, err := registry.LoadDir(cfg.Species.Dir)
	if err != nil {
		logger.Warn("species dir unavailable", zap.String("dir", cfg.Species.Dir), zap.Error(err))
	}
	logger.Info("Species loaded", zap.Int("count", n))

	// Initialize PostgreSQL store
	var pgStore *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx, cfg.Database.Postgres.Migrations); mErr != nil {
				logger.Error("migration failed", zap.Error(mErr))
				ps.Close()
				return 1
			}
			pgStore = ps
			defer pgStore.Close()
			syncSpecies(ctx, registry, pgStore, logger)
		}
	}

	var source world.SpeciesSource = registry
	var members world.MembershipStore
	if pgStore != nil {
		source = species.Fallback{registry, pgStore}
		members = pgStore
	}

	// Initialize gateway
	gw := gateway.NewGateway(cfg.Gateway.History, logger)
	defer gw.Close()

	restAdapter := gateway.NewRESTAdapter(logger)
	wsHub := gateway.NewWSHub(cfg.Gateway.WSQueue, logger)
	gw.Register(restAdapter)
	gw.Register(wsHub)
	if cfg.Gateway.Log {
		gw.Register(gateway.NewLogAdapter(logger))
	}

	var redisBus *bus.Bus
	if cfg.Gateway.Redis.Enabled {
		b, busErr := bus.New(ctx, cfg.Database.Redis.URL, bus.Options{
			Prefix: cfg.Gateway.Redis.Prefix,
			Frames: cfg.Gateway.Redis.Frames,
		}, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, running without bus", zap.Error(busErr))
		} else {
			redisBus = b
			gw.Register(redisBus)
		}
	}

	// Initialize world simulation
	clock := world.NewWorldClock(cfg.TickInterval(), cfg.World.Speed, logger)
	herd := world.NewHerd(world.Options{
		Species:   source,
		Members:   members,
		Screen:    geom.NewSharedScreen(geom.Size{Width: cfg.World.Screen.Width, Height: cfg.World.Screen.Height}),
		Presenter: gw,
		Executor:  motion.NewWalker(logger),
		Sink:      gw,
		Clock:     clock,
		Settings: agent.Settings{
			SpeechEnabled:  cfg.Speech.Enabled,
			SpeechDuration: cfg.SpeechDuration(),
			SoundEnabled:   cfg.Sound.Enabled,
		},
	}, logger)
	gw.SetHandler(gateway.HerdInput(herd))
	clock.AddListener(herd)

	var autosave *world.Autosave
	if members != nil && cfg.AutosaveInterval() > 0 {
		autosave = world.NewAutosave(cfg.AutosaveInterval(), herd.Save, logger)
		clock.AddListener(autosave)
	}

	restored, err := herd.Restore(ctx)
	if err != nil {
		logger.Warn("restore herd failed", zap.Error(err))
	}
	if restored == 0 {
		for _, id := range cfg.World.Spawn {
			if _, err := herd.Spawn(ctx, id); err != nil {
				logger.Warn("spawn failed", zap.String("species", id), zap.Error(err))
			}
		}
	}
	logger.Info("Herd ready", zap.Int("restored", restored), zap.Int("agents", herd.Len()))

	commands := command.NewRegistry()
	command.RegisterBuiltins(commands, herd, registry)

	// Build HTTP handler
	handler := api.NewHandler(herd, registry, commands, gw, restAdapter, wsHub, clock, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("herd listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.Species.Watch {
		watcher, wErr := species.NewWatcher(registry, cfg.Species.Dir, logger)
		if wErr != nil {
			logger.Warn("species watcher unavailable", zap.Error(wErr))
		} else {
			if pgStore != nil {
				watcher.OnChange(func(id string) { saveSpecies(gctx, registry, pgStore, id, logger) })
			}
			g.Go(func() error { return watcher.Run(gctx) })
		}
	}
	if redisBus != nil {
		redisBus.Start(gctx)
	}
	clock.Start(gctx)
	logger.Info("World simulation started", zap.Duration("tick", clock.Interval()))

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down herd...")
		clock.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if autosave != nil {
			autosave.Wait()
			if err := autosave.SaveNow(shutdownCtx); err != nil {
				logger.Warn("final save failed", zap.Error(err))
			}
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("herd stopped", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(level string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// syncSpecies copies file-defined species into the database so every
// instance sharing it can spawn them.
func syncSpecies(ctx context.Context, registry *species.Registry, store *pgstore.Store, logger *zap.Logger) {
	for _, s := range registry.List() {
		saveSpecies(ctx, registry, store, s.ID, logger)
	}
}

func saveSpecies(ctx context.Context, registry *species.Registry, store *pgstore.Store, id string, logger *zap.Logger) {
	sp, ok := registry.Get(id)
	if !ok {
		return
	}
	if err := store.SaveSpecies(ctx, id, sp); err != nil {
		logger.Warn("sync species failed", zap.String("species", id), zap.Error(err))
	}
}
