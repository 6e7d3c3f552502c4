package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lowengine/lowgo/internal/component"
	"github.com/lowengine/lowgo/internal/config"
	"github.com/lowengine/lowgo/internal/core/event"
	coresys "github.com/lowengine/lowgo/internal/core/system"
	"github.com/lowengine/lowgo/internal/core/world"
	"github.com/lowengine/lowgo/internal/persist"
	"github.com/lowengine/lowgo/internal/system"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             lowstore  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       generational handle store demo      \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main logic ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/lowstore.toml"
	if p := os.Getenv("LOWSTORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner()

	// 3. Build the world and its modules
	printSection("Types")

	w := world.New(cfg, log)
	transforms := component.NewTransforms()
	cameras := component.NewCameras(transforms)
	textures := component.NewTextures()
	w.Register(transforms)
	w.Register(cameras)
	w.Register(textures)
	if err := w.Initialize(); err != nil {
		return err
	}
	defer w.Cleanup()

	for _, info := range w.Registry().Types() {
		printStat(fmt.Sprintf("%s.%s capacity", info.Module, info.Name), int(info.Capacity()))
	}

	// 4. Optional snapshot backend
	var repo world.SnapshotStore
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	switch {
	case cfg.Redis.Enabled:
		printSection("Redis")
		client := persist.NewRedisClient(cfg.Redis)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		printOK("Redis connected")
		repo = persist.NewRedisSnapshotRepo(client, cfg.Redis.KeyPrefix, log)

	case cfg.Database.Enabled:
		printSection("Database")
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		applied, err := db.Migrate(ctx)
		if err != nil {
			return err
		}
		printStat("migrations applied", applied)
		repo = persist.NewSnapshotRepo(db)
	}
	if repo != nil {
		restored, err := w.Load(ctx, repo)
		if err != nil {
			return fmt.Errorf("restore snapshots: %w", err)
		}
		printStat("restored records", len(restored))
	}

	// 5. Seed a scene
	printSection("Scene")
	camera := cameras.Make("main_camera")
	textures.Make("checker", "textures/checker.ktx", 256, 256)
	cameraRec, _ := cameras.Get(camera)
	workload := newWorkloadSystem(w, transforms, cameraRec.Transform, cfg.Workload, log)
	printStat("workers", cfg.Workload.Workers)
	printStat("records per worker per tick", cfg.Workload.PerWorker)

	// 6. Systems
	stats := &lifecycleStats{}
	event.Subscribe(w.Bus(), stats.created)
	event.Subscribe(w.Bus(), stats.destroyed)

	runner := coresys.NewRunner()
	runner.Register(workload)
	runner.Register(system.NewEventDispatchSystem(w.Bus()))
	cleanup := system.NewCleanupSystem(w)
	runner.Register(cleanup)
	var persistence *system.PersistenceSystem
	if repo != nil {
		persistence = system.NewPersistenceSystem(w, repo, log, cfg.Workload.Ticks)
		runner.Register(persistence)
	}

	// 7. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	ticker := time.NewTicker(cfg.Workload.TickRate)
	defer ticker.Stop()

	printReady(fmt.Sprintf("tick loop started (tick: %s, ticks: %d)", cfg.Workload.TickRate, cfg.Workload.Ticks))
	fmt.Println()

	start := time.Now()
loop:
	for tick := 0; tick < cfg.Workload.Ticks; {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Workload.TickRate)
			tick++
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			break loop
		}
	}
	// One more event phase so the last tick's lifecycle events are counted.
	runner.TickPhase(coresys.PhaseEvents, 0)

	// 8. Report
	printSection("Results")
	printStat("transforms alive", int(transforms.Store().LivingCount()))
	printStat("transform capacity", int(transforms.Store().Capacity()))
	printStat("handles created", stats.Created)
	printStat("handles destroyed", stats.Destroyed)
	printStat("destroyed by cleanup", cleanup.Destroyed())
	printStat("unique ids", w.UniqueIDs().Len())
	log.Info("workload finished", zap.Duration("elapsed", time.Since(start)))

	if path := cfg.Stores.DumpPath; path != "" {
		n, err := writeDump(w, path)
		if err != nil {
			return err
		}
		printOK(fmt.Sprintf("wrote %d records to %s", n, path))
	}
	if persistence != nil {
		persistence.SaveAll()
		printStat("snapshots saved", persistence.Saved())
	}
	return nil
}

// lifecycleStats counts lifecycle events. Handlers run on the tick goroutine.
type lifecycleStats struct {
	Created   int
	Destroyed int
}

func (s *lifecycleStats) created(event.HandleCreated)     { s.Created++ }
func (s *lifecycleStats) destroyed(event.HandleDestroyed) { s.Destroyed++ }

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
