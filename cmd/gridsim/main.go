// Command gridsim runs the prosumer community energy-trading simulation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/talgya/gridcommons/internal/api"
	"github.com/talgya/gridcommons/internal/config"
	"github.com/talgya/gridcommons/internal/engine"
	"github.com/talgya/gridcommons/internal/persistence"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (defaults apply when empty)")
		dbPath     = flag.String("db", "data/gridcommons.db", "SQLite output database")
		apiPort    = flag.Int("port", 8080, "observation API port")
		serve      = flag.Bool("serve", false, "keep serving the API after the run completes")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}

	slog.Info("gridcommons — prosumer community energy trading",
		"prosumers", cfg.Simulation.NumProsumers,
		"ticks", cfg.Simulation.Ticks,
		"miners", cfg.Ledger.NumMiners,
		"difficulty", cfg.Ledger.Difficulty,
		"seed", cfg.Simulation.Seed,
	)

	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", *dbPath)

	sim, err := engine.New(cfg)
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}

	// Persist each tick's output as it completes.
	sim.OnTick = func(tick int) {
		if err := db.SaveSnapshots(tick, sim.Fleet); err != nil {
			slog.Error("persist snapshots", "tick", tick, "error", err)
		}
		if err := db.SaveTrades(sim.LastTrades()); err != nil {
			slog.Error("persist trades", "tick", tick, "error", err)
		}
	}

	if *serve {
		srv := &api.Server{Sim: sim, Port: *apiPort}
		srv.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sim.Run(ctx); err != nil {
		slog.Error("simulation aborted", "error", err)
		os.Exit(1)
	}

	if err := db.SaveChain(sim.Ledger.Blocks()); err != nil {
		slog.Error("persist chain", "error", err)
	}
	db.SetMeta("difficulty", strconv.Itoa(cfg.Ledger.Difficulty))
	db.SetMeta("seed", strconv.FormatInt(cfg.Simulation.Seed, 10))
	db.SetMeta("ticks", strconv.Itoa(cfg.Simulation.Ticks))

	fmt.Print(sim.FinalReport())

	if !sim.Ledger.Validate() {
		slog.Error("chain failed validation at end of run")
		os.Exit(1)
	}

	if *serve {
		slog.Info("run complete, serving API", "port", *apiPort)
		<-ctx.Done()
	}
}
