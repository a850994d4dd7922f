// Command chaincheck replays a persisted chain from a run database and
// verifies it: hash recomputation, difficulty target, and prev-hash links.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/talgya/gridcommons/internal/ledger"
	"github.com/talgya/gridcommons/internal/persistence"
)

func main() {
	dbPath := flag.String("db", "data/gridcommons.db", "SQLite run database")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	diffStr, err := db.GetMeta("difficulty")
	if err != nil {
		slog.Error("run metadata missing difficulty", "error", err)
		os.Exit(1)
	}
	difficulty, err := strconv.Atoi(diffStr)
	if err != nil {
		slog.Error("bad difficulty metadata", "value", diffStr, "error", err)
		os.Exit(1)
	}

	blocks, err := db.LoadChain()
	if err != nil {
		slog.Error("failed to load chain", "error", err)
		os.Exit(1)
	}
	if len(blocks) == 0 {
		slog.Error("no chain persisted in database")
		os.Exit(1)
	}

	trades := 0
	for i, b := range blocks {
		if b.Hash != b.ComputeHash() {
			fail(b.Index, "stored hash does not match recomputation")
		}
		if i > 0 {
			if !ledger.MeetsDifficulty(b.Hash, difficulty) {
				fail(b.Index, fmt.Sprintf("hash misses difficulty %d", difficulty))
			}
			if b.PrevHash != blocks[i-1].Hash {
				fail(b.Index, "broken previous-hash link")
			}
		}
		trades += len(b.Trades)
	}

	slog.Info("chain valid", "blocks", len(blocks), "trades", trades, "difficulty", difficulty)
}

func fail(index int, reason string) {
	slog.Error("chain invalid", "block", index, "reason", reason)
	os.Exit(1)
}
