package ledger

import (
	"context"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Miner competes in mining rounds. Stateless between rounds except for its
// win and reward counters.
type Miner struct {
	ID          int     `json:"id"`
	BlocksMined int     `json:"blocks_mined"`
	TotalReward float64 `json:"total_reward"`
}

// candidate is one miner's successful nonce for a round.
type candidate struct {
	minerID  int
	nonce    int64
	hash     string
	attempts int
}

// mineRound runs the competitive nonce search: every miner walks its own
// seeded nonce order concurrently until its first solution or the attempt
// budget. The winner is the solver with the fewest attempts, ties broken by
// miner id. Each miner's search depends only on its seed, so the round
// replays identically for a given seed regardless of scheduling. Returns nil
// when no miner finds a solution within the budget.
func mineRound(ctx context.Context, block Block, miners []*Miner, difficulty, maxAttempts int, seed int64) *candidate {
	results := make(chan candidate, len(miners))

	g, ctx := errgroup.WithContext(ctx)
	for _, m := range miners {
		g.Go(func() error {
			// Golden-ratio mix in uint64 space; the product wraps, which is
			// exactly what spreads consecutive ids across the seed space.
			mix := (uint64(m.ID) + 1) * 0x9e3779b97f4a7c15
			rng := rand.New(rand.NewSource(seed ^ int64(mix)))
			work := block // private copy, nonce scratch space
			for attempt := 1; attempt <= maxAttempts; attempt++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				work.Nonce = rng.Int63()
				hash := work.ComputeHash()
				if MeetsDifficulty(hash, difficulty) {
					results <- candidate{
						minerID:  m.ID,
						nonce:    work.Nonce,
						hash:     hash,
						attempts: attempt,
					}
					return nil
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil
	}
	close(results)

	var best *candidate
	for c := range results {
		if best == nil ||
			c.attempts < best.attempts ||
			(c.attempts == best.attempts && c.minerID < best.minerID) {
			cc := c
			best = &cc
		}
	}
	return best
}
