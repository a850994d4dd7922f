package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/talgya/gridcommons/internal/market"
)

// Options configures a Ledger.
type Options struct {
	NumMiners         int
	Difficulty        int // leading zero hex chars required
	BlockReward       float64
	MaxTradesPerBlock int
	MaxAttempts       int   // per miner per round
	Seed              int64 // nonce search order seed
}

// Ledger owns the chain and the pending-trade pool. The tick pipeline is the
// only writer; the lock exists for concurrent read-only observers.
type Ledger struct {
	mu      sync.RWMutex
	chain   []*Block
	pending []market.Trade
	miners  []*Miner
	opts    Options
}

// New creates a ledger with its genesis block stamped at genesisTime.
func New(opts Options, genesisTime int64) *Ledger {
	miners := make([]*Miner, opts.NumMiners)
	for i := range miners {
		miners[i] = &Miner{ID: i}
	}
	return &Ledger{
		chain:  []*Block{newGenesisBlock(genesisTime)},
		miners: miners,
		opts:   opts,
	}
}

// Submit appends a trade to the pending pool (unbounded, FIFO). Trades are
// never dropped; they wait for a mining round to pick them up.
func (l *Ledger) Submit(t market.Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, t)
}

// Head returns the current chain tip.
func (l *Ledger) Head() *Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1]
}

// MinePending assembles a candidate block from the oldest pending trades
// (capped at MaxTradesPerBlock) and runs one mining round. On success the
// block is appended, its trades leave the pool, and the winning miner is
// rewarded. Returns nil when the pool is empty or the round exhausts its
// attempt budget; an exhausted round is a soft event — the same pool is
// retried next tick.
func (l *Ledger) MinePending(ctx context.Context, timestamp int64) *Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return nil
	}

	n := min(len(l.pending), l.opts.MaxTradesPerBlock)
	trades := make([]market.Trade, n)
	copy(trades, l.pending[:n])

	head := l.chain[len(l.chain)-1]
	block := Block{
		Index:     len(l.chain),
		Timestamp: timestamp,
		Trades:    trades,
		PrevHash:  head.Hash,
	}

	// Salt the nonce-order seed with the block index so consecutive rounds
	// do not replay the same search.
	won := mineRound(ctx, block, l.miners, l.opts.Difficulty, l.opts.MaxAttempts, l.opts.Seed+int64(block.Index))
	if won == nil {
		slog.Info("mining round exhausted, retrying next tick",
			"pending", len(l.pending), "difficulty", l.opts.Difficulty)
		return nil
	}

	block.Nonce = won.nonce
	block.Hash = won.hash
	l.chain = append(l.chain, &block)
	l.pending = l.pending[n:]

	winner := l.miners[won.minerID]
	winner.BlocksMined++
	winner.TotalReward += l.opts.BlockReward

	slog.Info("block mined",
		"index", block.Index,
		"trades", len(block.Trades),
		"miner", won.minerID,
		"attempts", won.attempts,
		"hash", block.Hash[:16])
	return &block
}

// Validate walks the chain from genesis and confirms that every stored hash
// is recomputable from its fields, every non-genesis hash meets the
// difficulty target, and every previous-hash link matches. It reports, never
// repairs: the ledger does not rewrite history.
func (l *Ledger) Validate() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i, b := range l.chain {
		if b.Hash != b.ComputeHash() {
			return false
		}
		if i == 0 {
			continue
		}
		if !MeetsDifficulty(b.Hash, l.opts.Difficulty) {
			return false
		}
		if b.PrevHash != l.chain[i-1].Hash {
			return false
		}
	}
	return true
}

// Blocks returns a snapshot copy of the chain.
func (l *Ledger) Blocks() []*Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Block, len(l.chain))
	copy(out, l.chain)
	return out
}

// PendingCount returns the number of trades waiting for a block.
func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// MinerStats returns a snapshot copy of all miner counters.
func (l *Ledger) MinerStats() []Miner {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Miner, len(l.miners))
	for i, m := range l.miners {
		out[i] = *m
	}
	return out
}

// Summary aggregates chain statistics for reporting.
type Summary struct {
	Blocks     int  `json:"blocks"`
	Trades     int  `json:"trades"`
	Pending    int  `json:"pending"`
	Valid      bool `json:"valid"`
	Miners     int  `json:"miners"`
	Difficulty int  `json:"difficulty"`
}

// Summarize recomputes the chain summary from current state.
func (l *Ledger) Summarize() Summary {
	l.mu.RLock()
	trades := 0
	for _, b := range l.chain {
		trades += len(b.Trades)
	}
	s := Summary{
		Blocks:     len(l.chain),
		Trades:     trades,
		Pending:    len(l.pending),
		Miners:     len(l.miners),
		Difficulty: l.opts.Difficulty,
	}
	l.mu.RUnlock()

	s.Valid = l.Validate()
	return s
}
