// Package ledger records executed trades in a proof-of-work blockchain:
// block assembly from a FIFO pending pool, a competitive mining round
// across the configured miners, and full-chain validation.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/talgya/gridcommons/internal/market"
)

// genesisPrevHash is the previous-hash placeholder for block 0.
const genesisPrevHash = "0"

// Block is one immutable entry in the chain. Hash covers every other field,
// so any post-hoc mutation is detectable by recomputation.
type Block struct {
	Index     int            `json:"index"`
	Timestamp int64          `json:"timestamp"`
	Trades    []market.Trade `json:"transactions"`
	PrevHash  string         `json:"previous_hash"`
	Nonce     int64          `json:"nonce"`
	Hash      string         `json:"hash"`
}

// hashPayload is the exact byte layout fed to SHA-256. Field order is the
// struct declaration order, so recomputation is stable.
type hashPayload struct {
	Index     int            `json:"index"`
	Timestamp int64          `json:"timestamp"`
	Trades    []market.Trade `json:"transactions"`
	PrevHash  string         `json:"previous_hash"`
	Nonce     int64          `json:"nonce"`
}

// ComputeHash returns the SHA-256 hash of the block's fields and nonce as a
// lowercase hex string.
func (b *Block) ComputeHash() string {
	data, err := json.Marshal(hashPayload{
		Index:     b.Index,
		Timestamp: b.Timestamp,
		Trades:    b.Trades,
		PrevHash:  b.PrevHash,
		Nonce:     b.Nonce,
	})
	if err != nil {
		// Marshalling plain value fields cannot fail in practice.
		return ""
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// MeetsDifficulty reports whether hash has at least difficulty leading
// zero characters.
func MeetsDifficulty(hash string, difficulty int) bool {
	return strings.HasPrefix(hash, strings.Repeat("0", difficulty))
}

// newGenesisBlock creates block 0. It carries no trades and is exempt from
// the difficulty target, but its hash is still recomputable.
func newGenesisBlock(timestamp int64) *Block {
	g := &Block{
		Index:     0,
		Timestamp: timestamp,
		PrevHash:  genesisPrevHash,
	}
	g.Hash = g.ComputeHash()
	return g
}
