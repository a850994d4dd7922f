// Package persistence provides SQLite-based storage for simulation output:
// per-tick prosumer snapshots, executed trades, mined blocks, and run
// metadata.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/gridcommons/internal/ledger"
	"github.com/talgya/gridcommons/internal/market"
	"github.com/talgya/gridcommons/internal/prosumer"
)

// DB wraps a SQLite connection for simulation state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path, creating
// missing parent directories.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prosumer_snapshots (
		tick INTEGER NOT NULL,
		prosumer_id INTEGER NOT NULL,
		pv_generation REAL NOT NULL,
		consumption REAL NOT NULL,
		imbalance REAL NOT NULL,
		soc REAL,
		balance REAL NOT NULL,
		bonus REAL NOT NULL,
		penalties REAL NOT NULL,
		renewable_usage REAL NOT NULL,
		banned INTEGER NOT NULL,
		ban_json TEXT NOT NULL,
		PRIMARY KEY (tick, prosumer_id)
	);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		tick INTEGER NOT NULL,
		buyer_id INTEGER NOT NULL,
		seller_id INTEGER NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		venue TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS blocks (
		idx INTEGER PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		prev_hash TEXT NOT NULL,
		nonce INTEGER NOT NULL,
		hash TEXT NOT NULL,
		trades_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_tick ON trades(tick);
	CREATE INDEX IF NOT EXISTS idx_snapshots_prosumer ON prosumer_snapshots(prosumer_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveSnapshots writes the fleet's state for one tick.
func (db *DB) SaveSnapshots(tick int, fleet []*prosumer.Prosumer) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO prosumer_snapshots
		(tick, prosumer_id, pv_generation, consumption, imbalance, soc,
		 balance, bonus, penalties, renewable_usage, banned, ban_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range fleet {
		var soc *float64
		if p.Battery != nil {
			v := p.Battery.SOC
			soc = &v
		}
		banned := 0
		if p.Ban.Active() {
			banned = 1
		}
		banJSON, _ := json.Marshal(p.Ban)

		if _, err := stmt.Exec(
			tick, p.ID, p.PVGeneration, p.Consumption, p.Imbalance, soc,
			p.Balance, p.Bonus, p.Penalties, p.RenewableUsage, banned, string(banJSON),
		); err != nil {
			return fmt.Errorf("insert snapshot prosumer %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// SaveTrades appends executed trades.
func (db *DB) SaveTrades(trades []market.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range trades {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO trades
			(id, tick, buyer_id, seller_id, quantity, price, venue)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Tick, t.Buyer, t.Seller, t.Quantity, t.Price, string(t.Venue),
		); err != nil {
			return fmt.Errorf("insert trade %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// SaveChain writes the full chain (idempotent per block index).
func (db *DB) SaveChain(blocks []*ledger.Block) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, b := range blocks {
		tradesJSON, _ := json.Marshal(b.Trades)
		if _, err := tx.Exec(`INSERT OR REPLACE INTO blocks
			(idx, timestamp, prev_hash, nonce, hash, trades_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			b.Index, b.Timestamp, b.PrevHash, b.Nonce, b.Hash, string(tradesJSON),
		); err != nil {
			return fmt.Errorf("insert block %d: %w", b.Index, err)
		}
	}
	return tx.Commit()
}

// LoadChain reads the persisted chain ordered by block index.
func (db *DB) LoadChain() ([]*ledger.Block, error) {
	rows, err := db.conn.Queryx(`SELECT idx, timestamp, prev_hash, nonce, hash, trades_json
		FROM blocks ORDER BY idx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []*ledger.Block
	for rows.Next() {
		var (
			b          ledger.Block
			tradesJSON string
		)
		if err := rows.Scan(&b.Index, &b.Timestamp, &b.PrevHash, &b.Nonce, &b.Hash, &tradesJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tradesJSON), &b.Trades); err != nil {
			return nil, fmt.Errorf("decode trades of block %d: %w", b.Index, err)
		}
		blocks = append(blocks, &b)
	}
	return blocks, rows.Err()
}

// SetMeta stores a metadata key/value pair.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, `SELECT value FROM run_meta WHERE key = ?`, key)
	return value, err
}
