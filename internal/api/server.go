// Package api serves read-only observation endpoints over the running
// simulation: community status, prosumer state, recent trades, and the
// chain. It is an observer, not a trading transport — clearing and mining
// stay in-process.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"

	"github.com/talgya/gridcommons/internal/engine"
	"github.com/talgya/gridcommons/internal/prosumer"
)

// Server serves simulation state over HTTP.
type Server struct {
	Sim  *engine.Simulation
	Port int
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	limiter := NewRateLimiter(600, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/prosumers", s.handleProsumers)
	mux.HandleFunc("/api/v1/prosumer/", s.handleProsumerDetail)
	mux.HandleFunc("/api/v1/trades", s.handleTrades)
	mux.HandleFunc("/api/v1/chain", s.handleChain)
	mux.HandleFunc("/api/v1/metrics", s.handleMetrics)
	mux.HandleFunc("/api/v1/miners", s.handleMiners)

	handler := cors.Default().Handler(RateLimitMiddleware(limiter, mux.ServeHTTP))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)
	go func() {
		if err := http.ListenAndServe(addr, handler); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// handleStatus returns the overall run status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sum := s.Sim.Ledger.Summarize()
	writeJSON(w, map[string]any{
		"tick":        s.Sim.CurrentTick(),
		"ticks_total": s.Sim.Cfg.Simulation.Ticks,
		"prosumers":   len(s.Sim.Fleet),
		"chain":       sum,
	})
}

// handleProsumers returns the full fleet state, snapshotted under the
// simulation lock — the live structs are mutated by the tick pipeline.
func (s *Server) handleProsumers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.FleetSnapshot())
}

// handleProsumerDetail returns one prosumer by id (GET /api/v1/prosumer/:id).
func (s *Server) handleProsumerDetail(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/v1/prosumer/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "invalid prosumer id", http.StatusBadRequest)
		return
	}
	p, ok := s.Sim.ProsumerSnapshot(prosumer.ID(id))
	if !ok {
		http.Error(w, "prosumer not found", http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

// handleTrades returns the most recent tick's trades.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.LastTrades())
}

// handleChain returns the full chain.
func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"blocks":  s.Sim.Ledger.Blocks(),
		"summary": s.Sim.Ledger.Summarize(),
	})
}

// handleMetrics returns the community aggregate, recomputed on request.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Metrics())
}

// handleMiners returns miner win/reward counters.
func (s *Server) handleMiners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Ledger.MinerStats())
}
