// Package api provides an optional, read-only HTTP surface for
// inspecting a running node: health, chain status, and known peers.
// It never mutates chain state and is off unless BLOCKBARD_STATUS_ADDR
// is set.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nac-codes/Block-Bard/internal/chain"
	"github.com/nac-codes/Block-Bard/internal/p2p"
)

// Server exposes a node's status over HTTP.
type Server struct {
	addr   string
	peer   *p2p.Peer
	nodeID string

	httpServer *http.Server
}

// New builds a Server bound to addr that reports on peer's state.
func New(addr, nodeID string, peer *p2p.Peer) *Server {
	router := mux.NewRouter()
	s := &Server{addr: addr, peer: peer, nodeID: nodeID}

	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/peers", s.handlePeers).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  Status server shutdown: %v", err)
		}
	}()

	log.Printf("🩺 Status surface listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type statusResponse struct {
	NodeID            string `json:"node_id"`
	ChainLength       int    `json:"chain_length"`
	CurrentDifficulty uint64 `json:"current_difficulty"`
	LatestBlockHash   string `json:"latest_block_hash"`
	Branches          int    `json:"branches"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	s.peer.WithBlockchain(func(bc *chain.Blockchain) {
		resp = statusResponse{
			NodeID:            s.nodeID,
			ChainLength:       len(bc.Blocks),
			CurrentDifficulty: bc.CurrentDifficulty,
			LatestBlockHash:   bc.GetLatestBlock().Hash,
			Branches:          len(bc.Branches),
		}
	})
	writeJSON(w, resp)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.peer.Peers())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  Failed to encode status response: %v", err)
	}
}
