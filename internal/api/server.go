// Package api provides the HTTP and WebSocket server over the analytics core.
// The core stays pure; this layer only stores journals in memory and adapts
// requests into function calls.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/tradelens/journal-backend/internal/config"
	"github.com/tradelens/journal-backend/internal/equity"
	"github.com/tradelens/journal-backend/pkg/types"
	"go.uber.org/zap"
)

// Server is the HTTP/WebSocket API server
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     *config.Config
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	hub        *Hub
	calculator *equity.Calculator
	journals   map[string]*JournalState
}

// JournalState is one in-memory trade journal. The server owns the slice;
// analytics functions never retain or mutate it.
type JournalState struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Trades    []*types.Trade `json:"trades"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewServer creates a new API server
func NewServer(logger *zap.Logger, cfg *config.Config) *Server {
	server := &Server{
		logger:     logger,
		config:     cfg,
		router:     mux.NewRouter(),
		hub:        NewHub(logger),
		calculator: equity.NewCalculator(logger),
		journals:   make(map[string]*JournalState),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(instrumentHandler)

	// Health check
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	// Journal endpoints
	s.router.HandleFunc("/api/v1/journals", s.handleCreateJournal).Methods("POST")
	s.router.HandleFunc("/api/v1/journals/{id}", s.handleGetJournal).Methods("GET")
	s.router.HandleFunc("/api/v1/journals/{id}/trades", s.handleReplaceTrades).Methods("PUT")

	// Analytics endpoints
	s.router.HandleFunc("/api/v1/journals/{id}/kpis", s.handleKPIs).Methods("GET")
	s.router.HandleFunc("/api/v1/journals/{id}/performance", s.handlePerformance).Methods("GET")
	s.router.HandleFunc("/api/v1/journals/{id}/equity-curve", s.handleEquityCurve).Methods("GET")
	s.router.HandleFunc("/api/v1/journals/{id}/drawdowns", s.handleDrawdowns).Methods("GET")
	s.router.HandleFunc("/api/v1/journals/{id}/segments/{dimension}", s.handleSegments).Methods("GET")
	s.router.HandleFunc("/api/v1/journals/{id}/histograms/{metric}", s.handleHistogram).Methods("GET")
	s.router.HandleFunc("/api/v1/journals/{id}/insights", s.handleInsights).Methods("GET")
	s.router.HandleFunc("/api/v1/journals/{id}/simulation", s.handleSimulation).Methods("GET")
	s.router.HandleFunc("/api/v1/journals/{id}/integrity", s.handleIntegrity).Methods("GET")

	// Risk endpoints
	s.router.HandleFunc("/api/v1/journals/{id}/risk", s.handleRisk).Methods("GET")
	s.router.HandleFunc("/api/v1/journals/{id}/optimal-size", s.handleOptimalSize).Methods("GET")
	s.router.HandleFunc("/api/v1/risk/position-size", s.handlePositionSize).Methods("POST")
	s.router.HandleFunc("/api/v1/risk/kelly", s.handleKelly).Methods("POST")

	// Observability
	s.router.Handle("/metrics", promhttp.Handler())

	// WebSocket
	s.router.HandleFunc(s.config.Server.WebSocketPath, s.handleWebSocket)
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	go s.hub.Run()

	s.logger.Info("Starting API server", zap.String("addr", addr))

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// getJournal fetches a journal and a copy of its trade slice.
func (s *Server) getJournal(id string) (*JournalState, []*types.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	journal, ok := s.journals[id]
	if !ok {
		return nil, nil, false
	}
	trades := make([]*types.Trade, len(journal.Trades))
	copy(trades, journal.Trades)
	return journal, trades, true
}

// storeJournal inserts or replaces a journal.
func (s *Server) storeJournal(state *JournalState) {
	s.mu.Lock()
	s.journals[state.ID] = state
	s.mu.Unlock()
}

// newJournalID returns a fresh journal identifier.
func newJournalID() string {
	return uuid.New().String()
}

// writeJSON writes a JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
