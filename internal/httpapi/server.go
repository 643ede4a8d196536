// Package httpapi wires the Chord overlay's external endpoint surface
// (spec.md §6, component C10): the client-facing storage/ring endpoints,
// the internal peer RPC endpoints, the hop-limited forwarder (C8), and the
// crash-simulator gate (C9).
//
// Grounded on the teacher's src/internal/transport package (server.go +
// client.go), generalized to the exact path set and status-code contract
// spec.md §6/§7 pin down.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"chordkv/internal/chord"
	"chordkv/internal/store"

	"go.uber.org/zap"
)

// setterLockTimeout bounds the write-lock acquisition internal setters
// wait for, per spec.md §5.
const setterLockTimeout = 200 * time.Millisecond

// forwardTimeout bounds a single forwarded client hop, per spec.md §4.C8,
// matching original_source/network.rs's forward_get/forward_put 1000ms
// per-hop timeout.
const forwardTimeout = 1 * time.Second

// Server is the HTTP surface for one Chord node.
type Server struct {
	state    *chord.State
	store    *store.Store
	m        int
	hopLimit int
	log      *zap.Logger

	httpServer    *http.Server
	forwardClient *http.Client

	// activityMS is the atomic monotonic-millisecond timestamp of the last
	// request this node served. It exists so an external idle-shutdown
	// collaborator can decide when to stop the process; this package only
	// maintains the counter (spec.md §1 "out of scope: idle-timeout
	// shutdown"; §5 names ActivityTimer as shared state this package owns).
	activityMS atomic.Int64
}

// New builds a Server bound to addr, serving state and store with the
// given hop limit.
func New(addr string, state *chord.State, st *store.Store, m, hopLimit int, log *zap.Logger) *Server {
	s := &Server{
		state:    state,
		store:    st,
		m:        m,
		hopLimit: hopLimit,
		log:      log,
		forwardClient: &http.Client{
			Timeout: forwardTimeout,
		},
	}
	s.touch()

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: requestIDMiddleware(s.crashMiddleware(mux), log),
	}
	return s
}

// processStart is the reference point for activityMS; time.Since uses Go's
// monotonic clock reading, so the counter does not follow wall-clock steps.
var processStart = time.Now()

func (s *Server) touch() {
	s.activityMS.Store(time.Since(processStart).Milliseconds())
}

// ActivityMS returns when the last request was served, in monotonic
// milliseconds since the process started.
func (s *Server) ActivityMS() int64 { return s.activityMS.Load() }

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Client-facing endpoints.
	mux.HandleFunc("GET /helloworld", s.handleHelloWorld)
	mux.HandleFunc("GET /storage/{key}", s.handleStorageGet)
	mux.HandleFunc("PUT /storage/{key}", s.handleStoragePut)
	mux.HandleFunc("GET /node-info", s.handleNodeInfo)
	mux.HandleFunc("GET /known-nodes", s.handleKnownNodes)
	mux.HandleFunc("POST /join", s.handleJoin)
	mux.HandleFunc("POST /leave", s.handleLeave)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /sim-crash", s.handleSimCrash)
	mux.HandleFunc("POST /sim-recover", s.handleSimRecover)

	// Internal peer RPC endpoints.
	mux.HandleFunc("GET /internal/ping", s.handlePing)
	mux.HandleFunc("GET /internal/successor", s.handleInternalSuccessor)
	mux.HandleFunc("GET /internal/predecessor", s.handleInternalPredecessor)
	mux.HandleFunc("GET /internal/find-successor", s.handleFindSuccessor)
	mux.HandleFunc("POST /internal/notify", s.handleNotify)
	mux.HandleFunc("POST /internal/set-successor", s.handleSetSuccessor)
	mux.HandleFunc("POST /internal/set-predecessor", s.handleSetPredecessor)
}

// Handler exposes the wired mux for tests (httptest.NewServer wants an
// http.Handler, not a bound *http.Server).
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start runs the HTTP server until it is stopped or fails.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
