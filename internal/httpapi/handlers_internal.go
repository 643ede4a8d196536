package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"chordkv/internal/ring"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeNodeBody(r *http.Request) (ring.Node, error) {
	var n ring.Node
	err := json.NewDecoder(r.Body).Decode(&n)
	return n, err
}

// handlePing answers the liveness probe chord.Client.Ping issues. The crash
// gate middleware already turns this into a 503 while crashed, so reaching
// here means the node is live.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleInternalSuccessor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Successor())
}

func (s *Server) handleInternalPredecessor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Predecessor())
}

// handleFindSuccessor resolves id against this node's view of the ring,
// chasing peers via RPC up to the configured hop limit before truncating,
// per spec.md §4.C4/§6.
func (s *Server) handleFindSuccessor(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Query().Get("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "missing or malformed id parameter", http.StatusBadRequest)
		return
	}
	hops, err := strconv.Atoi(r.URL.Query().Get("hops"))
	if err != nil {
		hops = 0
	}

	n := s.state.FindSuccessor(r.Context(), ring.Identifier(id), hops, s.hopLimit)
	writeJSON(w, http.StatusOK, n)
}

// handleNotify always answers 200 regardless of whether the write lock was
// acquired in time: a dropped notify self-heals on the next stabilize tick
// rather than being surfaced as an error to the caller (spec.md §9 Open
// Question, "safer contract").
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	suggested, err := decodeNodeBody(r)
	if err != nil {
		http.Error(w, "malformed node body", http.StatusBadRequest)
		return
	}
	s.state.TryNotify(setterLockTimeout, suggested)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSetSuccessor(w http.ResponseWriter, r *http.Request) {
	n, err := decodeNodeBody(r)
	if err != nil {
		http.Error(w, "malformed node body", http.StatusBadRequest)
		return
	}
	if !s.state.TrySetSuccessor(setterLockTimeout, n) {
		http.Error(w, "timed out acquiring ring state lock", http.StatusRequestTimeout)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSetPredecessor(w http.ResponseWriter, r *http.Request) {
	n, err := decodeNodeBody(r)
	if err != nil {
		http.Error(w, "malformed node body", http.StatusBadRequest)
		return
	}
	if !s.state.TrySetPredecessor(setterLockTimeout, n) {
		http.Error(w, "timed out acquiring ring state lock", http.StatusRequestTimeout)
		return
	}
	w.WriteHeader(http.StatusOK)
}
