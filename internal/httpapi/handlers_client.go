package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"unicode/utf8"

	"chordkv/internal/ring"
)

// handleHelloWorld is the liveness probe, answering with this node's own
// "host:port" label (spec.md §6).
func (s *Server) handleHelloWorld(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.state.Me().Addr.Label())
}

// handleStorageGet serves key locally if this node is responsible for it,
// otherwise forwards to the closest known preceding node, bounded by the
// client hop limit (spec.md §4.C8, §6, §7).
func (s *Server) handleStorageGet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	id := ring.HashID(key, s.m)

	if s.state.ResponsibleFor(id) {
		v, ok := s.store.Get(key)
		if !ok {
			http.Error(w, "key not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, v)
		return
	}

	hops := hopCount(r)
	if s.hopLimitExceeded(w, hops) {
		return
	}
	s.forward(w, r, s.state.ClosestPrecedingNode(id), hops)
}

// handleStoragePut stores the request body verbatim under key if this node
// owns it, otherwise forwards it along, mirroring handleStorageGet's
// routing decision.
func (s *Server) handleStoragePut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	id := ring.HashID(key, s.m)

	if s.state.ResponsibleFor(id) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		if !utf8.Valid(body) {
			http.Error(w, "value must be valid UTF-8", http.StatusBadRequest)
			return
		}
		s.store.Put(key, string(body))
		w.WriteHeader(http.StatusOK)
		return
	}

	hops := hopCount(r)
	if s.hopLimitExceeded(w, hops) {
		return
	}
	s.forward(w, r, s.state.ClosestPrecedingNode(id), hops)
}

// nodeInfoView is the wire shape of GET /node-info, per spec.md §6: a
// 16-hex node hash, the successor's "host:port" label, and "others" — the
// teacher's name for the finger table's distinct peer addresses, kept
// here and left as the full neighbor table under the separate
// /known-nodes contract (spec.md §9 supplemented-features note).
type nodeInfoView struct {
	NodeHash  string   `json:"node_hash"`
	Successor string   `json:"successor"`
	Others    []string `json:"others"`
}

func (s *Server) handleNodeInfo(w http.ResponseWriter, r *http.Request) {
	me := s.state.Me()
	fingers := s.state.FingerTable()

	seen := make(map[string]bool)
	var others []string
	for i := 1; i < len(fingers); i++ {
		label := fingers[i].Node.Addr.Label()
		if label == me.Addr.Label() || seen[label] {
			continue
		}
		seen[label] = true
		others = append(others, label)
	}

	writeJSON(w, http.StatusOK, nodeInfoView{
		NodeHash:  fmt.Sprintf("%016x", uint64(me.ID)),
		Successor: s.state.Successor().Addr.Label(),
		Others:    others,
	})
}

// handleKnownNodes exposes the full finger table alongside predecessor and
// successor, for operational inspection (spec.md §6).
func (s *Server) handleKnownNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Me          ring.Node          `json:"me"`
		Predecessor ring.Node          `json:"predecessor"`
		Successor   ring.Node          `json:"successor"`
		Fingers     []ring.FingerEntry `json:"fingers"`
	}{
		Me:          s.state.Me(),
		Predecessor: s.state.Predecessor(),
		Successor:   s.state.Successor(),
		Fingers:     s.state.FingerTable(),
	})
}

// handleJoin places this node on the ring via the seed named by the
// "nprime" query parameter, per spec.md §4.C6/§6.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("nprime")
	if label == "" {
		http.Error(w, "missing nprime query parameter", http.StatusBadRequest)
		return
	}
	seed, err := ring.ParsePeerAddr(label)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.state.Join(r.Context(), seed); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleLeave gracefully removes this node from the ring. Unlike the
// teacher's equivalent handler, it never arms the crash flag afterward:
// once reset to singleton, this process keeps serving its own one-node
// ring rather than shutting down (SPEC_FULL.md §10).
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	if err := s.state.Leave(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleReset restores singleton ring state and clears the local store,
// a test-only convenience endpoint (spec.md §6).
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.state.Reset()
	s.store.Clear()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSimCrash(w http.ResponseWriter, r *http.Request) {
	s.state.SetCrashed(true)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSimRecover(w http.ResponseWriter, r *http.Request) {
	s.state.SetCrashed(false)
	w.WriteHeader(http.StatusOK)
}
