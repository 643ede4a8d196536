package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"chordkv/internal/ring"
)

// hopCountHeader carries the client-facing forward hop count, distinct from
// the "hops" query parameter internal find-successor RPCs use, per spec.md
// §4.C8.
const hopCountHeader = "X-Chord-Hop-Count"

// hopCount reads the incoming hop count header, defaulting to 0 for a
// client's first request.
func hopCount(r *http.Request) int {
	v := r.Header.Get(hopCountHeader)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// forward relays the incoming request to next, incrementing the hop count
// header, and copies its response back to w verbatim. If next cannot be
// reached it writes a 502 itself; either way a response has been written
// when it returns.
//
// Grounded on the teacher's proxy-forwarding handler in
// src/internal/transport/server.go, generalized to carry an explicit,
// checked hop count instead of relying on transport-level loop detection
// (SPEC_FULL.md §10.1).
func (s *Server) forward(w http.ResponseWriter, r *http.Request, next ring.Node, hops int) {
	target := next.Addr.URL() + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	var body io.Reader
	if r.Body != nil {
		body = r.Body
	}
	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		http.Error(w, "failed to build forwarded request", http.StatusBadGateway)
		return
	}
	req.Header.Set(hopCountHeader, strconv.Itoa(hops+1))
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := s.forwardClient.Do(req)
	if err != nil {
		http.Error(w, "next hop unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// hopLimitExceeded reports whether the given hop count has already
// exhausted the configured limit, and if so, writes the 502 response
// spec.md §7 requires for client-facing forwarding (as opposed to the
// silent internal truncation chord.FindSuccessor performs).
func (s *Server) hopLimitExceeded(w http.ResponseWriter, hops int) bool {
	if hops < s.hopLimit {
		return false
	}
	http.Error(w, "hop limit exceeded before a responsible node was found", http.StatusBadGateway)
	return true
}
