package chord

import (
	"context"

	"chordkv/internal/ring"

	"go.uber.org/zap"
)

// ClosestPrecedingNodes returns every finger entry (highest index first)
// whose node id lies strictly between me and id — the candidate set the
// internal find-successor RPC tries in order before giving up, mirroring
// the teacher's closestPrecedingNodes (plural) helper.
func (s *State) ClosestPrecedingNodes(id ring.Identifier) []ring.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []ring.Node
	for i := s.m; i >= 1; i-- {
		n := s.fingers[i].Node
		if ring.InOpenOpen(n.ID, s.me.ID, id) {
			candidates = append(candidates, n)
		}
	}
	return candidates
}

// FindSuccessor resolves the owner of id, serving it locally when possible
// and otherwise chasing the ring via RPC, bounded by hopLimit. At
// hops >= hopLimit it truncates by returning its own successor rather than
// continuing the chain — spec.md §9 accepts this as an internal, self-
// healing truncation, while client-facing forwarding in internal/httpapi
// pins the same condition to an explicit 502 instead (SPEC_FULL.md §10).
func (s *State) FindSuccessor(ctx context.Context, id ring.Identifier, hops, hopLimit int) ring.Node {
	snap := s.Snap()

	if ring.InOpenClosed(id, snap.Me.ID, snap.Successor.ID) {
		return snap.Successor
	}
	if hops >= hopLimit {
		return snap.Successor
	}

	for _, candidate := range s.ClosestPrecedingNodes(id) {
		n, err := s.Client.FindSuccessor(ctx, candidate.Addr, id, hops+1)
		if err != nil {
			s.log.Debug("find-successor: candidate failed", zap.Uint64("candidate_id", uint64(candidate.ID)), zap.Error(err))
			continue
		}
		return n
	}

	return snap.Successor
}
