package chord

import (
	"context"
	"fmt"

	"chordkv/internal/ring"

	"go.uber.org/zap"
)

// fingerPrecomputeIndices are the finger indices Join optimistically
// precomputes against the seed, per spec.md §4.C6 step 3. Correctness does
// not depend on this; it only speeds up early convergence (spec.md §9).
var fingerPrecomputeIndices = []int{1, 2, 4, 8}

// Join contacts seed to place this node on the ring. It performs all
// remote I/O holding no lock (it reads only the immutable me), and applies the
// result in one short write-locked step at the end, per spec.md §4.C6's
// prepare-then-apply discipline.
//
// Grounded on the teacher's handleJoin (which calls FindSuccessor on the
// seed and then SetSuccessor) generalized into the symmetric, lock-disciplined
// shape spec.md §4.C6 names explicitly.
func (s *State) Join(ctx context.Context, seed ring.PeerAddr) error {
	me := s.Me()
	if seed.Label() == me.Addr.Label() {
		return nil
	}

	succ, err := s.Client.FindSuccessor(ctx, seed, me.ID, 0)
	if err != nil {
		return fmt.Errorf("chord: join: find-successor on seed %s: %w", seed.Label(), err)
	}

	precomputed := s.precomputeFingers(ctx, seed, me)

	if err := s.Client.Notify(ctx, succ.Addr, me); err != nil {
		s.log.Debug("join: best-effort notify of new successor failed", zap.Error(err))
	}

	s.mu.Lock()
	s.setSuccessorLocked(succ)
	s.predecessor = me // unknown
	for idx, n := range precomputed {
		s.fingers[idx] = ring.FingerEntry{Start: s.fingers[idx].Start, Node: n}
	}
	s.mu.Unlock()

	return nil
}

// precomputeFingers resolves the small finger index set against seed,
// tolerating individual RPC failures (spec.md §4.C6 step 3).
func (s *State) precomputeFingers(ctx context.Context, seed ring.PeerAddr, me ring.Node) map[int]ring.Node {
	out := make(map[int]ring.Node)
	for _, i := range fingerPrecomputeIndices {
		if i > s.m {
			break
		}
		start := ring.Add(me.ID, uint64(1)<<uint(i-1), s.m)
		n, err := s.Client.FindSuccessor(ctx, seed, start, 0)
		if err != nil {
			s.log.Debug("join: precompute finger failed, skipping", zap.Int("index", i), zap.Error(err))
			continue
		}
		out[i] = n
	}
	return out
}

// Leave gracefully removes this node from the ring: it splices its
// predecessor and successor together, then resets to singleton state.
// Fails fast on the first RPC error, per spec.md §4.C6 Leave.
func (s *State) Leave(ctx context.Context) error {
	snap := s.Snap()

	if snap.Predecessor.Equal(snap.Me) || snap.Successor.Equal(snap.Me) {
		s.Reset()
		return nil
	}

	if err := s.Client.SetSuccessor(ctx, snap.Predecessor.Addr, snap.Successor); err != nil {
		return fmt.Errorf("chord: leave: telling predecessor about new successor: %w", err)
	}
	if err := s.Client.SetPredecessor(ctx, snap.Successor.Addr, snap.Predecessor); err != nil {
		return fmt.Errorf("chord: leave: telling successor about new predecessor: %w", err)
	}

	s.Reset()
	return nil
}

// Reset restores singleton state: predecessor and successor point at self,
// and the finger table is rewritten with self at every recomputed start.
// Used by Leave's apply phase and by the test-only /reset endpoint
// (spec.md §4.C6 Reset, §6 POST /reset).
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.predecessor = s.me
	s.successor = s.me
	for i := 1; i <= s.m; i++ {
		s.fingers[i] = ring.FingerEntry{
			Start: ring.Add(s.me.ID, uint64(1)<<uint(i-1), s.m),
			Node:  s.me,
		}
	}
}
