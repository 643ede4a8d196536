// Package chord implements the Chord overlay core: per-node ring state
// (C4), the peer RPC client (C5), the join/leave protocol (C6), the
// periodic maintenance loop (C7), and the crash simulator flag (C9).
//
// Grounded throughout on the teacher's src/internal/dht/node.go, generalized
// per SPEC_FULL.md §4/§10 (configurable M, 1-indexed finger table, split
// maintenance tasks, explicit hop limiting left to the HTTP layer).
package chord

import (
	"sync"
	"sync/atomic"
	"time"

	"chordkv/internal/ring"

	"go.uber.org/zap"
)

// State is a single process's view of the Chord ring: its own identity,
// its neighbors, and its finger table. It is protected by a single
// read/write lock; RPCs are never made while holding it (spec.md §5).
type State struct {
	me ring.Node // immutable after construction
	m  int       // identifier width in bits

	mu          sync.RWMutex
	predecessor ring.Node
	successor   ring.Node
	fingers     []ring.FingerEntry // length m+1; index 0 unused

	fixNext atomic.Int64 // round-robin cursor in [1, m]
	crashed atomic.Bool

	Client *Client
	log    *zap.Logger
}

// New constructs a singleton State: predecessor and successor point at
// self, and every finger table entry points at self, per spec.md §3
// Lifecycle ("initialized to me").
func New(me ring.Node, m int, client *Client, log *zap.Logger) *State {
	s := &State{
		me:          me,
		m:           m,
		predecessor: me,
		successor:   me,
		fingers:     make([]ring.FingerEntry, m+1),
		Client:      client,
		log:         log,
	}
	for i := 1; i <= m; i++ {
		s.fingers[i] = ring.FingerEntry{
			Start: ring.Add(me.ID, uint64(1)<<uint(i-1), m),
			Node:  me,
		}
	}
	s.fixNext.Store(1)
	return s
}

// Me returns this process's own node identity.
func (s *State) Me() ring.Node { return s.me }

// M returns the identifier width in bits.
func (s *State) M() int { return s.m }

// Predecessor returns a snapshot of the current predecessor.
func (s *State) Predecessor() ring.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predecessor
}

// Successor returns a snapshot of the current successor.
func (s *State) Successor() ring.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.successor
}

// setSuccessorLocked updates the successor and finger[1] together, per
// spec.md §3 invariant 1 (fingerTable[1].node == successor).
func (s *State) setSuccessorLocked(n ring.Node) {
	s.successor = n
	s.fingers[1] = ring.FingerEntry{Start: s.fingers[1].Start, Node: n}
}

// SetSuccessor replaces the successor pointer (and finger[1] with it).
func (s *State) SetSuccessor(n ring.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setSuccessorLocked(n)
}

// SetPredecessor replaces the predecessor pointer.
func (s *State) SetPredecessor(n ring.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predecessor = n
}

// FingerTable returns a copy of the finger table (index 0 unused, matching
// spec.md §3's 1-indexed layout).
func (s *State) FingerTable() []ring.FingerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ring.FingerEntry, len(s.fingers))
	copy(out, s.fingers)
	return out
}

// Finger returns finger table entry i (1-indexed).
func (s *State) Finger(i int) ring.FingerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingers[i]
}

// SetFinger replaces finger table entry i (1-indexed) with n, keeping its
// start unchanged.
func (s *State) SetFinger(i int, n ring.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fingers[i] = ring.FingerEntry{Start: s.fingers[i].Start, Node: n}
	if i == 1 {
		s.successor = n
	}
}

// NextFixIndex atomically advances the fix-fingers round-robin cursor and
// returns the index to repair next, per spec.md §4.C7.
func (s *State) NextFixIndex() int {
	for {
		cur := s.fixNext.Load()
		next := (cur % int64(s.m)) + 1
		if s.fixNext.CompareAndSwap(cur, next) {
			return int(next)
		}
	}
}

// IsCrashed reports whether the crash simulator flag is armed.
func (s *State) IsCrashed() bool { return s.crashed.Load() }

// SetCrashed arms or disarms the crash simulator flag (spec.md §4.C9).
func (s *State) SetCrashed(v bool) { s.crashed.Store(v) }

// ResponsibleFor reports whether this node owns keyID: hash(key) in
// (predecessor.id, me.id], spec.md §3 invariant 5.
func (s *State) ResponsibleFor(keyID ring.Identifier) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ring.InOpenClosed(keyID, s.predecessor.ID, s.me.ID)
}

// ClosestPrecedingNode scans the finger table from index m down to 1 and
// returns the first entry whose node id lies strictly between me and id;
// falls back to the successor if none qualifies, per spec.md §4.C4.
func (s *State) ClosestPrecedingNode(id ring.Identifier) ring.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := s.m; i >= 1; i-- {
		fid := s.fingers[i].Node.ID
		if ring.InOpenOpen(fid, s.me.ID, id) {
			return s.fingers[i].Node
		}
	}
	return s.successor
}

// Snapshot is a consistent read of the fields maintenance tasks need to act
// on outside the lock (spec.md §5: "readers never await network I/O while
// holding the lock").
type Snapshot struct {
	Me          ring.Node
	Predecessor ring.Node
	Successor   ring.Node
}

// Snap takes a read-locked snapshot of me/predecessor/successor.
func (s *State) Snap() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Me: s.me, Predecessor: s.predecessor, Successor: s.successor}
}

// tryWriteLocked attempts to acquire the write lock, retrying until
// timeout elapses, and runs fn while holding it. Returns false if the lock
// could not be acquired in time. Used by the internal setters, which bound
// their acquisition wait per spec.md §5 so a slow concurrent writer cannot
// turn into an unbounded stall.
func (s *State) tryWriteLocked(timeout time.Duration, fn func()) bool {
	deadline := time.Now().Add(timeout)
	for {
		if s.mu.TryLock() {
			fn()
			s.mu.Unlock()
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// TrySetSuccessor is SetSuccessor bounded by a write-lock acquisition
// timeout; returns false on timeout (the internal /set-successor endpoint
// maps that to 408, per spec.md §5).
func (s *State) TrySetSuccessor(timeout time.Duration, n ring.Node) bool {
	return s.tryWriteLocked(timeout, func() { s.setSuccessorLocked(n) })
}

// TrySetPredecessor is SetPredecessor bounded by a write-lock acquisition
// timeout; returns false on timeout (the internal /set-predecessor
// endpoint maps that to 408, per spec.md §5).
func (s *State) TrySetPredecessor(timeout time.Duration, n ring.Node) bool {
	return s.tryWriteLocked(timeout, func() { s.predecessor = n })
}

// TryNotify is Notify bounded by a write-lock acquisition timeout. Its
// caller (the internal /notify endpoint) always answers 200 regardless of
// the outcome: on timeout, correctness is delegated to the next stabilize
// tick's notify retry rather than surfaced as an error (spec.md §9 Open
// Question, resolved per the "safer contract").
func (s *State) TryNotify(timeout time.Duration, suggested ring.Node) bool {
	return s.tryWriteLocked(timeout, func() {
		if suggested.Equal(s.me) {
			return
		}
		if s.predecessor.Equal(s.me) || ring.InOpenOpen(suggested.ID, s.predecessor.ID, s.me.ID) {
			s.predecessor = suggested
		}
	})
}
