package chord

import (
	"context"
	"math/rand"
	"time"

	"chordkv/internal/ring"

	"go.uber.org/zap"
)

// iterationDeadline bounds a single maintenance iteration so a stuck RPC
// cannot stall the scheduler, per spec.md §4.C7/§5.
const iterationDeadline = 8 * time.Second

// RunMaintenance starts the three independently-scheduled, jittered
// maintenance tasks (stabilize, fix-fingers, check-predecessor) in their own
// goroutines and returns at once; the tasks stop when ctx is canceled. Each
// task uses time.Ticker's built-in "skip missed
// tick" behavior, matching spec.md §4.C7/§9: a backlogged task drops
// pending ticks instead of queuing them.
//
// Grounded on the teacher's Node.RunMaintenance, which runs all three
// tasks back-to-back off one ticker; this expansion splits them into
// independent goroutines with per-task offsets so one stuck task cannot
// starve the others (REDESIGN FLAG, SPEC_FULL.md §10.2).
func (s *State) RunMaintenance(ctx context.Context, period time.Duration) {
	go s.scheduleTask(ctx, "stabilize", period, 0, s.Stabilize)
	go s.scheduleTask(ctx, "fix-fingers", period, period/3, s.fixFingersTick)
	go s.scheduleTask(ctx, "check-predecessor", period, 2*period/3, s.CheckPredecessor)
}

// scheduleTask runs fn every period, starting after a small random jitter
// plus a fixed per-task offset so the three tasks don't bunch up. Each
// invocation of fn gets a bounded deadline via context.
func (s *State) scheduleTask(ctx context.Context, name string, period, offset time.Duration, fn func(context.Context)) {
	jitter := time.Duration(rand.Intn(200)) * time.Millisecond
	timer := time.NewTimer(jitter + offset)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if s.crashed.Load() {
			// Maintenance idles while crashed, but the scheduler itself
			// keeps running so it resumes immediately on sim-recover.
		} else {
			iterCtx, cancel := context.WithTimeout(ctx, iterationDeadline)
			fn(iterCtx)
			cancel()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// fixFingersTick repairs up to two finger entries per tick, per spec.md
// §4.C7 ("the reference bounds at 2").
func (s *State) fixFingersTick(ctx context.Context) {
	const perTick = 2
	for i := 0; i < perTick; i++ {
		s.FixFingers(ctx)
	}
}

// Stabilize verifies the successor and notifies it of our existence, per
// spec.md §4.C7 Stabilize. Grounded on the teacher's Node.Stabilize, which
// already implements the read-snapshot / RPC-outside-lock / write-back
// shape spec.md §5 requires.
func (s *State) Stabilize(ctx context.Context) {
	snap := s.Snap()

	x, err := s.Client.GetPredecessor(ctx, snap.Successor.Addr)
	if err != nil {
		s.recoverFromDeadSuccessor(ctx, snap)
		return
	}

	// A node whose successor is itself adopts any other node it has learned
	// of as predecessor: the (me, me) arc is empty, so InOpenOpen alone would
	// keep it a singleton after a peer joined through it.
	adopt := !x.Equal(snap.Me) && snap.Successor.Equal(snap.Me)
	if adopt || ring.InOpenOpen(x.ID, snap.Me.ID, snap.Successor.ID) {
		s.log.Debug("stabilize: adopting successor's predecessor as new successor",
			zap.Uint64("new_successor_id", uint64(x.ID)))
		s.SetSuccessor(x)
		snap.Successor = x
	}

	if snap.Successor.Equal(snap.Me) {
		return
	}
	if err := s.Client.Notify(ctx, snap.Successor.Addr, snap.Me); err != nil {
		s.log.Debug("stabilize: notify failed", zap.Error(err))
	}
}

// recoverFromDeadSuccessor scans finger entries upward looking for a live
// peer to promote to successor, falling back to self (singleton) if none
// answer, per spec.md §4.C7 Stabilize step 2.
func (s *State) recoverFromDeadSuccessor(ctx context.Context, snap Snapshot) {
	s.mu.RLock()
	candidates := make([]ring.Node, 0, s.m)
	for i := 2; i <= s.m; i++ {
		n := s.fingers[i].Node
		if !n.Equal(snap.Me) {
			candidates = append(candidates, n)
		}
	}
	s.mu.RUnlock()

	for _, c := range candidates {
		if ok, err := s.Client.Ping(ctx, c.Addr); err == nil && ok {
			s.log.Debug("stabilize: promoting live finger to successor", zap.Uint64("id", uint64(c.ID)))
			s.SetSuccessor(c)
			return
		}
	}

	s.log.Debug("stabilize: no live successor candidate found, becoming singleton")
	s.SetSuccessor(snap.Me)
}

// Notify handles a peer suggesting it might be our predecessor: accept it
// if we have none, or if it is closer than our current one, per spec.md
// §4.C6/§5.
func (s *State) Notify(suggested ring.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if suggested.Equal(s.me) {
		return
	}
	if s.predecessor.Equal(s.me) || ring.InOpenOpen(suggested.ID, s.predecessor.ID, s.me.ID) {
		s.predecessor = suggested
	}
}

// FixFingers refreshes one finger table entry, per spec.md §4.C7
// Fix-fingers.
func (s *State) FixFingers(ctx context.Context) {
	next := s.NextFixIndex()

	s.mu.RLock()
	start := s.fingers[next].Start
	successor := s.successor
	s.mu.RUnlock()

	f, err := s.Client.FindSuccessor(ctx, successor.Addr, start, 0)
	if err != nil {
		f = successor
	}

	s.mu.Lock()
	s.fingers[next] = ring.FingerEntry{Start: start, Node: f}
	if next == 1 {
		s.successor = f
	}
	s.mu.Unlock()
}

// CheckPredecessor pings the predecessor and clears it if unreachable,
// re-verifying under the write lock before acting on a stale observation
// (it may have been replaced by a concurrent Notify), per spec.md §4.C7
// Check-predecessor.
func (s *State) CheckPredecessor(ctx context.Context) {
	snap := s.Snap()
	if snap.Predecessor.Equal(snap.Me) {
		return
	}

	alive, err := s.Client.Ping(ctx, snap.Predecessor.Addr)
	if err == nil && alive {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.predecessor.Equal(snap.Predecessor) {
		s.predecessor = s.me
	}
}
