package chord

import "errors"

// ErrPeerCrashed is returned by a Client RPC when the peer answered with
// 503, meaning it is in simulated-crash state rather than merely
// unreachable.
var ErrPeerCrashed = errors.New("chord: peer reports simulated crash")

// ErrPeerUnreachable is returned by a Client RPC on network failure,
// timeout, or a malformed (non-JSON) 2xx body — the forwarding/maintenance
// logic treats all three the same way: the peer did not give a usable
// answer.
var ErrPeerUnreachable = errors.New("chord: peer unreachable")

// ErrLockTimeout is returned by Client.SetSuccessor and Client.SetPredecessor
// when the peer answered 408 because it could not acquire its chord state
// write lock within the bounded acquisition window.
var ErrLockTimeout = errors.New("chord: timed out acquiring state lock")
