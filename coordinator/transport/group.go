// Package transport models the rank group a speculative-decoding step runs
// across: one driver rank and N-1 non-driver ranks, synchronized at
// well-defined collective points. Because the actual multi-process
// tensor-parallel workers are out of scope, ranks are modeled in-process as
// goroutines connected by unbuffered channels, which is the closest
// same-process analogue to a collective broadcast.
package transport

import "context"

// ControlMessage is the tuple the driver broadcasts to every rank at the
// start of a step. The zero value (all fields false/zero) and any message
// with Shutdown set are the shutdown sentinel: a peer that receives one
// must stop its loop.
type ControlMessage struct {
	NumLookaheadSlots         int64
	NoSpec                    bool
	DisableAllSpeculation     bool
	RunSpecProposerForPrefill bool
	Shutdown                  bool
}

// IsShutdown reports whether this message is the shutdown sentinel.
func (m ControlMessage) IsShutdown() bool {
	return m.Shutdown || m == ControlMessage{}
}

// Group is an in-process rank group: one driver side, peerCount non-driver
// sides, each connected by its own unbuffered channel.
type Group struct {
	peers []chan ControlMessage
}

// NewGroup returns a Group with peerCount non-driver channels.
func NewGroup(peerCount int) *Group {
	peers := make([]chan ControlMessage, peerCount)
	for i := range peers {
		peers[i] = make(chan ControlMessage)
	}
	return &Group{peers: peers}
}

// PeerCount returns the number of non-driver ranks in the group.
func (g *Group) PeerCount() int {
	return len(g.peers)
}

// Broadcast sends msg to every peer, blocking until each peer's channel
// accepts it (or ctx is done). Each peer must be receiving via Recv on its
// corresponding index concurrently, matching a real collective's
// synchronous semantics: the driver cannot proceed until every rank has
// observed the same control message.
func (g *Group) Broadcast(ctx context.Context, msg ControlMessage) error {
	for _, ch := range g.peers {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Shutdown broadcasts a ControlMessage with only Shutdown set, the
// sentinel that terminates every peer's NonDriverLoop.
func (g *Group) Shutdown(ctx context.Context) error {
	return g.Broadcast(ctx, ControlMessage{Shutdown: true})
}

// Recv blocks on peer index until a message arrives or ctx is canceled. The
// boolean return is false only on context cancellation, never on a
// shutdown message (callers distinguish shutdown via ControlMessage.IsShutdown).
func (g *Group) Recv(ctx context.Context, peerIndex int) (ControlMessage, bool) {
	select {
	case msg := <-g.peers[peerIndex]:
		return msg, true
	case <-ctx.Done():
		return ControlMessage{}, false
	}
}
