package coordinator

import (
	"context"

	"github.com/specdecode/coordinator/internal/util"
	"github.com/specdecode/coordinator/transport"
)

// NonDriverLoop mirrors StepDriver on a non-driver (peer) rank: it never
// decides anything, it only receives the control message the driver
// broadcast and issues the matching sequence of proposer/scorer calls so
// that every rank in the group makes the same number of collective calls in
// the same order.
//
// Grounded on spec_decode_worker.py's _run_non_driver_rank: the call order
// depends on whether this step is no_spec, matching scorer-before-proposer
// for prefill-mixed batches and proposer-before-scorer for pure decode.
type NonDriverLoop struct {
	Proposer  ProposerWorker
	Scorer    ScorerWorker
	Group     *transport.Group
	PeerIndex int
}

// NewNonDriverLoop wires a NonDriverLoop for one peer rank.
func NewNonDriverLoop(proposer ProposerWorker, scorer ScorerWorker, group *transport.Group, peerIndex int) *NonDriverLoop {
	return &NonDriverLoop{Proposer: proposer, Scorer: scorer, Group: group, PeerIndex: peerIndex}
}

// Run blocks, processing broadcast control messages until it receives the
// shutdown sentinel or ctx is canceled. nextReq supplies the per-step batch
// metadata the driver and peers share out of band (in the real multi-process
// system this travels with the scheduler's output; here the caller is
// expected to keep it in sync with what StepDriver.RunStep is given).
func (l *NonDriverLoop) Run(ctx context.Context, nextReq func() *ExecuteModelRequest) error {
	for {
		msg, ok := l.Group.Recv(ctx, l.PeerIndex)
		if !ok {
			return ctx.Err()
		}
		if msg.IsShutdown() {
			return nil
		}

		req := nextReq()

		if msg.NoSpec {
			if _, err := l.Scorer.ExecuteModel(ctx, req); err != nil {
				return err
			}
		}

		if !msg.DisableAllSpeculation {
			reps := util.Max64(msg.NumLookaheadSlots, 1)
			for i := int64(0); i < reps; i++ {
				if err := l.Proposer.ExecuteModel(ctx, req); err != nil {
					return err
				}
			}
		}

		if !msg.NoSpec {
			if _, err := l.Scorer.ExecuteModel(ctx, req); err != nil {
				return err
			}
			if msg.RunSpecProposerForPrefill {
				if err := l.Proposer.ExecuteModel(ctx, req); err != nil {
					return err
				}
			}
		}
	}
}
