package coordinator

// BonusTokenTracker remembers which sequence ids received a bonus token in
// the previous step, and which sequence ids belong to which request, so
// that finished requests can be dropped in one pass. Single-owner mutable
// state on the driver rank; never observed by non-driver ranks.
//
// Grounded on the teacher's WaitQueue/RequestMap bookkeeping style: plain
// owned maps mutated by small methods, no external synchronization.
type BonusTokenTracker struct {
	seqWithBonusToken map[int64]struct{}
	requestSeqIDs     map[string]map[int64]struct{}
}

// NewBonusTokenTracker returns an empty tracker.
func NewBonusTokenTracker() *BonusTokenTracker {
	return &BonusTokenTracker{
		seqWithBonusToken: make(map[int64]struct{}),
		requestSeqIDs:     make(map[string]map[int64]struct{}),
	}
}

// DropFinished removes all sequence ids belonging to any request id in
// finishedRequestIDs from both the bonus-token set and the request map.
// Idempotent against unknown ids.
func (t *BonusTokenTracker) DropFinished(finishedRequestIDs []string) {
	for _, reqID := range finishedRequestIDs {
		for seqID := range t.requestSeqIDs[reqID] {
			delete(t.seqWithBonusToken, seqID)
		}
		delete(t.requestSeqIDs, reqID)
	}
}

// Snapshot returns the current bonus-token set (read-only view for callers
// that pass it to the proposer).
func (t *BonusTokenTracker) Snapshot() BonusTokenSet {
	out := make(BonusTokenSet, len(t.seqWithBonusToken))
	for seqID := range t.seqWithBonusToken {
		out[seqID] = struct{}{}
	}
	return out
}

// Update recomputes bonus-token membership from the final per-sequence
// accepted row (the last step of accepted_token_ids_by_step), and merges
// newly seen request->seqIDs associations. seqIDs and lastStepTokenIDs
// must be the same length, index-aligned.
func (t *BonusTokenTracker) Update(seqIDs []int64, lastStepTokenIDs []int64, requestSeqIDs map[string]map[int64]struct{}) {
	for i, seqID := range seqIDs {
		if i >= len(lastStepTokenIDs) {
			break
		}
		if lastStepTokenIDs[i] == PadTokenID {
			delete(t.seqWithBonusToken, seqID)
		} else {
			t.seqWithBonusToken[seqID] = struct{}{}
		}
	}
	for reqID, seqs := range requestSeqIDs {
		existing, ok := t.requestSeqIDs[reqID]
		if !ok {
			existing = make(map[int64]struct{})
			t.requestSeqIDs[reqID] = existing
		}
		for seqID := range seqs {
			existing[seqID] = struct{}{}
		}
	}
}
