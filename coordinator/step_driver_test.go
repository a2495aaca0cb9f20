package coordinator

import (
	"context"
	"testing"

	"github.com/specdecode/coordinator/transport"
)

// noSpecOnlyScorer answers ExecuteModel with one token-only SamplerOutput
// holding an entry per sequence and never expects ScoreProposals to be called.
type noSpecOnlyScorer struct {
	fakeScorer
	executeModelCalls int
}

func (s *noSpecOnlyScorer) ExecuteModel(ctx context.Context, req *ExecuteModelRequest) ([]SamplerOutput, error) {
	s.executeModelCalls++
	entries := make([]SamplerOutputEntry, len(req.SeqGroupMetadataList))
	for i, meta := range req.SeqGroupMetadataList {
		entries[i] = SamplerOutputEntry{SeqID: meta.SeqID, TokenID: 42, HasSample: true}
	}
	return []SamplerOutput{{Outputs: entries}}, nil
}

func newTestDriver(proposer ProposerWorker, scorer ScorerWorker, sampler AcceptanceSampler) *StepDriver {
	return NewStepDriver(proposer, scorer, sampler, transport.NewGroup(0), nil)
}

func TestStepDriver_NumLookaheadSlotsZero_TakesNoSpecPath(t *testing.T) {
	scorer := &noSpecOnlyScorer{}
	proposer := &countingProposer{}
	driver := newTestDriver(proposer, scorer, &fakeSampler{})

	req := &ExecuteModelRequest{
		SeqGroupMetadataList: []*SequenceMetadata{{SeqID: 1, IsPrompt: false, DoSample: true}},
		NumLookaheadSlots:    0,
	}

	outputs, err := driver.RunStep(context.Background(), req)
	if err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if scorer.executeModelCalls != 1 {
		t.Errorf("expected exactly one scorer.ExecuteModel call on the no-spec path, got %d", scorer.executeModelCalls)
	}
	if len(outputs) != 1 || outputs[0].Outputs[0].TokenID != 42 {
		t.Errorf("unexpected outputs: %+v", outputs)
	}
}

// TestStepDriver_NoSpec_StillInvokesProposerPrefillSync covers boundary
// scenario 1 (spec.md): even when a ScorerWorker exposes no hidden-state
// side channel, the no-spec path must still call the proposer once for
// prefill-sync whenever speculation isn't disabled outright, matching
// NonDriverLoop's unconditional proposer call on the mirrored peer rank.
func TestStepDriver_NoSpec_StillInvokesProposerPrefillSync(t *testing.T) {
	scorer := &noSpecOnlyScorer{}
	proposer := &countingProposer{}
	driver := newTestDriver(proposer, scorer, &fakeSampler{})

	req := &ExecuteModelRequest{
		SeqGroupMetadataList: []*SequenceMetadata{{SeqID: 1, IsPrompt: false, DoSample: true}},
		NumLookaheadSlots:    0,
	}

	if _, err := driver.RunStep(context.Background(), req); err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if proposer.calls != 1 {
		t.Errorf("expected exactly one proposer prefill-sync call, got %d", proposer.calls)
	}
}

func TestStepDriver_DisableByBatchSize_ForcesNoSpecAndZeroesSpecTokens(t *testing.T) {
	scorer := &noSpecOnlyScorer{}
	proposer := &countingProposer{}
	driver := newTestDriver(proposer, scorer, &fakeSampler{})
	driver.DisableByBatchSize = 2

	meta := &SequenceMetadata{SeqID: 1, NumSpeculativeTokens: 5}
	req := &ExecuteModelRequest{
		SeqGroupMetadataList: []*SequenceMetadata{meta},
		NumLookaheadSlots:    5,
		RunningQueueSize:     10,
	}

	if _, err := driver.RunStep(context.Background(), req); err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if meta.NumSpeculativeTokens != 0 {
		t.Errorf("expected NumSpeculativeTokens to be zeroed when speculation is disabled by batch size, got %d", meta.NumSpeculativeTokens)
	}
	if scorer.executeModelCalls != 1 {
		t.Errorf("expected the no-spec path to run, got %d scorer.ExecuteModel calls", scorer.executeModelCalls)
	}
	if proposer.calls != 0 {
		t.Errorf("expected the proposer prefill-sync to be skipped when speculation is disabled by batch size, got %d calls", proposer.calls)
	}
}

func TestStepDriver_AllPromptWithNonzeroLookahead_IsInvariantViolation(t *testing.T) {
	driver := newTestDriver(&fakeProposer{allowsZero: true}, &noSpecOnlyScorer{}, &fakeSampler{})
	req := &ExecuteModelRequest{
		SeqGroupMetadataList: []*SequenceMetadata{{SeqID: 1, IsPrompt: true}},
		NumLookaheadSlots:    4,
	}

	_, err := driver.RunStep(context.Background(), req)
	if err == nil {
		t.Fatal("expected an invariant violation error")
	}
	var invErr *InvariantViolation
	if !asInvariantViolation(err, &invErr) {
		t.Errorf("expected *InvariantViolation, got %T: %v", err, err)
	}
}

func asInvariantViolation(err error, target **InvariantViolation) bool {
	if ie, ok := err.(*InvariantViolation); ok {
		*target = ie
		return true
	}
	return false
}

func TestStepDriver_ZeroProposalsWhenProposerForbidsThemIsFatal(t *testing.T) {
	driver := newTestDriver(&fakeProposer{allowsZero: false}, &fakeScorer{}, &fakeSampler{})
	req := &ExecuteModelRequest{
		SeqGroupMetadataList: []*SequenceMetadata{{SeqID: 1, NumSpeculativeTokens: 5}},
		NumLookaheadSlots:    5,
	}

	_, err := driver.RunStep(context.Background(), req)
	if err == nil {
		t.Fatal("expected an error from a proposer returning zero proposals")
	}
	if _, ok := err.(*ZeroProposalsError); !ok {
		t.Errorf("expected *ZeroProposalsError, got %T: %v", err, err)
	}
}
