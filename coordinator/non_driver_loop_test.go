package coordinator

import (
	"context"
	"testing"

	"github.com/specdecode/coordinator/transport"
)

type countingScorer struct {
	fakeScorer
	calls int
}

func (s *countingScorer) ExecuteModel(ctx context.Context, req *ExecuteModelRequest) ([]SamplerOutput, error) {
	s.calls++
	return nil, nil
}

type countingProposer struct {
	fakeProposer
	calls int
}

func (p *countingProposer) ExecuteModel(ctx context.Context, req *ExecuteModelRequest) error {
	p.calls++
	return nil
}

func TestNonDriverLoop_NoSpecStep_CallsScorerOnceThenProposerOnce(t *testing.T) {
	group := transport.NewGroup(1)
	scorer := &countingScorer{}
	proposer := &countingProposer{}
	loop := NewNonDriverLoop(proposer, scorer, group, 0)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background(), func() *ExecuteModelRequest { return &ExecuteModelRequest{} }) }()

	ctx := context.Background()
	if err := group.Broadcast(ctx, transport.ControlMessage{NoSpec: true}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if err := group.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if scorer.calls != 1 {
		t.Errorf("expected exactly one scorer.ExecuteModel call, got %d", scorer.calls)
	}
	if proposer.calls != 1 {
		t.Errorf("expected exactly one proposer.ExecuteModel call (prefill sync at k=0) on a no-spec step, got %d", proposer.calls)
	}
}

func TestNonDriverLoop_SpeculativeStep_CallsProposerThenScorer(t *testing.T) {
	group := transport.NewGroup(1)
	scorer := &countingScorer{}
	proposer := &countingProposer{}
	loop := NewNonDriverLoop(proposer, scorer, group, 0)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background(), func() *ExecuteModelRequest { return &ExecuteModelRequest{} }) }()

	ctx := context.Background()
	if err := group.Broadcast(ctx, transport.ControlMessage{NumLookaheadSlots: 3}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if err := group.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if proposer.calls != 3 {
		t.Errorf("expected 3 proposer.ExecuteModel calls (one per lookahead slot), got %d", proposer.calls)
	}
	if scorer.calls != 1 {
		t.Errorf("expected exactly one scorer.ExecuteModel call, got %d", scorer.calls)
	}
}

func TestNonDriverLoop_DisableAllSpeculation_SkipsProposerEntirely(t *testing.T) {
	group := transport.NewGroup(1)
	scorer := &countingScorer{}
	proposer := &countingProposer{}
	loop := NewNonDriverLoop(proposer, scorer, group, 0)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background(), func() *ExecuteModelRequest { return &ExecuteModelRequest{} }) }()

	ctx := context.Background()
	if err := group.Broadcast(ctx, transport.ControlMessage{DisableAllSpeculation: true, NumLookaheadSlots: 5}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if err := group.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if proposer.calls != 0 {
		t.Errorf("expected zero proposer calls when speculation is disabled, got %d", proposer.calls)
	}
}
