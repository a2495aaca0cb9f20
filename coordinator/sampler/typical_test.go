package sampler

import (
	"testing"

	"github.com/specdecode/coordinator"
)

func TestTypicalAcceptanceSampler_AcceptsTokenAboveThreshold(t *testing.T) {
	s := NewTypicalAcceptanceSampler(0.1, 0.0)
	targetDist := []float64{0.05, 0.9, 0.05}
	args := coordinator.AcceptanceSamplerArgs{
		DraftTokenIDs:        [][]int64{{1}},
		TargetWithBonusProbs: coordinator.ProbTensor3D{{targetDist, targetDist}},
	}

	out, err := s.Sample(args)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if out[0][0] != 1 {
		t.Errorf("expected token 1 to be accepted (p=0.9 clears threshold 0.1), got row %v", out[0])
	}
	if out[0][1] != 1 {
		t.Errorf("expected the bonus token to be the target argmax (1), got %d", out[0][1])
	}
}

func TestTypicalAcceptanceSampler_RejectsTokenBelowThreshold(t *testing.T) {
	s := NewTypicalAcceptanceSampler(0.5, 0.0)
	targetDist := []float64{0.4, 0.3, 0.3}
	args := coordinator.AcceptanceSamplerArgs{
		DraftTokenIDs:        [][]int64{{0}},
		TargetWithBonusProbs: coordinator.ProbTensor3D{{targetDist, targetDist}},
	}

	out, err := s.Sample(args)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if out[0][0] != coordinator.PadTokenID {
		t.Errorf("expected token 0 (p=0.4) to be rejected against threshold 0.5, got row %v", out[0])
	}
}

func TestTypicalAcceptanceSampler_IsDeterministicAcrossRuns(t *testing.T) {
	s := NewTypicalAcceptanceSampler(0.2, 0.1)
	targetDist := []float64{0.1, 0.6, 0.3}
	args := coordinator.AcceptanceSamplerArgs{
		DraftTokenIDs:        [][]int64{{1}},
		TargetWithBonusProbs: coordinator.ProbTensor3D{{targetDist, targetDist}},
	}

	first, err := s.Sample(args)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	second, err := s.Sample(args)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if first[0][0] != second[0][0] || first[0][1] != second[0][1] {
		t.Errorf("expected identical output across runs with the same inputs, got %v vs %v", first[0], second[0])
	}
}

func TestTypicalAcceptanceSampler_IsNotStochastic(t *testing.T) {
	s := NewTypicalAcceptanceSampler(0.1, 0.1)
	if s.IsStochastic() {
		t.Error("TypicalAcceptanceSampler must report itself as deterministic")
	}
}

func TestTypicalAcceptanceSampler_InvalidTokenStopsProcessing(t *testing.T) {
	s := NewTypicalAcceptanceSampler(0.1, 0.0)
	targetDist := []float64{0.5, 0.5}
	args := coordinator.AcceptanceSamplerArgs{
		DraftTokenIDs:        [][]int64{{coordinator.InvalidTokenID}},
		TargetWithBonusProbs: coordinator.ProbTensor3D{{targetDist, targetDist}},
	}

	out, err := s.Sample(args)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	for _, tok := range out[0] {
		if tok != coordinator.PadTokenID {
			t.Errorf("expected an all-pad row for an invalid-token slot, got %v", out[0])
		}
	}
}
