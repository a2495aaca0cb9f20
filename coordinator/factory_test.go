package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeProposer and fakeScorer are minimal stand-ins so factory_test.go can
// exercise BuildCoordinator's selection logic without importing
// coordinator/proposer or coordinator/scorer (which would create an import
// cycle back into this package).
type fakeProposer struct{ allowsZero bool }

func (f *fakeProposer) InitDevice() error                                   { return nil }
func (f *fakeProposer) LoadModel() error                                    { return nil }
func (f *fakeProposer) InitializeCache(gpu, cpu int64) error                { return nil }
func (f *fakeProposer) CacheBlockSizeBytes() int64                          { return 1 }
func (f *fakeProposer) VocabSize() int64                                   { return 100 }
func (f *fakeProposer) SetIncludeGPUProbsTensor()                          {}
func (f *fakeProposer) SetShouldModifyGreedyProbsInPlace()                 {}
func (f *fakeProposer) MaybeLoadLMHeadWeight(weight []float64)             {}
func (f *fakeProposer) AllowsZeroProposals() bool                          { return f.allowsZero }
func (f *fakeProposer) ExecuteModel(ctx context.Context, req *ExecuteModelRequest) error { return nil }
func (f *fakeProposer) GetSpecProposals(ctx context.Context, req *ExecuteModelRequest, bonus BonusTokenSet) (*SpeculativeProposals, error) {
	return &SpeculativeProposals{NoProposals: true}, nil
}

type fakeScorer struct{}

func (f *fakeScorer) InitDevice() error                                                          { return nil }
func (f *fakeScorer) LoadModel() error                                                           { return nil }
func (f *fakeScorer) DetermineNumAvailableBlocks() (int64, int64, error)                         { return 10, 5, nil }
func (f *fakeScorer) CacheBlockSizeBytes() int64                                                 { return 1 }
func (f *fakeScorer) InitializeCache(gpu, cpu int64) error                                       { return nil }
func (f *fakeScorer) VocabSize() int64                                                           { return 100 }
func (f *fakeScorer) Rank() int                                                                  { return 0 }
func (f *fakeScorer) ExecuteModel(ctx context.Context, req *ExecuteModelRequest) ([]SamplerOutput, error) {
	return nil, nil
}
func (f *fakeScorer) ScoreProposals(ctx context.Context, req *ExecuteModelRequest, p *SpeculativeProposals) (*SpeculativeScores, error) {
	return &SpeculativeScores{}, nil
}

func withRegisteredFactories(t *testing.T) {
	t.Helper()
	prevNGram, prevDraft := NewNGramProposerFunc, NewDraftModelProposerFunc
	prevRejection, prevTypical := NewRejectionSamplerFunc, NewTypicalAcceptanceSamplerFunc

	NewNGramProposerFunc = func(minN, maxN int, vocabSize int64) ProposerWorker { return &fakeProposer{allowsZero: true} }
	NewDraftModelProposerFunc = func(variant string, draftTP int, steps int, vocabSize int64) (ProposerWorker, error) {
		return &fakeProposer{allowsZero: draftTP <= 1}, nil
	}
	NewRejectionSamplerFunc = func() AcceptanceSampler { return &fakeSampler{bonusToken: 0} }
	NewTypicalAcceptanceSamplerFunc = func(threshold, alpha float64) AcceptanceSampler { return &fakeSampler{bonusToken: 0} }

	t.Cleanup(func() {
		NewNGramProposerFunc = prevNGram
		NewDraftModelProposerFunc = prevDraft
		NewRejectionSamplerFunc = prevRejection
		NewTypicalAcceptanceSamplerFunc = prevTypical
	})
}

func TestBuildCoordinator_SelectsNGramWhenPromptLookupEnabled(t *testing.T) {
	withRegisteredFactories(t)
	cfg := validConfig()
	cfg.NgramPromptLookupMax = 3
	cfg.DraftModelType = "not-a-real-type" // exempted when ngram lookup is on

	built, err := BuildCoordinator(cfg, &fakeScorer{}, nil, 2)
	require.NoError(t, err)
	require.NotNil(t, built.Driver.Proposer)
	require.Len(t, built.Peers, 2)
}

func TestBuildCoordinator_RejectsInvalidConfig(t *testing.T) {
	withRegisteredFactories(t)
	cfg := validConfig()
	cfg.VocabSize = 0

	_, err := BuildCoordinator(cfg, &fakeScorer{}, nil, 1)
	require.Error(t, err)
}

func TestBuildCoordinator_WiresGroupWithPeerCount(t *testing.T) {
	withRegisteredFactories(t)
	cfg := validConfig()

	built, err := BuildCoordinator(cfg, &fakeScorer{}, nil, 3)
	require.NoError(t, err)
	require.Equal(t, 3, built.Group.PeerCount())
}

func TestResolveMQAScorerDisable_NonFlashAttentionForcesFallback(t *testing.T) {
	cfg := validConfig()
	cfg.AttentionBackendIsFlash = false
	if !ResolveMQAScorerDisable(cfg) {
		t.Error("expected MQA scorer to be disabled when the backend is not flash-attention")
	}
}

func TestResolveMQAScorerDisable_ShorterDraftContextForcesFallback(t *testing.T) {
	cfg := validConfig()
	cfg.AttentionBackendIsFlash = true
	cfg.TargetIsEagerMode = true
	cfg.DraftMaxModelLen = 1000
	cfg.TargetMaxModelLen = 4000
	if !ResolveMQAScorerDisable(cfg) {
		t.Error("expected MQA scorer to be disabled when the draft's context window is shorter")
	}
}

func TestResolveMQAScorerDisable_AllConditionsSatisfiedKeepsMQA(t *testing.T) {
	cfg := validConfig()
	cfg.AttentionBackendIsFlash = true
	cfg.TargetIsEagerMode = true
	cfg.DraftMaxModelLen = 4000
	cfg.TargetMaxModelLen = 4000
	if ResolveMQAScorerDisable(cfg) {
		t.Error("expected MQA scorer to remain enabled when all fallback conditions are false")
	}
}
