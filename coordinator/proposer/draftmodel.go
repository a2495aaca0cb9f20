package proposer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/specdecode/coordinator"
)

// DraftModelProposer models the family of draft-model-backed proposers
// (multi_step, mlp_speculator, medusa, eagle, deepseek_mtp): a small model
// runs its own forward pass k times (or once, for the parallel-head
// variants) and samples a draft token at each step. Internals of an actual
// draft model are out of scope; this produces proposals from a fixed
// synthetic categorical distribution per call, which is enough to drive the
// coordinator's control flow and invariants under test.
//
// Grounded on spec_decode_worker.py's MultiStepWorker/MLPSpeculatorWorker/
// MedusaWorker/EagleWorker dispatch in create_worker.
type DraftModelProposer struct {
	variant             string
	draftTP             int
	numSpecPrefillSteps int
	vocabSize           int64
	lmHeadWeight        []float64
	rng                 *rand.Rand
}

// NewDraftModelProposer constructs a DraftModelProposer for the named
// variant ("multi_step", "mlp_speculator", "medusa", "eagle", "deepseek_mtp").
func NewDraftModelProposer(variant string, draftTP int, numSpecPrefillSteps int, vocabSize int64) (coordinator.ProposerWorker, error) {
	if variant == "eagle" && draftTP > 1 {
		return nil, &coordinator.ConfigurationError{Reason: "eagle draft models do not support tensor-parallel degree > 1"}
	}
	steps := numSpecPrefillSteps
	if steps < 1 {
		steps = 1
	}
	return &DraftModelProposer{
		variant:             variant,
		draftTP:             draftTP,
		numSpecPrefillSteps: steps,
		vocabSize:           vocabSize,
		rng:                 rand.New(rand.NewSource(0)),
	}, nil
}

func (p *DraftModelProposer) InitDevice() error { return nil }
func (p *DraftModelProposer) LoadModel() error  { return nil }
func (p *DraftModelProposer) InitializeCache(gpuBlocks, cpuBlocks int64) error { return nil }
func (p *DraftModelProposer) CacheBlockSizeBytes() int64                      { return 1 }
func (p *DraftModelProposer) VocabSize() int64                                { return p.vocabSize }
func (p *DraftModelProposer) SetIncludeGPUProbsTensor()                       {}
func (p *DraftModelProposer) SetShouldModifyGreedyProbsInPlace()              {}

// MaybeLoadLMHeadWeight stores the shared lm-head weight gathered by
// LifecycleManager, used only by the eagle variant.
func (p *DraftModelProposer) MaybeLoadLMHeadWeight(weight []float64) {
	if p.variant == "eagle" {
		p.lmHeadWeight = weight
	}
}

// AllowsZeroProposals mirrors create_worker's rule: a distributed draft
// model (draft tensor-parallel degree > 1) must never legitimately produce
// zero proposals, because there is no cheap fallback path once its k
// forward passes have already been issued across ranks.
func (p *DraftModelProposer) AllowsZeroProposals() bool {
	return p.draftTP <= 1
}

// ExecuteModel stands in for one forward pass of the draft model (the
// prefill-sync sub-step). The synthetic proposer keeps no KV cache, so it
// does nothing and returns nil.
func (p *DraftModelProposer) ExecuteModel(ctx context.Context, req *coordinator.ExecuteModelRequest) error {
	return nil
}

// GetSpecProposals draws k draft tokens and a synthetic categorical
// distribution per sequence. Sequences with NumSpeculativeTokens == 0
// propose nothing.
func (p *DraftModelProposer) GetSpecProposals(ctx context.Context, req *coordinator.ExecuteModelRequest, bonusTokens coordinator.BonusTokenSet) (*coordinator.SpeculativeProposals, error) {
	k := req.NumLookaheadSlots
	if k <= 0 {
		return &coordinator.SpeculativeProposals{NoProposals: true}, nil
	}

	tokenIDs := make([][]int64, len(req.SeqGroupMetadataList))
	probs := make(coordinator.ProbTensor3D, len(req.SeqGroupMetadataList))
	lens := make([]int64, len(req.SeqGroupMetadataList))
	anyProposal := false

	for i, meta := range req.SeqGroupMetadataList {
		if meta.NumSpeculativeTokens == 0 {
			tokenIDs[i] = fill(int(k), coordinator.InvalidTokenID)
			probs[i] = nil
			continue
		}
		row := make([]int64, k)
		mat := make(coordinator.ProbMatrix, k)
		for step := int64(0); step < k; step++ {
			dist := p.syntheticDistribution(meta.SeqID, step)
			p.rng.Seed(meta.SeqID*1000 + step)
			row[step] = sampleCategorical(p.rng, dist)
			mat[step] = dist
		}
		tokenIDs[i] = row
		probs[i] = mat
		lens[i] = k
		anyProposal = true
	}

	if !anyProposal && !p.AllowsZeroProposals() {
		return nil, fmt.Errorf("draft model %s (tp=%d) produced zero proposals: %w", p.variant, p.draftTP, &coordinator.ZeroProposalsError{})
	}

	return &coordinator.SpeculativeProposals{
		ProposalTokenIDs: tokenIDs,
		ProposalProbs:    probs,
		ProposalLens:     lens,
		NoProposals:      !anyProposal,
	}, nil
}

// syntheticDistribution produces a deterministic, peaked categorical
// distribution over the vocabulary, seeded by sequence id and step so
// repeated calls within a test are reproducible.
func (p *DraftModelProposer) syntheticDistribution(seqID int64, step int64) []float64 {
	v := int(p.vocabSize)
	dist := make([]float64, v)
	peak := int((seqID*31 + step*7) % int64(v))
	sum := 0.0
	for i := range dist {
		d := math.Abs(float64(i - peak))
		val := math.Exp(-d / 4.0)
		dist[i] = val
		sum += val
	}
	for i := range dist {
		dist[i] /= sum
	}
	return dist
}

func sampleCategorical(rng *rand.Rand, dist []float64) int64 {
	r := rng.Float64()
	cum := 0.0
	for i, p := range dist {
		cum += p
		if r < cum {
			return int64(i)
		}
	}
	return int64(len(dist) - 1)
}
