package coordinator

import "context"

// ProposerWorker is the collaborator contract for the cheap proposal
// model (n-gram, small draft model, Medusa, MLP-speculator, Eagle, MTP).
// Implementations live in coordinator/proposer.
type ProposerWorker interface {
	InitDevice() error
	LoadModel() error
	InitializeCache(gpuBlocks, cpuBlocks int64) error
	CacheBlockSizeBytes() int64
	VocabSize() int64
	SetIncludeGPUProbsTensor()
	SetShouldModifyGreedyProbsInPlace()
	MaybeLoadLMHeadWeight(weight []float64)
	GetSpecProposals(ctx context.Context, req *ExecuteModelRequest, bonusTokens BonusTokenSet) (*SpeculativeProposals, error)
	ExecuteModel(ctx context.Context, req *ExecuteModelRequest) error
	// AllowsZeroProposals reports whether this proposer variant may
	// legitimately return SpeculativeProposals.NoProposals == true
	// (distributed-draft proposers with draft TP > 1 must not).
	AllowsZeroProposals() bool
}

// ScorerWorker is the collaborator contract for the target model.
// Implementations live in coordinator/scorer.
type ScorerWorker interface {
	InitDevice() error
	LoadModel() error
	DetermineNumAvailableBlocks() (gpu, cpu int64, err error)
	CacheBlockSizeBytes() int64
	InitializeCache(gpuBlocks, cpuBlocks int64) error
	ExecuteModel(ctx context.Context, req *ExecuteModelRequest) ([]SamplerOutput, error)
	ScoreProposals(ctx context.Context, req *ExecuteModelRequest, proposals *SpeculativeProposals) (*SpeculativeScores, error)
	VocabSize() int64
	Rank() int
}

// AcceptanceSamplerArgs bundles the inputs to an AcceptanceSampler call.
type AcceptanceSamplerArgs struct {
	TargetWithBonusProbs ProbTensor3D   // [spec][k+1][V]
	BonusTokenIDs        [][]int64      // [spec][1]
	DraftProbs           ProbTensor3D   // [spec][k][V]
	DraftTokenIDs        [][]int64      // [spec][k]
	SeededSeqs           map[int]*SeededRNG // batch-index -> deterministic RNG, when seeded
}

// AcceptanceSampler is the collaborator contract for the acceptance rule
// (rejection sampling or typical acceptance). Implementations live in
// coordinator/sampler.
type AcceptanceSampler interface {
	Sample(args AcceptanceSamplerArgs) (AcceptedTokenIDs, error)
	ProbsDType() string
	TokenIDDType() string
	// IsStochastic reports whether this sampler consumes per-request RNGs
	// (true for rejection sampling, false for typical acceptance).
	IsStochastic() bool
}

// MetricsCollector is the collaborator contract for periodic
// rejection-sampling statistics.
type MetricsCollector interface {
	InitTensors(rank int)
	MaybeCollectRejSampleMetrics(k int64) *SpecDecodeMetrics
}

// Factory registration variables. Sibling packages (coordinator/proposer,
// coordinator/scorer, coordinator/sampler) set these from an init()
// function, mirroring how the teacher's sim/kv and sim/latency packages
// wire NewKVStoreFromConfig and NewLatencyModelFunc into package sim.
var (
	// NewNGramProposerFunc constructs the n-gram prompt-lookup proposer.
	NewNGramProposerFunc func(minN, maxN int, vocabSize int64) ProposerWorker

	// NewDraftModelProposerFunc constructs a draft-model-backed proposer
	// for the multi-step/medusa/mlp-speculator/eagle/deepseek-mtp family.
	NewDraftModelProposerFunc func(variant string, draftTP int, numSpecPrefillSteps int, vocabSize int64) (ProposerWorker, error)

	// NewBatchExpansionScorerFunc constructs the batch-expansion scorer.
	NewBatchExpansionScorerFunc func(vocabSize int64) ScorerWorker

	// NewMQAScorerFunc constructs the multi-query-attention scorer.
	NewMQAScorerFunc func(vocabSize int64) ScorerWorker

	// NewRejectionSamplerFunc constructs the rejection-sampling acceptance sampler.
	NewRejectionSamplerFunc func() AcceptanceSampler

	// NewTypicalAcceptanceSamplerFunc constructs the typical-acceptance sampler.
	NewTypicalAcceptanceSamplerFunc func(posteriorThreshold, posteriorAlpha float64) AcceptanceSampler
)
