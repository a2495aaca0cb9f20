package coordinator

// Sentinels. InvalidTokenID marks a chunked-prefill slot that does not
// predict a token (it appears in scorer outputs and gates hidden-state
// selection); PadTokenID marks "no accepted token in this slot" in
// accepted-token rows and assembler outputs. Both happen to be -1, but
// they are semantically distinct and must not be conflated: a row
// position being InvalidTokenID says "this step never ran a sampler for
// this sequence", while PadTokenID says "the sampler ran but no further
// tokens were accepted here".
const (
	InvalidTokenID int64 = -1
	PadTokenID     int64 = -1
)

// SamplingParams carries the per-sequence sampling configuration relevant
// to speculative decoding bookkeeping.
type SamplingParams struct {
	Seed            *int64 // nil = unseeded (non-deterministic) sampling
	PromptLogprobs  int    // number of prompt logprobs requested (0 = none)
	MaxLogprobs     int    // number of top-k logprobs requested per step
}

// SequenceMetadata describes one sequence participating in a step.
type SequenceMetadata struct {
	RequestID           string
	SeqID               int64
	IsPrompt            bool
	DoSample            bool
	NumSpeculativeTokens int64 // 0 disables speculation for this sequence
	TokenChunkSize      int64
	NumComputedTokens   int64
	PromptTokenIDs      []int64 // full prompt, searched by the n-gram proposer
	SamplingParams      SamplingParams
}

// ExecuteModelRequest is the per-step input to the coordinator.
type ExecuteModelRequest struct {
	SeqGroupMetadataList []*SequenceMetadata // prefills first, then decodes
	NumLookaheadSlots    int64               // k, shared across the batch, or 0
	RunningQueueSize     int64
	FinishedRequestsIDs  []string
	SpecStepIdx          int

	// PreviousHiddenStates is populated by the coordinator before invoking
	// the proposer; the coordinator does not reset it afterwards.
	PreviousHiddenStates *HiddenStates
}

// Clone returns a shallow copy of the request with a replaced sequence
// list, used when invoking the proposer on a sub-batch (e.g. the
// prefill-sync sub-step).
func (r *ExecuteModelRequest) Clone(subset []*SequenceMetadata) *ExecuteModelRequest {
	clone := *r
	clone.SeqGroupMetadataList = subset
	return &clone
}

// ProbMatrix is a dense [steps][vocab] probability/logprob matrix, one per
// sequence row.
type ProbMatrix [][]float64

// ProbTensor3D is a dense [B][steps][vocab] probability/logprob tensor,
// represented as one ProbMatrix per batch row.
type ProbTensor3D []ProbMatrix

// SpeculativeProposals is the proposer's output for one step.
type SpeculativeProposals struct {
	ProposalTokenIDs [][]int64    // [B][k], InvalidTokenID where none
	ProposalProbs    ProbTensor3D // [B] rows of [k][V]
	ProposalLens     []int64      // [B], each 0 or k
	NoProposals      bool
}

// SpeculativeScores is the scorer's output for one step.
type SpeculativeScores struct {
	Probs          ProbTensor3D        // [B] rows, each [k+1][V]
	TokenIDs       [][]int64           // [B][k+1]
	Logprobs       ProbTensor3D        // [B] rows, each [k+1][V]
	HiddenStates   [][][]float64       // [B][k+1][D], optional (nil if unused)
	PromptLogprobs []PromptLogprobRow  // optional, one row per sequence needing them
}

// PromptLogprobRow carries the prompt logprobs for one sequence's prefill chunk.
type PromptLogprobRow struct {
	SeqIndex int
	Entries  []LogprobEntry
}

// LogprobEntry is a single (token, rank, logprob, topk) record.
type LogprobEntry struct {
	TokenID        int64
	Rank           int
	Logprob        float64
	TopKTokenIDs   []int64
	TopKLogprobs   []float64
}

// HiddenState is a single sequence's hidden state vector(s).
type HiddenState struct {
	Last           []float64
	SecondToLast   []float64 // optional, nil if not tracked
}

// HiddenStates bundles hidden state rows with the metadata list they
// correspond to, mirroring what the scorer hands back after a forward pass.
type HiddenStates struct {
	Rows     [][]float64 // aligned with Meta, one row per sequence
	Meta     []*SequenceMetadata
	SecondLast [][]float64 // optional parallel rows, nil if unused
}

// AcceptedTokenIDs is the [rows][k+1] output of an acceptance sampler.
type AcceptedTokenIDs [][]int64

// BonusTokenSet is the set of sequence ids that received a bonus token in
// the previous step.
type BonusTokenSet map[int64]struct{}

// Contains reports whether seqID is in the set.
func (s BonusTokenSet) Contains(seqID int64) bool {
	_, ok := s[seqID]
	return ok
}

// SamplerOutputEntry is one sequence's output for one step.
type SamplerOutputEntry struct {
	SeqID            int64
	TokenID          int64 // PadTokenID if absent
	TokenIDLogprobRank int
	TokenIDLogprob   float64 // -Inf if absent
	TopKTokenIDs     []int64
	TopKLogprobs     []float64
	PromptLogprobs   []LogprobEntry // nil unless requested
	HasSample        bool
}

// SamplerOutput is one step's worth of per-sequence output records.
type SamplerOutput struct {
	Outputs               []SamplerOutputEntry
	StepIndex              int
	SpecDecodeWorkerMetrics *SpecDecodeMetrics // only ever set on the first record
}

// SpecDecodeMetrics holds periodically produced acceptance-rate statistics.
type SpecDecodeMetrics struct {
	NumAcceptedTokens int64
	NumDraftTokens    int64
	NumEmittedTokens  int64
	DrainedWindowed   bool
}
