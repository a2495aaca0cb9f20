// Package proposer implements ProposerWorker variants: n-gram prompt-lookup
// and draft-model-backed proposers (multi-step, mlp_speculator, medusa,
// eagle, deepseek_mtp). It registers its constructors into the coordinator
// package's factory variables from init(), mirroring how sim/kv and
// sim/latency wire their constructors into package sim without creating an
// import cycle back to coordinator.
package proposer

import (
	"context"

	"github.com/specdecode/coordinator"
)

// NGramProposer proposes tokens by looking up the longest suffix of the
// sequence's PromptTokenIDs that occurred earlier in that same slice, and
// replaying whatever followed it — a draft model that costs no forward
// pass. Grounded on spec_decode_worker.py's ngram proposer branch
// (set_ngram_window_size / NGramWorker).
type NGramProposer struct {
	minN      int
	maxN      int
	vocabSize int64
}

// NewNGramProposer constructs an NGramProposer with the given lookup window.
func NewNGramProposer(minN, maxN int, vocabSize int64) *NGramProposer {
	return &NGramProposer{minN: minN, maxN: maxN, vocabSize: vocabSize}
}

func (p *NGramProposer) InitDevice() error { return nil }
func (p *NGramProposer) LoadModel() error  { return nil }
func (p *NGramProposer) InitializeCache(gpuBlocks, cpuBlocks int64) error {
	return nil // n-gram lookup keeps no KV cache of its own
}
func (p *NGramProposer) CacheBlockSizeBytes() int64 { return 0 }
func (p *NGramProposer) VocabSize() int64           { return p.vocabSize }
func (p *NGramProposer) SetIncludeGPUProbsTensor()  {}
func (p *NGramProposer) SetShouldModifyGreedyProbsInPlace() {}
func (p *NGramProposer) MaybeLoadLMHeadWeight(weight []float64) {}

// AllowsZeroProposals is true: n-gram lookup legitimately finds no match
// for some or all sequences in a batch, and that's not fatal.
func (p *NGramProposer) AllowsZeroProposals() bool { return true }

// ExecuteModel is a no-op: n-gram proposal has no KV cache to keep warm, so
// the proposer-sync sub-steps the coordinator issues for Eagle-style
// proposers are harmless but unnecessary here.
func (p *NGramProposer) ExecuteModel(ctx context.Context, req *coordinator.ExecuteModelRequest) error {
	return nil
}

// GetSpecProposals looks up, for each sequence, the longest matching
// n-gram (between minN and maxN tokens) in its prompt and proposes
// whatever token followed that match each of the k lookahead slots;
// sequences with no match get a zero-length proposal.
func (p *NGramProposer) GetSpecProposals(ctx context.Context, req *coordinator.ExecuteModelRequest, bonusTokens coordinator.BonusTokenSet) (*coordinator.SpeculativeProposals, error) {
	k := req.NumLookaheadSlots
	if k <= 0 {
		return &coordinator.SpeculativeProposals{NoProposals: true}, nil
	}

	tokenIDs := make([][]int64, len(req.SeqGroupMetadataList))
	lens := make([]int64, len(req.SeqGroupMetadataList))
	anyProposal := false

	for i, meta := range req.SeqGroupMetadataList {
		if meta.NumSpeculativeTokens == 0 {
			tokenIDs[i] = fill(int(k), coordinator.InvalidTokenID)
			continue
		}
		match := p.findMatch(meta.PromptTokenIDs)
		if match == nil || int64(len(match)) < k {
			tokenIDs[i] = fill(int(k), coordinator.InvalidTokenID)
			continue
		}
		tokenIDs[i] = match[:k]
		lens[i] = k
		anyProposal = true
	}

	return &coordinator.SpeculativeProposals{
		ProposalTokenIDs: tokenIDs,
		ProposalLens:     lens,
		NoProposals:      !anyProposal,
	}, nil
}

// findMatch searches prompt for the longest suffix of prompt itself of
// length in [minN, maxN] that recurs earlier in prompt, returning the
// tokens that followed the earlier occurrence.
func (p *NGramProposer) findMatch(prompt []int64) []int64 {
	for n := p.maxN; n >= p.minN; n-- {
		if len(prompt) <= n {
			continue
		}
		suffix := prompt[len(prompt)-n:]
		for start := 0; start+n < len(prompt)-n; start++ {
			if sliceEqual(prompt[start:start+n], suffix) {
				return prompt[start+n : len(prompt)-n]
			}
		}
	}
	return nil
}

func sliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fill(n int, v int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
