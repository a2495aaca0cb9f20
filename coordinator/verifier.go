package coordinator

import "fmt"

// Verifier runs the acceptance sampler against the partitioned batch and
// reassembles accepted tokens in original batch order, plus the hidden-state
// row each sequence should carry into the next step.
//
// Grounded on spec_decode_worker.py's _verify_tokens: partition by proposal
// length, gather scorer/proposer tensors for the speculative lane, pass
// through the sampler, pad the non-speculative lane with a single
// bonus/greedy column, then invert the partition permutation.
type Verifier struct {
	Sampler AcceptanceSampler
}

// NewVerifier returns a Verifier driven by the given acceptance sampler.
func NewVerifier(sampler AcceptanceSampler) *Verifier {
	return &Verifier{Sampler: sampler}
}

// VerifyResult bundles the reassembled accepted tokens with the hidden-state
// row each sequence should carry forward.
type VerifyResult struct {
	AcceptedTokenIDs  AcceptedTokenIDs // [B][k+1], original batch order
	HiddenStateRows   [][]float64      // [B], the hidden state row corresponding to the last accepted token
}

// Verify runs the sampler over the speculative lane, passes the
// non-speculative lane through unchanged (padded to the same width), and
// restores original batch order.
func (v *Verifier) Verify(
	seqMetaList []*SequenceMetadata,
	proposals *SpeculativeProposals,
	scores *SpeculativeScores,
	part PartitionResult,
	generators *generatorRegistry,
) (*VerifyResult, error) {
	k := 0
	if len(proposals.ProposalTokenIDs) > 0 {
		k = len(proposals.ProposalTokenIDs[0])
	}
	width := k + 1

	specTarget := gatherProbRows(scores.Probs, part.SpecIndices)
	specBonusIDs := gatherTokenColumnAsRows(scores.TokenIDs, part.SpecIndices, k)
	specDraftProbs := gatherProbRows(proposals.ProposalProbs, part.SpecIndices)
	specDraftIDs := gatherTokenRows(proposals.ProposalTokenIDs, part.SpecIndices)

	seeded := make(map[int]*SeededRNG, len(part.SpecIndices))
	for outPos, origIdx := range part.SpecIndices {
		meta := seqMetaList[origIdx]
		if meta.SamplingParams.Seed != nil && generators != nil {
			seeded[outPos] = generators.forRequest(meta.RequestID, *meta.SamplingParams.Seed)
		}
	}

	var specAccepted AcceptedTokenIDs
	if len(part.SpecIndices) > 0 {
		args := AcceptanceSamplerArgs{
			TargetWithBonusProbs: specTarget,
			BonusTokenIDs:        specBonusIDs,
			DraftProbs:           specDraftProbs,
			DraftTokenIDs:        specDraftIDs,
			SeededSeqs:           seeded,
		}
		accepted, err := v.Sampler.Sample(args)
		if err != nil {
			return nil, fmt.Errorf("acceptance sampler: %w", err)
		}
		specAccepted = accepted
	}

	nonSpecAccepted := make(AcceptedTokenIDs, len(part.NonSpecIndices))
	for i, origIdx := range part.NonSpecIndices {
		row := make([]int64, width)
		for j := range row {
			row[j] = PadTokenID
		}
		if origIdx < len(scores.TokenIDs) && len(scores.TokenIDs[origIdx]) > 0 {
			row[0] = scores.TokenIDs[origIdx][0]
		}
		nonSpecAccepted[i] = row
	}

	combined := make(AcceptedTokenIDs, len(part.SpecIndices)+len(part.NonSpecIndices))
	for i, row := range specAccepted {
		combined[i] = row
	}
	for i, row := range nonSpecAccepted {
		combined[len(specAccepted)+i] = row
	}

	out := make(AcceptedTokenIDs, len(seqMetaList))
	for pos, origIdx := range part.OriginalOrder {
		if pos < len(combined) {
			out[origIdx] = combined[pos]
		}
	}

	hiddenRows := make([][]float64, len(seqMetaList))
	for i, row := range out {
		if row == nil {
			continue
		}
		acceptedCount := 0
		for _, tok := range row {
			if tok != PadTokenID {
				acceptedCount++
			}
		}
		hiddenIdx := acceptedCount - 1
		if hiddenIdx < 0 {
			continue
		}
		if i < len(scores.HiddenStates) && hiddenIdx < len(scores.HiddenStates[i]) {
			hiddenRows[i] = scores.HiddenStates[i][hiddenIdx]
		}
	}

	return &VerifyResult{AcceptedTokenIDs: out, HiddenStateRows: hiddenRows}, nil
}

func gatherProbRows(t ProbTensor3D, idx []int) ProbTensor3D {
	out := make(ProbTensor3D, 0, len(idx))
	for _, i := range idx {
		if i < len(t) {
			out = append(out, t[i])
		} else {
			out = append(out, nil)
		}
	}
	return out
}

func gatherTokenRows(t [][]int64, idx []int) [][]int64 {
	out := make([][]int64, 0, len(idx))
	for _, i := range idx {
		if i < len(t) {
			out = append(out, t[i])
		} else {
			out = append(out, nil)
		}
	}
	return out
}

// gatherTokenColumnAsRows extracts column col (the bonus-token slot) from
// each gathered row, yielding one single-element row per index so it can be
// wired directly into AcceptanceSamplerArgs.BonusTokenIDs ([spec][1]).
func gatherTokenColumnAsRows(t [][]int64, idx []int, col int) [][]int64 {
	out := make([][]int64, len(idx))
	for n, i := range idx {
		tok := PadTokenID
		if i < len(t) && col < len(t[i]) {
			tok = t[i][col]
		}
		out[n] = []int64{tok}
	}
	return out
}
