package sampler

import (
	"math"

	"github.com/specdecode/coordinator"
)

// TypicalAcceptanceSampler implements typical acceptance: a draft token is
// accepted deterministically only if its target probability is at least
// posteriorThreshold AND at least the posteriorAlpha-scaled entropy weight
// of the target distribution.
// Unlike RejectionSampler, it never draws randomness — the same inputs
// always accept the same prefix.
//
// Grounded on spec_decode_worker.py's TypicalAcceptanceSampler.
type TypicalAcceptanceSampler struct {
	posteriorThreshold float64
	posteriorAlpha     float64
}

// NewTypicalAcceptanceSampler constructs a TypicalAcceptanceSampler.
func NewTypicalAcceptanceSampler(posteriorThreshold, posteriorAlpha float64) coordinator.AcceptanceSampler {
	return &TypicalAcceptanceSampler{posteriorThreshold: posteriorThreshold, posteriorAlpha: posteriorAlpha}
}

func (s *TypicalAcceptanceSampler) ProbsDType() string  { return "float64" }
func (s *TypicalAcceptanceSampler) TokenIDDType() string { return "int64" }
func (s *TypicalAcceptanceSampler) IsStochastic() bool   { return false }

// Sample accepts draft tokens greedily while their target probability
// clears max(posteriorThreshold, posteriorAlpha*exp(-entropy(targetRow))),
// and always emits the target's own argmax as the bonus token when the
// whole draft prefix survives.
func (s *TypicalAcceptanceSampler) Sample(args coordinator.AcceptanceSamplerArgs) (coordinator.AcceptedTokenIDs, error) {
	rows := len(args.DraftTokenIDs)
	out := make(coordinator.AcceptedTokenIDs, rows)

	for r := 0; r < rows; r++ {
		k := len(args.DraftTokenIDs[r])
		row := make([]int64, k+1)
		for i := range row {
			row[i] = coordinator.PadTokenID
		}

		accepted := 0
		for step := 0; step < k; step++ {
			draftTok := args.DraftTokenIDs[r][step]
			if draftTok == coordinator.InvalidTokenID {
				break
			}
			targetRow := args.TargetWithBonusProbs[r][step]
			threshold := s.posteriorThreshold
			if entropyThreshold := s.posteriorAlpha * entropyWeight(targetRow); entropyThreshold > threshold {
				threshold = entropyThreshold
			}
			if safeProb(targetRow, draftTok) < threshold {
				break
			}
			row[step] = draftTok
			accepted++
		}

		if accepted == k {
			row[k] = argmax(args.TargetWithBonusProbs[r][k])
		}

		out[r] = row
	}

	return out, nil
}

// entropyWeight approximates exp(-H(p)), a cheap proxy for "how peaked is
// this distribution": it is larger for low-entropy (confident) target
// distributions, so it raises the acceptance threshold for them.
func entropyWeight(dist []float64) float64 {
	h := 0.0
	for _, p := range dist {
		if p <= 0 {
			continue
		}
		h -= p * math.Log2(p)
	}
	return math.Exp(-h)
}

func argmax(dist []float64) int64 {
	best, bestVal := int64(0), -1.0
	for i, p := range dist {
		if p > bestVal {
			best, bestVal = int64(i), p
		}
	}
	return best
}
