// Package sampler implements AcceptanceSampler variants: modified rejection
// sampling (stochastic, matches the draft and target distributions exactly
// in expectation) and typical acceptance sampling (deterministic, accepts
// draft tokens whose target probability clears a posterior threshold).
// Both register their constructors into the coordinator package's factory
// variables from init(), mirroring sim/kv and sim/latency.
package sampler

import (
	"math/rand"

	"github.com/specdecode/coordinator"
	"gonum.org/v1/gonum/stat/distuv"
)

// RejectionSampler implements speculative-sampling rejection acceptance:
// for each draft token, accept with probability min(1, p_target/p_draft);
// on first rejection, replace it with one draw from the residual
// distribution max(0, p_target - p_draft) (renormalized), and pad the rest
// of the row. If every draft token survives, emit a bonus token sampled
// from the target's own distribution at the bonus column.
//
// Grounded on spec_decode_worker.py's call into RejectionSampler.forward;
// the residual/bonus categorical draws use gonum's distuv.Categorical, the
// natural third-party fit for sampling from an arbitrary discrete
// distribution (grounded as a direct dependency already carried for this
// domain; see DESIGN.md).
type RejectionSampler struct {
	rng *rand.Rand
}

// NewRejectionSampler constructs a RejectionSampler.
func NewRejectionSampler() coordinator.AcceptanceSampler {
	return &RejectionSampler{rng: rand.New(rand.NewSource(7))}
}

func (s *RejectionSampler) ProbsDType() string  { return "float64" }
func (s *RejectionSampler) TokenIDDType() string { return "int64" }
func (s *RejectionSampler) IsStochastic() bool   { return true }

// Sample runs rejection sampling row by row. args.DraftTokenIDs/DraftProbs
// are [rows][k]/[rows][k][V]; args.TargetWithBonusProbs is
// [rows][k+1][V]; the output is [rows][k+1], PadTokenID-filled past the
// first rejection (or past the bonus token if all k were accepted).
func (s *RejectionSampler) Sample(args coordinator.AcceptanceSamplerArgs) (coordinator.AcceptedTokenIDs, error) {
	rows := len(args.DraftTokenIDs)
	out := make(coordinator.AcceptedTokenIDs, rows)

	for r := 0; r < rows; r++ {
		k := len(args.DraftTokenIDs[r])
		row := make([]int64, k+1)
		for i := range row {
			row[i] = coordinator.PadTokenID
		}

		rng := s.rng
		if seeded, ok := args.SeededSeqs[r]; ok {
			rng = seeded.Source()
		}

		accepted := 0
		for step := 0; step < k; step++ {
			draftTok := args.DraftTokenIDs[r][step]
			if draftTok == coordinator.InvalidTokenID {
				break
			}
			pDraft := safeProb(args.DraftProbs[r][step], draftTok)
			pTarget := safeProb(args.TargetWithBonusProbs[r][step], draftTok)

			acceptProb := 1.0
			if pDraft > 0 {
				acceptProb = pTarget / pDraft
				if acceptProb > 1.0 {
					acceptProb = 1.0
				}
			}

			if rng.Float64() < acceptProb {
				row[step] = draftTok
				accepted++
				continue
			}

			residual := residualDistribution(args.TargetWithBonusProbs[r][step], args.DraftProbs[r][step])
			row[step] = sampleFromDistribution(rng, residual)
			break
		}

		if accepted == k {
			bonusDist := args.TargetWithBonusProbs[r][k]
			row[k] = sampleFromDistribution(rng, bonusDist)
		}

		out[r] = row
	}

	return out, nil
}

func safeProb(dist []float64, tok int64) float64 {
	if tok < 0 || int(tok) >= len(dist) {
		return 0
	}
	return dist[tok]
}

func residualDistribution(target, draft []float64) []float64 {
	out := make([]float64, len(target))
	sum := 0.0
	for i := range out {
		d := target[i] - draft[i]
		if d < 0 {
			d = 0
		}
		out[i] = d
		sum += d
	}
	if sum == 0 {
		// Degenerate case: draft already dominates target everywhere.
		// Fall back to the target distribution itself.
		copy(out, target)
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// sampleFromDistribution draws one categorical sample using gonum's
// distuv.Categorical, seeded from rng so the draw is reproducible under a
// per-request SeededRNG.
func sampleFromDistribution(rng *rand.Rand, dist []float64) int64 {
	cat := distuv.NewCategorical(dist, rng)
	return int64(cat.Rand())
}
