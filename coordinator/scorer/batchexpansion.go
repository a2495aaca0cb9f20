// Package scorer implements ScorerWorker variants: batch-expansion scoring
// (expands each sequence into one row per candidate continuation and scores
// the expanded batch in one pass) and MQA scoring (scores the unexpanded
// batch in one pass using multi-query attention). Both register their constructors into the coordinator
// package's factory variables from init(), mirroring sim/kv and sim/latency.
package scorer

import (
	"context"
	"math"
	"math/rand"

	"github.com/specdecode/coordinator"
)

// BatchExpansionScorer scores a batch of speculative proposals by
// conceptually expanding each sequence into k+1 candidate continuations and
// scoring them all in one target-model forward pass. Internals of the
// target model are out of scope; this produces a synthetic but internally
// consistent probability tensor shaped [B][k+1][V] so the coordinator's
// verification and output-assembly logic has real tensors to operate on.
//
// Grounded on spec_decode_worker.py's BatchExpansionTop1Scorer.
type BatchExpansionScorer struct {
	vocabSize int64
	rank      int
	rng       *rand.Rand
}

// NewBatchExpansionScorer constructs a BatchExpansionScorer for the given
// vocabulary size.
func NewBatchExpansionScorer(vocabSize int64) coordinator.ScorerWorker {
	return &BatchExpansionScorer{vocabSize: vocabSize, rng: rand.New(rand.NewSource(1))}
}

func (s *BatchExpansionScorer) InitDevice() error { return nil }
func (s *BatchExpansionScorer) LoadModel() error  { return nil }
func (s *BatchExpansionScorer) DetermineNumAvailableBlocks() (gpu, cpu int64, err error) {
	return 4096, 1024, nil
}
func (s *BatchExpansionScorer) CacheBlockSizeBytes() int64 { return 2 }
func (s *BatchExpansionScorer) InitializeCache(gpuBlocks, cpuBlocks int64) error { return nil }
func (s *BatchExpansionScorer) VocabSize() int64                                { return s.vocabSize }
func (s *BatchExpansionScorer) Rank() int                                       { return s.rank }

// ExecuteModel runs the target model's own no-speculation decode/prefill
// path, returning a single SamplerOutput with one entry per sequence.
func (s *BatchExpansionScorer) ExecuteModel(ctx context.Context, req *coordinator.ExecuteModelRequest) ([]coordinator.SamplerOutput, error) {
	entries := make([]coordinator.SamplerOutputEntry, len(req.SeqGroupMetadataList))
	for i, meta := range req.SeqGroupMetadataList {
		tok := int64(0)
		if meta.DoSample {
			tok = s.sampleGreedy(meta.SeqID, 0)
		}
		entries[i] = coordinator.SamplerOutputEntry{SeqID: meta.SeqID, TokenID: tok, HasSample: meta.DoSample}
	}
	return []coordinator.SamplerOutput{{Outputs: entries, StepIndex: 0}}, nil
}

// ExecuteModelWithHidden additionally returns each sequence's terminal
// hidden state, the optional capability StepDriver's no-spec path consults.
func (s *BatchExpansionScorer) ExecuteModelWithHidden(ctx context.Context, req *coordinator.ExecuteModelRequest) ([]coordinator.SamplerOutput, [][]float64, error) {
	outputs, err := s.ExecuteModel(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	hidden := make([][]float64, len(req.SeqGroupMetadataList))
	for i, meta := range req.SeqGroupMetadataList {
		hidden[i] = s.hiddenStateFor(meta.SeqID, 0)
	}
	return outputs, hidden, nil
}

// ScoreProposals scores each sequence's k proposed tokens plus a bonus
// slot in one synthetic forward pass, producing a [B][k+1][V] probability
// tensor and matching token ids (greedy argmax of each row, independent of
// the proposed token, as a real target model's verification pass would be).
func (s *BatchExpansionScorer) ScoreProposals(ctx context.Context, req *coordinator.ExecuteModelRequest, proposals *coordinator.SpeculativeProposals) (*coordinator.SpeculativeScores, error) {
	k := 0
	if len(proposals.ProposalTokenIDs) > 0 {
		k = len(proposals.ProposalTokenIDs[0])
	}
	width := k + 1

	probs := make(coordinator.ProbTensor3D, len(req.SeqGroupMetadataList))
	logprobs := make(coordinator.ProbTensor3D, len(req.SeqGroupMetadataList))
	tokenIDs := make([][]int64, len(req.SeqGroupMetadataList))
	hidden := make([][][]float64, len(req.SeqGroupMetadataList))

	for i, meta := range req.SeqGroupMetadataList {
		mat := make(coordinator.ProbMatrix, width)
		logMat := make(coordinator.ProbMatrix, width)
		ids := make([]int64, width)
		h := make([][]float64, width)
		for step := 0; step < width; step++ {
			dist := s.targetDistribution(meta.SeqID, int64(step))
			mat[step] = dist
			logMat[step] = logOf(dist)
			ids[step] = s.sampleGreedy(meta.SeqID, int64(step))
			h[step] = s.hiddenStateFor(meta.SeqID, int64(step))
		}
		probs[i] = mat
		logprobs[i] = logMat
		tokenIDs[i] = ids
		hidden[i] = h
	}

	return &coordinator.SpeculativeScores{
		Probs:        probs,
		TokenIDs:     tokenIDs,
		Logprobs:     logprobs,
		HiddenStates: hidden,
	}, nil
}

func (s *BatchExpansionScorer) targetDistribution(seqID, step int64) []float64 {
	v := int(s.vocabSize)
	dist := make([]float64, v)
	peak := int((seqID*17 + step*11) % int64(v))
	sum := 0.0
	for i := range dist {
		d := math.Abs(float64(i - peak))
		val := math.Exp(-d / 3.0)
		dist[i] = val
		sum += val
	}
	for i := range dist {
		dist[i] /= sum
	}
	return dist
}

func (s *BatchExpansionScorer) sampleGreedy(seqID, step int64) int64 {
	dist := s.targetDistribution(seqID, step)
	best, bestVal := int64(0), -1.0
	for i, p := range dist {
		if p > bestVal {
			best, bestVal = int64(i), p
		}
	}
	return best
}

func (s *BatchExpansionScorer) hiddenStateFor(seqID, step int64) []float64 {
	const dim = 8
	out := make([]float64, dim)
	r := rand.New(rand.NewSource(seqID*1000 + step))
	for i := range out {
		out[i] = r.NormFloat64()
	}
	return out
}

func logOf(dist []float64) []float64 {
	out := make([]float64, len(dist))
	for i, p := range dist {
		out[i] = math.Log(p)
	}
	return out
}
