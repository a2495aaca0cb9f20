package scorer

import "github.com/specdecode/coordinator"

// MQAScorer scores a batch of speculative proposals in a single
// multi-query-attention forward pass over the unexpanded batch, instead
// of batch-expansion's one-row-per-candidate expansion. It shares
// BatchExpansionScorer's synthetic distribution so the two scorers are
// interchangeable in tests; the distinction that matters to the
// coordinator is which one the Factory selects under the MQA-scorer
// fallback rule (see coordinator.BuildCoordinator), not a difference in
// the scores produced.
//
// Grounded on spec_decode_worker.py's MQAScorer / its disable conditions
// (non-flash-attention backend, draft context shorter than target's,
// non-eager target compilation mode).
type MQAScorer struct {
	*BatchExpansionScorer
}

// NewMQAScorer constructs an MQAScorer for the given vocabulary size.
func NewMQAScorer(vocabSize int64) coordinator.ScorerWorker {
	return &MQAScorer{BatchExpansionScorer: &BatchExpansionScorer{vocabSize: vocabSize}}
}
