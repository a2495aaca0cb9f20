package scorer

import "github.com/specdecode/coordinator"

func init() {
	coordinator.NewBatchExpansionScorerFunc = NewBatchExpansionScorer
	coordinator.NewMQAScorerFunc = NewMQAScorer
}
