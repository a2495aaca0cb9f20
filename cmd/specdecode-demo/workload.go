package main

import (
	"fmt"

	"github.com/specdecode/coordinator"
	"github.com/specdecode/coordinator/scorer"
)

// buildScorer picks the scorer variant the Factory's MQA-scorer fallback
// rule would select, using the registered constructors so this demo
// exercises the same registration-based wiring the rest of the module uses.
func buildScorer(cfg *coordinator.SpeculativeConfig) (coordinator.ScorerWorker, error) {
	if coordinator.ResolveMQAScorerDisable(cfg) {
		if coordinator.NewBatchExpansionScorerFunc == nil {
			return nil, fmt.Errorf("batch-expansion scorer not registered")
		}
		return coordinator.NewBatchExpansionScorerFunc(cfg.VocabSize), nil
	}
	if coordinator.NewMQAScorerFunc == nil {
		return scorer.NewBatchExpansionScorer(cfg.VocabSize), nil
	}
	return coordinator.NewMQAScorerFunc(cfg.VocabSize), nil
}

// syntheticRequest builds a fixed decode-only batch: every sequence already
// has a prompt in its context and is decoding its next token. This is
// enough to drive the speculative path every step; a fuller demo workload
// generator that also exercises the prefill/no-spec path is a natural
// follow-up, not attempted here.
func syntheticRequest(requestIDs []string, lookaheadSlots int64, step int) *coordinator.ExecuteModelRequest {
	metaList := make([]*coordinator.SequenceMetadata, len(requestIDs))
	for i, reqID := range requestIDs {
		metaList[i] = &coordinator.SequenceMetadata{
			RequestID:            reqID,
			SeqID:                int64(i),
			IsPrompt:             false,
			DoSample:             true,
			NumSpeculativeTokens: lookaheadSlots,
			NumComputedTokens:    int64(step),
			SamplingParams:       coordinator.SamplingParams{MaxLogprobs: 5},
		}
	}
	return &coordinator.ExecuteModelRequest{
		SeqGroupMetadataList: metaList,
		NumLookaheadSlots:    lookaheadSlots,
		RunningQueueSize:     int64(len(requestIDs)),
		SpecStepIdx:          step,
	}
}
