package coordinator

import (
	"fmt"

	"github.com/specdecode/coordinator/transport"
)

// Built bundles everything a caller needs to run the coordinator: the
// driver-rank state machine plus one NonDriverLoop per peer rank, already
// wired to a shared rank Group.
type Built struct {
	Driver *StepDriver
	Peers  []*NonDriverLoop
	Group  *transport.Group
}

// BuildCoordinator applies the Factory selection rules to cfg and wires a
// complete Built from the registered proposer/sampler constructors and the
// given scorer.
//
// Grounded on spec_decode_worker.py's create_worker/SpecDecodeWorker.create_worker
// selection logic; expressed in Go as one function performing the same
// cascade of type switches the teacher's NewScheduler-style factories use.
func BuildCoordinator(cfg *SpeculativeConfig, scorer ScorerWorker, metrics MetricsCollector, peerCount int) (*Built, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	proposer, err := selectProposer(cfg)
	if err != nil {
		return nil, err
	}
	if proposer.VocabSize() != scorer.VocabSize() {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("proposer vocab size %d does not match scorer vocab size %d", proposer.VocabSize(), scorer.VocabSize())}
	}

	sampler, err := selectAcceptanceSampler(cfg)
	if err != nil {
		return nil, err
	}

	group := transport.NewGroup(peerCount)

	driver := NewStepDriver(proposer, scorer, sampler, group, metrics)
	driver.DisableByBatchSize = cfg.DisableByBatchSize
	driver.Assembler = NewOutputAssembler(cfg.DisableLogprobs, cfg.MaxLogprobs)
	if cfg.DraftModelType == "deepseek_mtp" {
		driver.NumSpecPrefillSteps = cfg.DeepseekMTPNumPredict
	}

	peers := make([]*NonDriverLoop, peerCount)
	for i := range peers {
		peers[i] = NewNonDriverLoop(proposer, scorer, group, i)
	}

	return &Built{Driver: driver, Peers: peers, Group: group}, nil
}

// selectProposer implements the draft-model selection cascade: n-gram first
// if prompt-lookup is enabled, otherwise a draft-model variant dispatched by
// DraftModelType, with eagle forbidding tensor-parallel degree > 1 (checked
// earlier in Validate) and deepseek_mtp needing its prefill-step count.
func selectProposer(cfg *SpeculativeConfig) (ProposerWorker, error) {
	if cfg.NgramPromptLookupMax > 0 {
		if NewNGramProposerFunc == nil {
			return nil, &ConfigurationError{Reason: "no n-gram proposer constructor registered"}
		}
		return NewNGramProposerFunc(cfg.NgramPromptLookupMin, cfg.NgramPromptLookupMax, cfg.VocabSize), nil
	}
	if NewDraftModelProposerFunc == nil {
		return nil, &ConfigurationError{Reason: "no draft-model proposer constructor registered"}
	}
	proposer, err := NewDraftModelProposerFunc(cfg.DraftModelType, cfg.DraftTensorParallelSize, cfg.DeepseekMTPNumPredict, cfg.VocabSize)
	if err != nil {
		return nil, fmt.Errorf("constructing %s proposer: %w", cfg.DraftModelType, err)
	}
	return proposer, nil
}

// ResolveMQAScorerDisable implements the MQA-scoring fallback rule: fall
// back to batch-expansion scoring if the attention backend is not
// flash-attention, the draft's context window is smaller than the target's,
// or the target runs in a graph-compiled (non-eager) mode. Exported so
// callers that select their own ScorerWorker before calling BuildCoordinator
// (e.g. cmd/specdecode-demo) apply the identical rule rather than
// re-deriving it by hand.
func ResolveMQAScorerDisable(cfg *SpeculativeConfig) bool {
	if cfg.DisableMQAScorer {
		return true
	}
	if !cfg.AttentionBackendIsFlash {
		return true
	}
	if cfg.DraftMaxModelLen > 0 && cfg.TargetMaxModelLen > 0 && cfg.DraftMaxModelLen < cfg.TargetMaxModelLen {
		return true
	}
	if !cfg.TargetIsEagerMode {
		return true
	}
	return false
}

func selectAcceptanceSampler(cfg *SpeculativeConfig) (AcceptanceSampler, error) {
	switch cfg.AcceptanceMethod {
	case "rejection":
		if NewRejectionSamplerFunc == nil {
			return nil, &ConfigurationError{Reason: "no rejection sampler constructor registered"}
		}
		return NewRejectionSamplerFunc(), nil
	case "typical_acceptance":
		if NewTypicalAcceptanceSamplerFunc == nil {
			return nil, &ConfigurationError{Reason: "no typical acceptance sampler constructor registered"}
		}
		return NewTypicalAcceptanceSamplerFunc(cfg.PosteriorThreshold, cfg.PosteriorAlpha), nil
	default:
		return nil, &ConfigurationError{Reason: "unknown acceptance_method " + quote(cfg.AcceptanceMethod)}
	}
}
