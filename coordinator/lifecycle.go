package coordinator

import "fmt"

// LifecycleManager owns device/model/cache initialization ordering for the
// proposer/scorer pair, and the one-time KV-cache block split between them.
//
// Grounded on spec_decode_worker.py's init_device/determine_num_available_blocks/
// initialize_cache, expressed as a small struct with narrow methods in the
// teacher's LifecycleManager-adjacent style (cf. sim/kv_store.go's
// block-budget bookkeeping).
type LifecycleManager struct {
	Proposer ProposerWorker
	Scorer   ScorerWorker
	Metrics  MetricsCollector

	// LMHeadSharing, when true, gathers the target's lm-head weight and
	// hands it to the proposer (the Eagle draft-model case).
	LMHeadSharing bool
}

// NewLifecycleManager wires a LifecycleManager from its collaborators.
func NewLifecycleManager(proposer ProposerWorker, scorer ScorerWorker, metrics MetricsCollector, lmHeadSharing bool) *LifecycleManager {
	return &LifecycleManager{Proposer: proposer, Scorer: scorer, Metrics: metrics, LMHeadSharing: lmHeadSharing}
}

// InitDevice initializes the scorer before the proposer: the draft model
// may run at a smaller tensor-parallel degree and, for lm-head-sharing
// proposers, must see a fully initialized target to gather weights from.
func (l *LifecycleManager) InitDevice(rank int) error {
	if err := l.Scorer.InitDevice(); err != nil {
		return fmt.Errorf("scorer init_device: %w", err)
	}
	if err := l.Proposer.InitDevice(); err != nil {
		return fmt.Errorf("proposer init_device: %w", err)
	}
	if err := l.Scorer.LoadModel(); err != nil {
		return fmt.Errorf("scorer load_model: %w", err)
	}
	if err := l.Proposer.LoadModel(); err != nil {
		return fmt.Errorf("proposer load_model: %w", err)
	}
	if l.LMHeadSharing {
		l.Proposer.MaybeLoadLMHeadWeight(l.gatherLMHeadWeight())
	}
	if l.Metrics != nil {
		l.Metrics.InitTensors(rank)
	}
	return nil
}

// gatherLMHeadWeight stands in for the all-gather of the target's lm-head
// weight across tensor-parallel ranks. A single-process coordinator has no
// other ranks to gather from, so it is a no-op returning nil; a real
// multi-process ScorerWorker implementation would expose the gathered
// weight itself.
func (l *LifecycleManager) gatherLMHeadWeight() []float64 {
	return nil
}

// DetermineNumAvailableBlocks asks the scorer for its independently-computed
// block budget, then splits it between scorer and proposer via
// SplitBlocksEvenly so both caches end up the same length in blocks.
func (l *LifecycleManager) DetermineNumAvailableBlocks() (gpuBlocks, cpuBlocks int64, err error) {
	gpu, cpu, err := l.Scorer.DetermineNumAvailableBlocks()
	if err != nil {
		return 0, 0, fmt.Errorf("scorer determine_num_available_blocks: %w", err)
	}
	split := SplitBlocksEvenly(l.Scorer.CacheBlockSizeBytes(), l.Proposer.CacheBlockSizeBytes(), gpu)
	return split, cpu, nil
}

// InitializeCache forwards the same block counts to both models: they must
// address KV-cache blocks by the same logical positions.
func (l *LifecycleManager) InitializeCache(gpuBlocks, cpuBlocks int64) error {
	if err := l.Scorer.InitializeCache(gpuBlocks, cpuBlocks); err != nil {
		return fmt.Errorf("scorer initialize_cache: %w", err)
	}
	if err := l.Proposer.InitializeCache(gpuBlocks, cpuBlocks); err != nil {
		return fmt.Errorf("proposer initialize_cache: %w", err)
	}
	return nil
}
