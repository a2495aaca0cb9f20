package coordinator

import "testing"

type recordingScorer struct {
	fakeScorer
	initDeviceCalled, loadModelCalled bool
}

func (s *recordingScorer) InitDevice() error { s.initDeviceCalled = true; return nil }
func (s *recordingScorer) LoadModel() error  { s.loadModelCalled = true; return nil }
func (s *recordingScorer) DetermineNumAvailableBlocks() (int64, int64, error) {
	return 1000, 200, nil
}
func (s *recordingScorer) CacheBlockSizeBytes() int64 { return 4 }

type recordingProposer struct {
	fakeProposer
	initDeviceCalled, loadModelCalled      bool
	lmHeadWeight                           []float64
	initDeviceCalledBeforeScorerLoadModel  bool
	scorer                                 *recordingScorer
	scorerInitializedFirst                 bool
	lmHeadLoadCalled                       bool
}

func (p *recordingProposer) InitDevice() error {
	p.initDeviceCalled = true
	p.scorerInitializedFirst = p.scorer != nil && p.scorer.initDeviceCalled
	return nil
}
func (p *recordingProposer) LoadModel() error  { p.loadModelCalled = true; return nil }
func (p *recordingProposer) CacheBlockSizeBytes() int64 { return 2 }
func (p *recordingProposer) MaybeLoadLMHeadWeight(w []float64) { p.lmHeadWeight = w; p.lmHeadLoadCalled = true }

func TestLifecycleManager_InitDevice_InitializesScorerBeforeProposer(t *testing.T) {
	scorer := &recordingScorer{}
	proposer := &recordingProposer{scorer: scorer}
	lm := NewLifecycleManager(proposer, scorer, nil, false)

	if err := lm.InitDevice(0); err != nil {
		t.Fatalf("InitDevice: %v", err)
	}
	if !scorer.initDeviceCalled || !scorer.loadModelCalled {
		t.Error("expected the scorer to be initialized")
	}
	if !proposer.initDeviceCalled || !proposer.loadModelCalled {
		t.Error("expected the proposer to be initialized")
	}
	if !proposer.scorerInitializedFirst {
		t.Error("expected the scorer's InitDevice to run before the proposer's")
	}
}

func TestLifecycleManager_InitDevice_SharesLMHeadWeightWhenEnabled(t *testing.T) {
	proposer := &recordingProposer{}
	lm := NewLifecycleManager(proposer, &recordingScorer{}, nil, true)

	if err := lm.InitDevice(0); err != nil {
		t.Fatalf("InitDevice: %v", err)
	}
	// gatherLMHeadWeight is a single-process no-op (nil), but
	// MaybeLoadLMHeadWeight must still be invoked.
	if !proposer.lmHeadLoadCalled {
		t.Error("expected MaybeLoadLMHeadWeight to be invoked when lm-head sharing is enabled")
	}
	if proposer.lmHeadWeight != nil {
		t.Error("expected a nil gathered weight in a single-process coordinator")
	}
}

func TestLifecycleManager_DetermineNumAvailableBlocks_SplitsBetweenScorerAndProposer(t *testing.T) {
	scorer := &recordingScorer{}
	proposer := &recordingProposer{}
	lm := NewLifecycleManager(proposer, scorer, nil, false)

	gpu, cpu, err := lm.DetermineNumAvailableBlocks()
	if err != nil {
		t.Fatalf("DetermineNumAvailableBlocks: %v", err)
	}
	if cpu != 200 {
		t.Errorf("expected cpu blocks to pass through unchanged, got %d", cpu)
	}
	if gpu <= 0 || gpu > 1000 {
		t.Errorf("expected a split gpu block budget within [1, 1000], got %d", gpu)
	}
}

func TestLifecycleManager_InitializeCache_ForwardsToBothModels(t *testing.T) {
	scorer := &fakeScorer{}
	proposer := &fakeProposer{allowsZero: true}
	lm := NewLifecycleManager(proposer, scorer, nil, false)

	if err := lm.InitializeCache(100, 20); err != nil {
		t.Fatalf("InitializeCache: %v", err)
	}
}
