package coordinator

import "testing"

func TestWindowedMetricsCollector_DrainsOnlyAfterWindowElapses(t *testing.T) {
	c := NewWindowedMetricsCollector(3)
	if snap := c.MaybeCollectRejSampleMetrics(5); snap != nil {
		t.Errorf("expected nil before the window elapses, got %+v", snap)
	}
	if snap := c.MaybeCollectRejSampleMetrics(5); snap != nil {
		t.Errorf("expected nil before the window elapses, got %+v", snap)
	}
	snap := c.MaybeCollectRejSampleMetrics(5)
	if snap == nil {
		t.Fatal("expected a drained snapshot on the third call")
	}
	if snap.NumDraftTokens != 15 {
		t.Errorf("expected accumulated draft tokens of 15, got %d", snap.NumDraftTokens)
	}
}

func TestWindowedMetricsCollector_RecordAcceptedSkipsPadTokens(t *testing.T) {
	c := NewWindowedMetricsCollector(1)
	c.RecordAccepted(AcceptedTokenIDs{{1, 2, PadTokenID}, {PadTokenID}})

	snap := c.MaybeCollectRejSampleMetrics(0)
	if snap == nil {
		t.Fatal("expected a snapshot with WindowSteps=1")
	}
	if snap.NumAcceptedTokens != 2 {
		t.Errorf("expected 2 accepted tokens (pad excluded), got %d", snap.NumAcceptedTokens)
	}
	if snap.NumEmittedTokens != 2 {
		t.Errorf("expected 2 emitted tokens, got %d", snap.NumEmittedTokens)
	}
}

func TestWindowedMetricsCollector_ZeroWindowDrainsEveryCall(t *testing.T) {
	c := NewWindowedMetricsCollector(0)
	if snap := c.MaybeCollectRejSampleMetrics(1); snap == nil {
		t.Error("expected WindowSteps=0 to drain on every call")
	}
}
