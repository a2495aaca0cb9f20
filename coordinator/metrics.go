package coordinator

import (
	"github.com/sirupsen/logrus"
)

// WindowedMetricsCollector is the default MetricsCollector: it accumulates
// accepted/draft/emitted token counts and periodically drains them into a
// SpecDecodeMetrics snapshot, logging a summary at drain time.
//
// Grounded on the teacher's Metrics struct (sim/metrics.go): a plain
// accumulator struct with counters, plus logrus for periodic reporting
// (sim/batch_formation.go's tick-tagged Warnf style).
type WindowedMetricsCollector struct {
	rank int

	acceptedTokens int64
	draftTokens    int64
	emittedTokens  int64
	stepsSinceLast int64

	// WindowSteps is how many RunStep calls accumulate before
	// MaybeCollectRejSampleMetrics returns a non-nil snapshot. 0 means
	// collect on every call.
	WindowSteps int64
}

// NewWindowedMetricsCollector returns a collector that drains every
// windowSteps calls.
func NewWindowedMetricsCollector(windowSteps int64) *WindowedMetricsCollector {
	return &WindowedMetricsCollector{WindowSteps: windowSteps}
}

// InitTensors records which rank this collector belongs to; only the
// driver rank (0) ever calls MaybeCollectRejSampleMetrics in practice.
func (c *WindowedMetricsCollector) InitTensors(rank int) {
	c.rank = rank
}

// MaybeCollectRejSampleMetrics folds k accepted-vs-draft tokens into the
// running window and, once the window has elapsed, returns a drained
// snapshot (nil otherwise).
func (c *WindowedMetricsCollector) MaybeCollectRejSampleMetrics(k int64) *SpecDecodeMetrics {
	c.draftTokens += k
	c.stepsSinceLast++

	if c.WindowSteps > 0 && c.stepsSinceLast < c.WindowSteps {
		return nil
	}
	c.stepsSinceLast = 0

	snapshot := &SpecDecodeMetrics{
		NumAcceptedTokens: c.acceptedTokens,
		NumDraftTokens:    c.draftTokens,
		NumEmittedTokens:  c.emittedTokens,
		DrainedWindowed:   true,
	}
	c.acceptedTokens, c.draftTokens, c.emittedTokens = 0, 0, 0
	logrus.Debugf("[rank %d] spec decode metrics drained: accepted=%d draft=%d emitted=%d",
		c.rank, snapshot.NumAcceptedTokens, snapshot.NumDraftTokens, snapshot.NumEmittedTokens)
	return snapshot
}

// RecordAccepted adds to the accepted/emitted counters for one step's
// verified output. Callers (typically the Verifier's caller) invoke this
// once per RunStep before calling MaybeCollectRejSampleMetrics.
func (c *WindowedMetricsCollector) RecordAccepted(accepted AcceptedTokenIDs) {
	for _, row := range accepted {
		for _, tok := range row {
			if tok != PadTokenID {
				c.acceptedTokens++
				c.emittedTokens++
			}
		}
	}
}
