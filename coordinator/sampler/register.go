package sampler

import "github.com/specdecode/coordinator"

func init() {
	coordinator.NewRejectionSamplerFunc = NewRejectionSampler
	coordinator.NewTypicalAcceptanceSamplerFunc = NewTypicalAcceptanceSampler
}
