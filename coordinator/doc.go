// Package coordinator implements the coordinator for speculative decoding
// inside an LLM inference engine: the component that decides per step
// whether speculation is active, drives the proposer/scorer pair in the
// correct order across a tensor-parallel group, and assembles per-step
// sampler outputs from the acceptance sampler's verdicts.
//
// # Reading Guide
//
// Start with these files to understand the coordinator:
//   - types.go: the data model (SequenceMetadata, ExecuteModelRequest,
//     SpeculativeProposals, SpeculativeScores, sentinels)
//   - step_driver.go: the per-step state machine on the driver rank
//   - non_driver_loop.go: the mirrored loop on peer ranks
//   - verifier.go: acceptance sampling + row reordering + hidden-state bookkeeping
//   - output_assembler.go: turns verified tokens into padded per-step outputs
//
// # Architecture
//
// The coordinator package owns interfaces and cross-step state; concrete
// proposer/scorer/sampler implementations live in sibling packages:
//   - coordinator/proposer/: n-gram and draft-model proposers
//   - coordinator/scorer/: batch-expansion and MQA scorers
//   - coordinator/sampler/: rejection and typical-acceptance samplers
//   - coordinator/transport/: in-process rank broadcast
//
// Sibling packages register their constructors into this package's
// factory variables via init(), mirroring how the teacher codebase wires
// sim/kv and sim/latency into sim's NewKVStoreFromConfig and
// NewLatencyModelFunc.
//
// # Key Interfaces
//
// The extension points are the collaborator contracts consumed by the
// coordinator (see §6 of the spec this module implements):
//   - ProposerWorker: produces speculative token proposals
//   - ScorerWorker: scores proposals with the target model
//   - AcceptanceSampler: decides which proposed tokens are accepted
//   - MetricsCollector: periodic rejection-sampling statistics
package coordinator
