package coordinator

import "fmt"

// ConfigurationError is raised at construction time for combinations the
// coordinator refuses to run: an invalid SpeculativeConfig (see Validate),
// an Eagle draft with tensor-parallel degree > 1, or a proposer/scorer
// vocab size mismatch. Fatal. Pipeline parallelism is not represented in
// SpeculativeConfig, so no pipeline-parallel check is made.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("speculative decoding configuration error: %s", e.Reason)
}

// InvariantViolation is raised when a step's inputs or a collaborator's
// outputs break a documented invariant (more than one sampler output per
// scorer call, a proposal length outside {0, k}, a prompt-only batch with
// num_lookahead_slots != 0). Fatal; the step is aborted.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("speculative decoding invariant violation: %s", e.Reason)
}

// ZeroProposalsError is raised when a distributed-draft proposer produces
// no proposals and the coordinator forbids zero-draft-token steps. Fatal.
type ZeroProposalsError struct{}

func (e *ZeroProposalsError) Error() string {
	return "cannot handle cases where distributed draft workers generate no tokens"
}
