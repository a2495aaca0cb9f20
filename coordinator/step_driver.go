package coordinator

import (
	"context"
	"fmt"

	"github.com/specdecode/coordinator/internal/util"
	"github.com/specdecode/coordinator/transport"
)

// hiddenStateExecutor is an optional capability a ScorerWorker may
// implement when its no-speculation execution path also exposes terminal
// hidden states (needed by hidden-state-consuming proposers like Eagle).
// Scorers that never feed such a proposer can skip it; StepDriver falls
// back to leaving the HiddenStateBuffer untouched, matching the teacher's
// preference for narrow optional interfaces over bloating the main one
// (cf. sim's KVStore vs. its optional eviction-notifier extensions).
type hiddenStateExecutor interface {
	ExecuteModelWithHidden(ctx context.Context, req *ExecuteModelRequest) ([]SamplerOutput, [][]float64, error)
}

// StepDriver is the driver-rank (rank 0) per-step state machine. It decides
// whether speculation is active this step, broadcasts that decision to the
// rest of the rank group, and orchestrates the proposer/scorer/verifier
// pipeline.
//
// Grounded on spec_decode_worker.py's execute_model/_run_no_spec/
// _run_speculative_decoding_step, expressed in the teacher's style of a
// struct holding its collaborators with one exported entry-point method
// (cf. VLLMBatchFormation.FormBatch).
type StepDriver struct {
	Proposer  ProposerWorker
	Scorer    ScorerWorker
	Verifier  *Verifier
	Assembler *OutputAssembler
	Hidden    *HiddenStateBuffer
	Bonus     *BonusTokenTracker
	Gens      *generatorRegistry
	Group     *transport.Group
	Metrics   MetricsCollector

	DisableByBatchSize  int64 // running_queue_size >= this disables all speculation; 0 = never
	NumSpecPrefillSteps int   // prefill passes to run on the proposer in the no-spec path; minimum 1
}

// NewStepDriver wires a StepDriver from its collaborators.
func NewStepDriver(proposer ProposerWorker, scorer ScorerWorker, sampler AcceptanceSampler, group *transport.Group, metrics MetricsCollector) *StepDriver {
	return &StepDriver{
		Proposer:            proposer,
		Scorer:              scorer,
		Verifier:            NewVerifier(sampler),
		Assembler:           NewOutputAssembler(false, 5),
		Hidden:              NewHiddenStateBuffer(),
		Bonus:               NewBonusTokenTracker(),
		Gens:                newGeneratorRegistry(),
		Group:               group,
		Metrics:             metrics,
		NumSpecPrefillSteps: 1,
	}
}

// RunStep executes one step of the coordinator on the driver rank.
func (d *StepDriver) RunStep(ctx context.Context, req *ExecuteModelRequest) ([]SamplerOutput, error) {
	d.Bonus.DropFinished(req.FinishedRequestsIDs)

	allPrompt, atLeastOnePrompt, allZeroSpec := batchFlags(req.SeqGroupMetadataList)
	disableAllSpeculation := d.DisableByBatchSize > 0 && req.RunningQueueSize >= d.DisableByBatchSize
	noSpec := req.NumLookaheadSlots == 0 || disableAllSpeculation || allZeroSpec

	if allPrompt && len(req.SeqGroupMetadataList) > 0 && req.NumLookaheadSlots != 0 {
		return nil, &InvariantViolation{Reason: "num_lookahead_slots must be 0 for an all-prompt batch"}
	}

	if disableAllSpeculation {
		for _, meta := range req.SeqGroupMetadataList {
			meta.NumSpeculativeTokens = 0
		}
	}

	ctrl := transport.ControlMessage{
		NumLookaheadSlots:         req.NumLookaheadSlots,
		NoSpec:                    noSpec,
		DisableAllSpeculation:     disableAllSpeculation,
		RunSpecProposerForPrefill: atLeastOnePrompt,
	}
	if d.Group != nil {
		if err := d.Group.Broadcast(ctx, ctrl); err != nil {
			return nil, fmt.Errorf("broadcast control message: %w", err)
		}
	}

	if noSpec {
		return d.runNoSpec(ctx, req, disableAllSpeculation)
	}
	return d.runSpeculativeDecodingStep(ctx, req, atLeastOnePrompt)
}

func batchFlags(metaList []*SequenceMetadata) (allPrompt, atLeastOnePrompt, allZeroSpec bool) {
	allPrompt = true
	allZeroSpec = true
	for _, meta := range metaList {
		if meta.IsPrompt {
			atLeastOnePrompt = true
		} else {
			allPrompt = false
		}
		if meta.NumSpeculativeTokens != 0 {
			allZeroSpec = false
		}
	}
	return
}

func (d *StepDriver) runNoSpec(ctx context.Context, req *ExecuteModelRequest, disableAllSpeculation bool) ([]SamplerOutput, error) {
	var outputs []SamplerOutput
	var hidden [][]float64
	var err error

	if hse, ok := d.Scorer.(hiddenStateExecutor); ok {
		outputs, hidden, err = hse.ExecuteModelWithHidden(ctx, req)
	} else {
		outputs, err = d.Scorer.ExecuteModel(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("scorer execute_model (no-spec): %w", err)
	}

	terminal := terminalPrefillMeta(req.SeqGroupMetadataList)
	var rolled [][]float64
	if hidden != nil {
		rolled = rollShiftOne(hidden)
		d.Hidden.Update(rolled, nil, terminal)
	}

	// The proposer prefill-sync call is unconditional on !disableAllSpeculation
	// (spec.md's skip_proposer rule), independent of whether this scorer
	// happens to expose hidden states: NonDriverLoop.Run issues the matching
	// proposer call the same way, with no hidden-state precondition, and the
	// two ranks must always agree on call count.
	if !disableAllSpeculation {
		prefillReq := req.Clone(terminal)
		prefillReq.PreviousHiddenStates = &HiddenStates{Rows: rolled, Meta: terminal}
		steps := util.Max64(int64(d.NumSpecPrefillSteps), 1)
		for i := int64(0); i < steps; i++ {
			if err := d.Proposer.ExecuteModel(ctx, prefillReq); err != nil {
				return nil, fmt.Errorf("proposer prefill sync: %w", err)
			}
		}
	}

	return outputs, nil
}

// terminalPrefillMeta returns the subset of metaList whose prefill chunk is
// terminal (the last chunk of a prompt, which is where a sampled token and
// therefore a hidden state worth keeping is produced).
func terminalPrefillMeta(metaList []*SequenceMetadata) []*SequenceMetadata {
	out := make([]*SequenceMetadata, 0, len(metaList))
	for _, meta := range metaList {
		if meta.IsPrompt && meta.DoSample {
			out = append(out, meta)
		}
	}
	return out
}

// rollShiftOne circularly shifts rows by one position (row i moves to i+1,
// the last row wraps to position 0), aligning the (n-1)-th hidden state with
// the n-th input token the way the corresponding proposer forward expects.
func rollShiftOne(rows [][]float64) [][]float64 {
	n := len(rows)
	if n == 0 {
		return rows
	}
	out := make([][]float64, n)
	out[0] = rows[n-1]
	for i := 1; i < n; i++ {
		out[i] = rows[i-1]
	}
	return out
}

func (d *StepDriver) runSpeculativeDecodingStep(ctx context.Context, req *ExecuteModelRequest, atLeastOnePrompt bool) ([]SamplerOutput, error) {
	req.PreviousHiddenStates = d.Hidden.Take(req.SeqGroupMetadataList)

	bonus := d.Bonus.Snapshot()
	proposals, err := d.Proposer.GetSpecProposals(ctx, req, bonus)
	if err != nil {
		return nil, fmt.Errorf("proposer get_spec_proposals: %w", err)
	}
	if proposals.NoProposals && !d.Proposer.AllowsZeroProposals() {
		return nil, &ZeroProposalsError{}
	}

	scores, err := d.Scorer.ScoreProposals(ctx, req, proposals)
	if err != nil {
		return nil, fmt.Errorf("scorer score_proposals: %w", err)
	}

	if atLeastOnePrompt {
		nonSpecPrefillIdx := PromptOnlyIndices(req.SeqGroupMetadataList, nonProposingIndices(proposals.ProposalLens))
		if len(nonSpecPrefillIdx) > 0 && scores.HiddenStates != nil {
			subset := make([]*SequenceMetadata, len(nonSpecPrefillIdx))
			hidden := make([][]float64, len(nonSpecPrefillIdx))
			for i, idx := range nonSpecPrefillIdx {
				subset[i] = req.SeqGroupMetadataList[idx]
				if idx < len(scores.HiddenStates) && len(scores.HiddenStates[idx]) > 0 {
					hidden[i] = scores.HiddenStates[idx][len(scores.HiddenStates[idx])-1]
				}
			}
			rolled := rollShiftOne(hidden)
			prefillReq := req.Clone(subset)
			prefillReq.PreviousHiddenStates = &HiddenStates{Rows: rolled, Meta: subset}
			if err := d.Proposer.ExecuteModel(ctx, prefillReq); err != nil {
				return nil, fmt.Errorf("proposer prefill sync (speculative step): %w", err)
			}
		}
	}

	part := PartitionBatch(req.SeqGroupMetadataList, proposals.ProposalLens)
	verifyResult, err := d.Verifier.Verify(req.SeqGroupMetadataList, proposals, scores, part, d.Gens)
	if err != nil {
		return nil, err
	}

	outputs := d.Assembler.Assemble(req.SeqGroupMetadataList, verifyResult.AcceptedTokenIDs, scores.Logprobs, scores.PromptLogprobs)

	if d.Metrics != nil && len(outputs) > 0 {
		if rec, ok := d.Metrics.(interface{ RecordAccepted(AcceptedTokenIDs) }); ok {
			rec.RecordAccepted(verifyResult.AcceptedTokenIDs)
		}
		k := int64(0)
		if len(proposals.ProposalTokenIDs) > 0 {
			k = int64(len(proposals.ProposalTokenIDs[0]))
		}
		outputs[0].SpecDecodeWorkerMetrics = d.Metrics.MaybeCollectRejSampleMetrics(k)
	}

	d.Hidden.Update(verifyResult.HiddenStateRows, nil, req.SeqGroupMetadataList)

	lastStepTokens := make([]int64, len(verifyResult.AcceptedTokenIDs))
	seqIDs := make([]int64, len(req.SeqGroupMetadataList))
	requestSeqIDs := make(map[string]map[int64]struct{})
	for i, meta := range req.SeqGroupMetadataList {
		seqIDs[i] = meta.SeqID
		row := verifyResult.AcceptedTokenIDs[i]
		if len(row) > 0 {
			lastStepTokens[i] = row[len(row)-1]
		} else {
			lastStepTokens[i] = PadTokenID
		}
		if _, ok := requestSeqIDs[meta.RequestID]; !ok {
			requestSeqIDs[meta.RequestID] = make(map[int64]struct{})
		}
		requestSeqIDs[meta.RequestID][meta.SeqID] = struct{}{}
	}
	d.Bonus.Update(seqIDs, lastStepTokens, requestSeqIDs)

	return outputs, nil
}

func nonProposingIndices(proposalLens []int64) []int {
	out := make([]int, 0, len(proposalLens))
	for i, l := range proposalLens {
		if l == 0 {
			out = append(out, i)
		}
	}
	return out
}
