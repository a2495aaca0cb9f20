package coordinator

import (
	"math"
	"sort"
)

// OutputAssembler converts an acceptance tensor and logprob tensors into a
// list of per-step SamplerOutput records, padded with PadTokenID so every
// decode sequence has the same number of outputs.
type OutputAssembler struct {
	DisableLogprobs bool
	MaxLogprobs     int // num_top_k; width of the dummy top-k columns, only consulted when DisableLogprobs is true
}

// NewOutputAssembler returns an OutputAssembler with the given logprob policy.
func NewOutputAssembler(disableLogprobs bool, maxLogprobs int) *OutputAssembler {
	return &OutputAssembler{DisableLogprobs: disableLogprobs, MaxLogprobs: maxLogprobs}
}

// logprobColumns holds, for one step, the per-sequence rank/logprob of the
// accepted token plus its top-k neighbors.
type logprobColumns struct {
	ranks        []int
	logprobs     []float64
	topKTokenIDs [][]int64
	topKLogprobs [][]float64
}

// Assemble builds the full list of SamplerOutput records for one step of
// speculative decoding. acceptedTokenIDs is [B][k+1]; targetLogprobs is
// [B][k+1][V] (ignored when a.DisableLogprobs is true).
func (a *OutputAssembler) Assemble(
	seqMetaList []*SequenceMetadata,
	acceptedTokenIDs AcceptedTokenIDs,
	targetLogprobs ProbTensor3D,
	promptLogprobs []PromptLogprobRow,
) []SamplerOutput {
	batchSize := len(acceptedTokenIDs)
	numSteps := 0
	if batchSize > 0 {
		numSteps = len(acceptedTokenIDs[0])
	}

	// Transpose accepted_token_ids to iterate by step: [numSteps][B].
	byStep := make([][]int64, numSteps)
	for s := 0; s < numSteps; s++ {
		byStep[s] = make([]int64, batchSize)
		for b := 0; b < batchSize; b++ {
			byStep[s][b] = acceptedTokenIDs[b][s]
		}
	}

	stepCols := make([]logprobColumns, numSteps)
	for s := 0; s < numSteps; s++ {
		if a.DisableLogprobs {
			stepCols[s] = dummyLogprobColumns(batchSize, a.MaxLogprobs)
		} else {
			stepCols[s] = computeLogprobColumns(targetLogprobs, byStep[s], s)
		}
	}

	promptLogprobByIdx := make(map[int]*PromptLogprobRow, len(promptLogprobs))
	for i := range promptLogprobs {
		promptLogprobByIdx[promptLogprobs[i].SeqIndex] = &promptLogprobs[i]
	}

	var outputs []SamplerOutput

	// Prefill outputs: one per prompt sequence, step 0 only. Requests are
	// ordered prefills-then-decodes, so stop at the first non-prompt row.
	for i, sg := range seqMetaList {
		if !sg.IsPrompt {
			break
		}
		entry := SamplerOutputEntry{
			SeqID:              sg.SeqID,
			TokenID:            PadTokenID,
			TokenIDLogprobRank: 0,
			TokenIDLogprob:     math.Inf(-1),
		}
		numLogprobs := sg.SamplingParams.MaxLogprobs
		entry.TopKTokenIDs = padTopK(nil, numLogprobs, PadTokenID)
		entry.TopKLogprobs = padTopKF(nil, numLogprobs, math.Inf(-1))

		if sg.DoSample && len(acceptedTokenIDs) > i {
			entry.HasSample = true
			entry.TokenID = acceptedTokenIDs[i][0]
			entry.TokenIDLogprobRank = stepCols[0].ranks[i]
			entry.TokenIDLogprob = stepCols[0].logprobs[i]
			entry.TopKTokenIDs = truncate(stepCols[0].topKTokenIDs[i], numLogprobs)
			entry.TopKLogprobs = truncateF(stepCols[0].topKLogprobs[i], numLogprobs)
		}

		if row, ok := promptLogprobByIdx[i]; ok && len(row.Entries) > 0 {
			// The first token of a prompt has no preceding context to
			// condition a logprob on, so the scorer's row reserves it as an
			// unconditioned placeholder; skip it here.
			entry.PromptLogprobs = row.Entries[1:]
		}

		outputs = append(outputs, SamplerOutput{Outputs: []SamplerOutputEntry{entry}, StepIndex: 0})
	}

	// Decode outputs, one SamplerOutput per step, stopping at the first
	// all-pad step among decode rows.
	for step := 0; step < numSteps; step++ {
		allPad := true
		for i, sg := range seqMetaList {
			if sg.IsPrompt {
				continue
			}
			if i < len(byStep[step]) && byStep[step][i] != PadTokenID {
				allPad = false
				break
			}
		}
		if allPad {
			break
		}

		var stepEntries []SamplerOutputEntry
		for i, sg := range seqMetaList {
			if sg.IsPrompt {
				continue
			}
			numLogprobs := sg.SamplingParams.MaxLogprobs
			entry := SamplerOutputEntry{
				SeqID:              sg.SeqID,
				TokenID:            byStep[step][i],
				TokenIDLogprobRank: stepCols[step].ranks[i],
				TokenIDLogprob:     stepCols[step].logprobs[i],
				TopKTokenIDs:       truncate(stepCols[step].topKTokenIDs[i], numLogprobs),
				TopKLogprobs:       truncateF(stepCols[step].topKLogprobs[i], numLogprobs),
				HasSample:          byStep[step][i] != PadTokenID,
			}
			stepEntries = append(stepEntries, entry)
		}
		outputs = append(outputs, SamplerOutput{Outputs: stepEntries, StepIndex: step})
	}

	return outputs
}

func truncate(s []int64, n int) []int64 {
	if n < 0 || n > len(s) {
		n = len(s)
	}
	return s[:n]
}

func truncateF(s []float64, n int) []float64 {
	if n < 0 || n > len(s) {
		n = len(s)
	}
	return s[:n]
}

func padTopK(_ []int64, n int, fill int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = fill
	}
	return out
}

func padTopKF(_ []float64, n int, fill float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = fill
	}
	return out
}

func dummyLogprobColumns(batchSize, numTopK int) logprobColumns {
	cols := logprobColumns{
		ranks:        make([]int, batchSize),
		logprobs:     make([]float64, batchSize),
		topKTokenIDs: make([][]int64, batchSize),
		topKLogprobs: make([][]float64, batchSize),
	}
	for b := 0; b < batchSize; b++ {
		cols.ranks[b] = -1
		cols.logprobs[b] = 0.0
		cols.topKTokenIDs[b] = padTopK(nil, numTopK, PadTokenID)
		cols.topKLogprobs[b] = padTopKF(nil, numTopK, 0.0)
	}
	return cols
}

// computeLogprobColumns computes, for a given step, the rank+logprob of the
// accepted token per row plus the top-k neighbors, using the full logprob
// matrix for that step (targetLogprobs[row][step]).
func computeLogprobColumns(targetLogprobs ProbTensor3D, acceptedAtStep []int64, step int) logprobColumns {
	batchSize := len(acceptedAtStep)
	cols := logprobColumns{
		ranks:        make([]int, batchSize),
		logprobs:     make([]float64, batchSize),
		topKTokenIDs: make([][]int64, batchSize),
		topKLogprobs: make([][]float64, batchSize),
	}
	for b := 0; b < batchSize; b++ {
		if b >= len(targetLogprobs) || step >= len(targetLogprobs[b]) {
			cols.ranks[b] = -1
			cols.logprobs[b] = 0.0
			cols.topKTokenIDs[b] = nil
			cols.topKLogprobs[b] = nil
			continue
		}
		row := targetLogprobs[b][step]
		tokenID := acceptedAtStep[b]
		rank, logprob := sampledTokenRankAndLogprob(row, tokenID)
		cols.ranks[b] = rank
		cols.logprobs[b] = logprob
		topIDs, topLogprobs := topK(row, len(row))
		cols.topKTokenIDs[b] = topIDs
		cols.topKLogprobs[b] = topLogprobs
	}
	return cols
}

// sampledTokenRankAndLogprob returns the accepted token's rank (1 = most
// probable) and logprob within row. Pad rows (tokenID == PadTokenID) get
// rank -1 and logprob 0.0, matching the dummy-path convention.
func sampledTokenRankAndLogprob(row []float64, tokenID int64) (int, float64) {
	if tokenID == PadTokenID || tokenID < 0 || int(tokenID) >= len(row) {
		return -1, 0.0
	}
	logprob := row[tokenID]
	rank := 1
	for _, v := range row {
		if v > logprob {
			rank++
		}
	}
	return rank, logprob
}

// topK returns the indices and values of the n largest entries of row, in
// descending order. A single top-k-over-a-vocab-vector pass has no natural
// third-party fit among this module's dependencies, so it is implemented
// directly with the standard library sort package (see DESIGN.md).
func topK(row []float64, n int) ([]int64, []float64) {
	if n > len(row) {
		n = len(row)
	}
	idx := make([]int, len(row))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return row[idx[i]] > row[idx[j]] })
	ids := make([]int64, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		ids[i] = int64(idx[i])
		vals[i] = row[idx[i]]
	}
	return ids, vals
}
