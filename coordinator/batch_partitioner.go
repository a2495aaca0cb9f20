package coordinator

// PartitionResult holds the outcome of splitting a batch by proposal length.
type PartitionResult struct {
	SpecIndices    []int // proposal_len > 0, original order preserved
	NonSpecIndices []int // proposal_len == 0, original order preserved
	// OriginalOrder is SpecIndices followed by NonSpecIndices; used as the
	// permutation that restores input batch order after verification.
	OriginalOrder []int
}

// PartitionBatch splits seqMetaList into speculative and non-speculative
// lanes in one pass, based on proposalLens (index-aligned with
// seqMetaList). Does not mutate seqMetaList.
func PartitionBatch(seqMetaList []*SequenceMetadata, proposalLens []int64) PartitionResult {
	spec := make([]int, 0, len(seqMetaList))
	nonSpec := make([]int, 0, len(seqMetaList))
	for i := range seqMetaList {
		if i < len(proposalLens) && proposalLens[i] > 0 {
			spec = append(spec, i)
		} else {
			nonSpec = append(nonSpec, i)
		}
	}
	original := make([]int, 0, len(spec)+len(nonSpec))
	original = append(original, spec...)
	original = append(original, nonSpec...)
	return PartitionResult{SpecIndices: spec, NonSpecIndices: nonSpec, OriginalOrder: original}
}

// PromptOnlyIndices filters idx down to the subset whose metadata says
// IsPrompt, preserving order. Used before the proposer-sync-for-prefill
// sub-step: with chunked prefill enabled, non_spec_indices may include
// decodes that the proposer has already processed, which must be excluded.
func PromptOnlyIndices(seqMetaList []*SequenceMetadata, idx []int) []int {
	out := make([]int, 0, len(idx))
	for _, i := range idx {
		if i < len(seqMetaList) && seqMetaList[i].IsPrompt {
			out = append(out, i)
		}
	}
	return out
}
