package coordinator

// HiddenStateBuffer carries target hidden states from step N to step N+1,
// keyed by sequence id, pruning entries for sequences that are no longer
// active. Some proposers (e.g. Eagle) additionally need the second-to-last
// hidden state, so a parallel optional row is tracked alongside the last.
//
// Grounded on the teacher's KVCacheState bookkeeping style (sim/kvcache.go):
// a plain owned map, mutated in place by small single-purpose methods.
type HiddenStateBuffer struct {
	last         map[int64][]float64
	secondToLast map[int64][]float64
}

// NewHiddenStateBuffer returns an empty buffer.
func NewHiddenStateBuffer() *HiddenStateBuffer {
	return &HiddenStateBuffer{
		last:         make(map[int64][]float64),
		secondToLast: make(map[int64][]float64),
	}
}

// Update adds or overwrites the hidden-state rows for each sequence id in
// metaList, taking hidden[i] as the row for metaList[i]. secondLast may be
// nil if the caller's proposers never need it.
func (b *HiddenStateBuffer) Update(hidden [][]float64, secondLast [][]float64, metaList []*SequenceMetadata) {
	for i, meta := range metaList {
		if i >= len(hidden) {
			break
		}
		b.last[meta.SeqID] = hidden[i]
		if secondLast != nil && i < len(secondLast) {
			b.secondToLast[meta.SeqID] = secondLast[i]
		}
	}
}

// Prune drops entries for sequence ids not present in activeMetaList.
func (b *HiddenStateBuffer) Prune(activeMetaList []*SequenceMetadata) {
	active := make(map[int64]struct{}, len(activeMetaList))
	for _, meta := range activeMetaList {
		active[meta.SeqID] = struct{}{}
	}
	for seqID := range b.last {
		if _, ok := active[seqID]; !ok {
			delete(b.last, seqID)
			delete(b.secondToLast, seqID)
		}
	}
}

// Empty reports whether the buffer holds no entries.
func (b *HiddenStateBuffer) Empty() bool {
	return len(b.last) == 0
}

// Take returns the current buffer contents as a HiddenStates snapshot
// ordered by metaList, and clears the buffer. Sequences with no entry are
// skipped (the returned Rows/Meta are shorter than metaList in that case).
func (b *HiddenStateBuffer) Take(metaList []*SequenceMetadata) *HiddenStates {
	if b.Empty() {
		return nil
	}
	rows := make([][]float64, 0, len(metaList))
	secondRows := make([][]float64, 0, len(metaList))
	meta := make([]*SequenceMetadata, 0, len(metaList))
	haveSecond := false
	for _, m := range metaList {
		row, ok := b.last[m.SeqID]
		if !ok {
			continue
		}
		rows = append(rows, row)
		meta = append(meta, m)
		if second, ok := b.secondToLast[m.SeqID]; ok {
			secondRows = append(secondRows, second)
			haveSecond = true
		} else {
			secondRows = append(secondRows, nil)
		}
	}
	b.last = make(map[int64][]float64)
	b.secondToLast = make(map[int64][]float64)
	out := &HiddenStates{Rows: rows, Meta: meta}
	if haveSecond {
		out.SecondLast = secondRows
	}
	return out
}
