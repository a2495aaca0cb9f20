package proposer

import "github.com/specdecode/coordinator"

func init() {
	coordinator.NewNGramProposerFunc = func(minN, maxN int, vocabSize int64) coordinator.ProposerWorker {
		return NewNGramProposer(minN, maxN, vocabSize)
	}
	coordinator.NewDraftModelProposerFunc = NewDraftModelProposer
}
