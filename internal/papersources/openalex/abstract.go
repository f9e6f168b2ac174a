package openalex

import (
	"sort"
	"strings"
)

// maxAbstractWords bounds the positions accepted from one index.
const maxAbstractWords = 100_000

// ReconstructAbstract rebuilds abstract text from an inverted index. Each word
// is emitted once per listed position, in position order, joined by single
// spaces. A position claimed by more than one word keeps the words in index
// order. Negative positions are dropped. An empty index, or one larger than
// maxAbstractWords positions, yields "".
//
// Gaps in the positions are closed up, so decoding an index derived from the
// output only reproduces the original index when its positions were
// contiguous from zero.
func ReconstructAbstract(idx InvertedIndex) string {
	total := idx.Len()
	if total == 0 || total > maxAbstractWords {
		return ""
	}

	type token struct {
		pos  int
		word string
	}
	tokens := make([]token, 0, total)
	for _, e := range idx {
		for _, p := range e.Positions {
			if p < 0 {
				continue
			}
			tokens = append(tokens, token{pos: p, word: e.Word})
		}
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].pos < tokens[j].pos
	})

	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.word
	}
	return strings.Join(words, " ")
}
