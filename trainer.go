package gittables

import (
	"container/heap"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/rcap107/study-gittables/types"
)

const DefaultVocabSize = 30000
const DefaultMinFrequency = 2

var ErrTraining = errors.New("vocabulary training failed")

// Trainer learns a Vocabulary from pre-split segment frequencies by
// repeatedly merging the most frequent adjacent pair of units.
type Trainer struct {
	// VocabSize caps the number of units, base units included.
	VocabSize int
	// MinFrequency is the lowest pair frequency still worth a merge.
	MinFrequency int64
	// LogEvery logs progress every n merges; zero disables it.
	LogEvery int
}

func NewTrainer() *Trainer {
	return &Trainer{
		VocabSize:    DefaultVocabSize,
		MinFrequency: DefaultMinFrequency,
	}
}

type trainingWord struct {
	symbols []string
	count   int64
}

type pairEntry struct {
	pair  types.Pair
	count int64
}

// pairHeap is a max-heap on count. Equal counts fall back to lexicographic
// pair order, which makes the winner of a tie deterministic.
type pairHeap []pairEntry

func (h pairHeap) Len() int { return len(h) }

func (h pairHeap) Less(i, j int) bool {
	if h[i].count != h[j].count {
		return h[i].count > h[j].count
	}
	return h[i].pair.Less(h[j].pair)
}

func (h pairHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pairHeap) Push(x any) { *h = append(*h, x.(pairEntry)) }

func (h *pairHeap) Pop() any {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]
	return last
}

type pairIndex struct {
	words   []trainingWord
	counts  map[types.Pair]int64
	where   map[types.Pair]map[int]struct{}
	changed map[types.Pair]struct{}
	queue   pairHeap
}

func (index *pairIndex) add(wordIdx int, sign int64) {
	word := index.words[wordIdx]
	for idx := 1; idx < len(word.symbols); idx++ {
		pair := types.Pair{Left: word.symbols[idx-1], Right: word.symbols[idx]}
		index.counts[pair] += sign * word.count
		if sign > 0 {
			if index.where[pair] == nil {
				index.where[pair] = make(map[int]struct{})
			}
			index.where[pair][wordIdx] = struct{}{}
		} else {
			delete(index.where[pair], wordIdx)
		}
		if index.counts[pair] <= 0 {
			delete(index.counts, pair)
			delete(index.where, pair)
		}
		index.changed[pair] = struct{}{}
	}
}

func (index *pairIndex) flush() {
	for pair := range index.changed {
		if count, ok := index.counts[pair]; ok {
			heap.Push(&index.queue, pairEntry{pair, count})
		}
	}
	index.changed = make(map[types.Pair]struct{})
}

// best pops the most frequent live pair, discarding stale heap entries.
func (index *pairIndex) best() (pairEntry, bool) {
	for index.queue.Len() > 0 {
		entry := heap.Pop(&index.queue).(pairEntry)
		if index.counts[entry.pair] == entry.count {
			return entry, true
		}
	}
	return pairEntry{}, false
}

func mergeSymbols(symbols []string, pair types.Pair) []string {
	merged := make([]string, 0, len(symbols))
	for idx := 0; idx < len(symbols); {
		if idx < len(symbols)-1 && symbols[idx] == pair.Left &&
			symbols[idx+1] == pair.Right {
			merged = append(merged, pair.Left+pair.Right)
			idx += 2
		} else {
			merged = append(merged, symbols[idx])
			idx++
		}
	}
	return merged
}

// Train learns merge rules from segments, a map of pre-split segment to its
// corpus frequency. Identical input always yields an identical Vocabulary.
func (trainer *Trainer) Train(segments types.Counts) (*Vocabulary, error) {
	keys := segments.Keys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: empty training corpus", ErrTraining)
	}
	index := &pairIndex{
		words:   make([]trainingWord, 0, len(keys)),
		counts:  make(map[types.Pair]int64),
		where:   make(map[types.Pair]map[int]struct{}),
		changed: make(map[types.Pair]struct{}),
	}
	for _, key := range keys {
		if segments[key] <= 0 {
			continue
		}
		symbols := make([]string, 0, len(key))
		for _, r := range key {
			symbols = append(symbols, string(r))
		}
		index.words = append(index.words, trainingWord{symbols,
			segments[key]})
		index.add(len(index.words)-1, 1)
	}
	if len(index.counts) == 0 {
		return nil, fmt.Errorf("%w: corpus contains no unit pairs",
			ErrTraining)
	}
	index.flush()

	alphabet := SortedAlphabet(keys)
	known := make(map[string]struct{}, trainer.VocabSize)
	for _, unit := range alphabet {
		known[unit] = struct{}{}
	}
	merges := make([]types.Pair, 0)
	for len(known) < trainer.VocabSize {
		entry, ok := index.best()
		if !ok || entry.count < trainer.MinFrequency {
			break
		}
		merges = append(merges, entry.pair)
		known[entry.pair.Merged()] = struct{}{}

		affected := make([]int, 0, len(index.where[entry.pair]))
		for wordIdx := range index.where[entry.pair] {
			affected = append(affected, wordIdx)
		}
		sort.Ints(affected)
		for _, wordIdx := range affected {
			index.add(wordIdx, -1)
			index.words[wordIdx].symbols = mergeSymbols(
				index.words[wordIdx].symbols, entry.pair)
			index.add(wordIdx, 1)
		}
		index.flush()

		if trainer.LogEvery > 0 && len(merges)%trainer.LogEvery == 0 {
			log.Printf("Learned %s merges, last %q + %q (freq %s)",
				humanize.Comma(int64(len(merges))), entry.pair.Left,
				entry.pair.Right, humanize.Comma(entry.count))
		}
	}
	return NewVocabulary(alphabet, merges)
}
