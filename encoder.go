package gittables

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rcap107/study-gittables/types"
)

const BPE_LRU_SZ = 65536

var ErrDecode = errors.New("cannot decode text")

// Encoder applies a learned Vocabulary to text. It holds no per-call state
// besides a concurrency-safe segment cache, so one Encoder serves every worker
// of a run.
type Encoder struct {
	Vocab    *Vocabulary
	Cache    *lru.ARCCache
	Sanitize bool

	lruHits   atomic.Int64
	lruMisses atomic.Int64
}

// Encoding is the result of encoding one text: its units in order, plus the
// number of characters dropped because the vocabulary does not know them.
type Encoding struct {
	Tokens  []string
	Unknown int64
}

// NewEncoder returns an Encoder for vocab, memoizing up to cacheSize
// segment encodings.
func NewEncoder(vocab *Vocabulary, cacheSize int) (*Encoder, error) {
	if vocab == nil {
		return nil, fmt.Errorf("%w: nil vocabulary", ErrVocabulary)
	}
	if cacheSize <= 0 {
		cacheSize = BPE_LRU_SZ
	}
	cache, err := lru.NewARC(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Encoder{Vocab: vocab, Cache: cache}, nil
}

// minPair returns the adjacent pair of word with the lowest merge rank.
func (encoder *Encoder) minPair(word []string) (types.Pair, bool) {
	var best types.Pair
	bestRank := -1
	for idx := 1; idx < len(word); idx++ {
		pair := types.Pair{Left: word[idx-1], Right: word[idx]}
		if rank, ok := encoder.Vocab.Rank(pair); ok &&
			(bestRank < 0 || rank < bestRank) {
			best, bestRank = pair, rank
		}
	}
	return best, bestRank >= 0
}

// ToBPE
// Given a pre-split segment, apply merge rules in priority order until none
// matches, and return the resulting units. The returned slice is shared with
// the cache and must not be modified.
func (encoder *Encoder) ToBPE(segment string) []string {
	if lookup, ok := encoder.Cache.Get(segment); ok {
		encoder.lruHits.Add(1)
		return lookup.([]string)
	}
	encoder.lruMisses.Add(1)
	word := make([]string, 0, len(segment))
	for _, r := range segment {
		word = append(word, string(r))
	}
	for len(word) > 1 {
		bigram, ok := encoder.minPair(word)
		if !ok {
			break
		}
		word = mergeSymbols(word, bigram)
	}
	encoder.Cache.Add(segment, word)
	return word
}

// EncodeLine normalizes, pre-splits and encodes a single line.
func (encoder *Encoder) EncodeLine(line string) (tokens []string,
	unknown int64) {
	tokens = make([]string, 0, len(line))
	for _, segment := range Segments(line, encoder.Sanitize) {
		for _, unit := range encoder.ToBPE(segment) {
			if encoder.Vocab.Contains(unit) {
				tokens = append(tokens, unit)
			} else {
				unknown++
			}
		}
	}
	return tokens, unknown
}

// EncodeReader encodes text line by line. Invalid UTF-8 or binary content is
// an ErrDecode; empty input yields an empty Encoding.
func (encoder *Encoder) EncodeReader(reader io.Reader) (*Encoding, error) {
	encoding := &Encoding{Tokens: make([]string, 0, 4096)}
	err := ReadLines(reader, func(line string) {
		tokens, unknown := encoder.EncodeLine(line)
		encoding.Tokens = append(encoding.Tokens, tokens...)
		encoding.Unknown += unknown
	})
	if err != nil {
		return nil, err
	}
	return encoding, nil
}

// EncodeFile encodes the text file at path.
func (encoder *Encoder) EncodeFile(path string) (*Encoding, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer handle.Close()
	return encoder.EncodeReader(handle)
}

// CacheStats reports segment cache hits and misses so far.
func (encoder *Encoder) CacheStats() (hits int64, misses int64) {
	return encoder.lruHits.Load(), encoder.lruMisses.Load()
}
