package gittables

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/rcap107/study-gittables/types"
)

const VocabularyVersion = "1.0"
const ModelType = "BPE"

var ErrVocabulary = errors.New("invalid vocabulary")

// Vocabulary is the ordered set of subword units plus the ordered merge
// ruleset learned by the Trainer. It is read-only once built and can be shared
// between goroutines.
type Vocabulary struct {
	Alphabet []string
	Merges   []types.Pair
	units    []string
	index    map[string]int
	ranks    map[types.Pair]int
}

// NewVocabulary builds a Vocabulary from its base units and its merge rules in
// priority order. Every unit a rule references must already exist when the
// rule is reached.
func NewVocabulary(alphabet []string, merges []types.Pair) (*Vocabulary,
	error) {
	vocab := &Vocabulary{
		Alphabet: make([]string, 0, len(alphabet)),
		Merges:   make([]types.Pair, 0, len(merges)),
		units:    make([]string, 0, len(alphabet)+len(merges)),
		index:    make(map[string]int, len(alphabet)+len(merges)),
		ranks:    make(map[types.Pair]int, len(merges)),
	}
	for _, unit := range alphabet {
		if utf8.RuneCountInString(unit) != 1 {
			return nil, fmt.Errorf("%w: base unit %q is not a single "+
				"character", ErrVocabulary, unit)
		}
		if _, seen := vocab.index[unit]; seen {
			return nil, fmt.Errorf("%w: duplicate base unit %q",
				ErrVocabulary, unit)
		}
		vocab.Alphabet = append(vocab.Alphabet, unit)
		vocab.addUnit(unit)
	}
	for rank, pair := range merges {
		if _, ok := vocab.index[pair.Left]; !ok {
			return nil, fmt.Errorf("%w: merge %d references unknown unit %q",
				ErrVocabulary, rank, pair.Left)
		}
		if _, ok := vocab.index[pair.Right]; !ok {
			return nil, fmt.Errorf("%w: merge %d references unknown unit %q",
				ErrVocabulary, rank, pair.Right)
		}
		if _, dup := vocab.ranks[pair]; dup {
			return nil, fmt.Errorf("%w: duplicate merge %q %q",
				ErrVocabulary, pair.Left, pair.Right)
		}
		vocab.ranks[pair] = rank
		vocab.Merges = append(vocab.Merges, pair)
		vocab.addUnit(pair.Merged())
	}
	return vocab, nil
}

func (vocab *Vocabulary) addUnit(unit string) {
	if _, ok := vocab.index[unit]; ok {
		// Two rules may spell the same unit, e.g. (ab, c) and (a, bc).
		return
	}
	vocab.index[unit] = len(vocab.units)
	vocab.units = append(vocab.units, unit)
}

// Units returns every unit, base units first, then merged units in rule
// order. The returned slice must not be modified.
func (vocab *Vocabulary) Units() []string {
	return vocab.units
}

func (vocab *Vocabulary) Size() int {
	return len(vocab.units)
}

// Contains reports whether unit belongs to the vocabulary.
func (vocab *Vocabulary) Contains(unit string) bool {
	_, ok := vocab.index[unit]
	return ok
}

// Id returns the position of unit in Units.
func (vocab *Vocabulary) Id(unit string) (int, bool) {
	id, ok := vocab.index[unit]
	return id, ok
}

// Rank returns the priority of a merge rule; lower ranks apply first.
func (vocab *Vocabulary) Rank(pair types.Pair) (int, bool) {
	rank, ok := vocab.ranks[pair]
	return rank, ok
}

type vocabularyModel struct {
	Type     string         `json:"type"`
	Alphabet []string       `json:"alphabet"`
	Vocab    map[string]int `json:"vocab"`
	Merges   [][]string     `json:"merges"`
}

type vocabularyFile struct {
	Version      string          `json:"version"`
	Normalizer   []string        `json:"normalizer"`
	PreTokenizer []string        `json:"pre_tokenizer"`
	Model        vocabularyModel `json:"model"`
}

// MarshalJSON serializes the vocabulary together with the identifiers of the
// normalization and pre-splitting rules it was trained under.
func (vocab *Vocabulary) MarshalJSON() ([]byte, error) {
	merges := make([][]string, len(vocab.Merges))
	for idx, pair := range vocab.Merges {
		merges[idx] = []string{pair.Left, pair.Right}
	}
	return json.Marshal(vocabularyFile{
		Version:      VocabularyVersion,
		Normalizer:   NormalizerRules,
		PreTokenizer: PreSplitRules,
		Model: vocabularyModel{
			Type:     ModelType,
			Alphabet: vocab.Alphabet,
			Vocab:    vocab.index,
			Merges:   merges,
		},
	})
}

func sameRules(got []string, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for idx := range got {
		if got[idx] != want[idx] {
			return false
		}
	}
	return true
}

// ReadVocabulary decodes and validates a vocabulary artifact.
func ReadVocabulary(reader io.Reader) (*Vocabulary, error) {
	var file vocabularyFile
	if err := json.NewDecoder(reader).Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVocabulary, err)
	}
	if file.Model.Type != ModelType {
		return nil, fmt.Errorf("%w: unsupported model type %q",
			ErrVocabulary, file.Model.Type)
	}
	if !sameRules(file.Normalizer, NormalizerRules) {
		return nil, fmt.Errorf("%w: unsupported normalizer %v",
			ErrVocabulary, file.Normalizer)
	}
	if !sameRules(file.PreTokenizer, PreSplitRules) {
		return nil, fmt.Errorf("%w: unsupported pre-tokenizer %v",
			ErrVocabulary, file.PreTokenizer)
	}
	merges := make([]types.Pair, len(file.Model.Merges))
	for idx, merge := range file.Model.Merges {
		if len(merge) != 2 {
			return nil, fmt.Errorf("%w: merge %d has %d units",
				ErrVocabulary, idx, len(merge))
		}
		merges[idx] = types.Pair{Left: merge[0], Right: merge[1]}
	}
	vocab, err := NewVocabulary(file.Model.Alphabet, merges)
	if err != nil {
		return nil, err
	}
	if file.Model.Vocab != nil {
		for unit, id := range file.Model.Vocab {
			if got, ok := vocab.index[unit]; !ok || got != id {
				return nil, fmt.Errorf("%w: unit %q does not match its "+
					"merge table", ErrVocabulary, unit)
			}
		}
		if len(file.Model.Vocab) != vocab.Size() {
			return nil, fmt.Errorf("%w: vocab lists %d units, merges "+
				"produce %d", ErrVocabulary, len(file.Model.Vocab),
				vocab.Size())
		}
	}
	return vocab, nil
}

// LoadVocabulary reads a vocabulary artifact from disk.
func LoadVocabulary(path string) (*Vocabulary, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVocabulary, err)
	}
	defer handle.Close()
	return ReadVocabulary(handle)
}

// Bytes returns the indented JSON artifact.
func (vocab *Vocabulary) Bytes() ([]byte, error) {
	raw, err := vocab.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// SortedAlphabet collects the distinct characters of words in lexicographic
// order.
func SortedAlphabet(words []string) []string {
	seen := make(map[rune]struct{})
	for _, word := range words {
		for _, r := range word {
			seen[r] = struct{}{}
		}
	}
	alphabet := make([]string, 0, len(seen))
	for r := range seen {
		alphabet = append(alphabet, string(r))
	}
	sort.Strings(alphabet)
	return alphabet
}
