package gittables

import (
	"strings"
	"testing"

	"github.com/rcap107/study-gittables/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classicCorpus() types.Counts {
	return types.Counts{"low": 5, "lower": 2, "newest": 6, "widest": 3}
}

func TestTrainMergeOrder(t *testing.T) {
	trainer := NewTrainer()
	vocab, err := trainer.Train(classicCorpus())
	require.NoError(t, err)

	assert.Equal(t, []string{"d", "e", "i", "l", "n", "o", "r", "s", "t", "w"},
		vocab.Alphabet)
	require.GreaterOrEqual(t, len(vocab.Merges), 4)
	// (e,s) and (s,t) tie at 9; the lexicographically smaller pair wins.
	assert.Equal(t, []types.Pair{{Left: "e", Right: "s"}, {Left: "es", Right: "t"}, {Left: "l", Right: "o"},
		{Left: "lo", Right: "w"}}, vocab.Merges[:4])
	for _, merge := range vocab.Merges {
		assert.True(t, vocab.Contains(merge.Merged()))
	}
}

func TestTrainIsDeterministic(t *testing.T) {
	corpus := types.Counts{}
	text := "the quick brown fox jumps over the lazy dog 1234 times, " +
		"then the dog naps; the fox 1234 jumps again"
	counts, err := CountSegments(strings.NewReader(
		strings.Repeat(text+"\n", 3)), false)
	require.NoError(t, err)
	corpus.Merge(counts)

	first, err := NewTrainer().Train(corpus)
	require.NoError(t, err)
	second, err := NewTrainer().Train(corpus)
	require.NoError(t, err)

	firstBytes, err := first.Bytes()
	require.NoError(t, err)
	secondBytes, err := second.Bytes()
	require.NoError(t, err)
	assert.Equal(t, firstBytes, secondBytes)
	assert.Equal(t, first.Merges, second.Merges)
}

func TestTrainStopsAtVocabSize(t *testing.T) {
	trainer := NewTrainer()
	trainer.VocabSize = 12
	vocab, err := trainer.Train(classicCorpus())
	require.NoError(t, err)
	assert.Len(t, vocab.Merges, 2)
	assert.Equal(t, 12, vocab.Size())
}

func TestTrainStopsWhenNoPairRepeats(t *testing.T) {
	vocab, err := NewTrainer().Train(types.Counts{"ab": 1, "cd": 1})
	require.NoError(t, err)
	assert.Empty(t, vocab.Merges)
	assert.Equal(t, 4, vocab.Size())
}

func TestTrainFailures(t *testing.T) {
	_, err := NewTrainer().Train(types.Counts{})
	assert.ErrorIs(t, err, ErrTraining)

	_, err = NewTrainer().Train(types.Counts{"a": 10, "b": 3, " ": 4})
	assert.ErrorIs(t, err, ErrTraining)
}
