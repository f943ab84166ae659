package gittables

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcap107/study-gittables/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeHelloWorld(t *testing.T) {
	encoder, err := NewEncoder(helloVocab(t), 0)
	require.NoError(t, err)
	tokens, unknown := encoder.EncodeLine("hello world")
	assert.Equal(t, []string{"h", "e", "ll", "o", " ", "w", "o", "r", "l",
		"d"}, tokens)
	assert.Zero(t, unknown)

	// Normalization applies before encoding, and cached segments give the
	// same answer.
	tokens, _ = encoder.EncodeLine("HÉLLO")
	assert.Equal(t, []string{"h", "e", "ll", "o"}, tokens)
	hits, misses := encoder.CacheStats()
	assert.Greater(t, hits, int64(0))
	assert.Greater(t, misses, int64(0))
}

func TestEncodeDropsUnknownCharacters(t *testing.T) {
	encoder, err := NewEncoder(helloVocab(t), 16)
	require.NoError(t, err)
	tokens, unknown := encoder.EncodeLine("hello, world!")
	assert.Equal(t, int64(2), unknown)
	for _, token := range tokens {
		assert.True(t, encoder.Vocab.Contains(token))
	}
}

func TestEncodeAppliesRulesByPriority(t *testing.T) {
	vocab, err := NewVocabulary([]string{"a", "b", "c"},
		[]types.Pair{{Left: "b", Right: "c"}, {Left: "a", Right: "b"}, {Left: "a", Right: "bc"}})
	require.NoError(t, err)
	encoder, err := NewEncoder(vocab, 0)
	require.NoError(t, err)
	// (b,c) outranks (a,b), so "abc" becomes a + bc, then abc.
	tokens, _ := encoder.EncodeLine("abc")
	assert.Equal(t, []string{"abc"}, tokens)
	tokens, _ = encoder.EncodeLine("abab")
	assert.Equal(t, []string{"ab", "ab"}, tokens)
}

func TestEncodeReader(t *testing.T) {
	encoder, err := NewEncoder(helloVocab(t), 0)
	require.NoError(t, err)

	encoding, err := encoder.EncodeReader(strings.NewReader(
		"hello\r\nworld\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"h", "e", "ll", "o", "w", "o", "r", "l", "d"},
		encoding.Tokens)
	assert.Equal(t, types.Counts{"h": 1, "e": 1, "ll": 1, "o": 2, "w": 1,
		"r": 1, "l": 1, "d": 1}, encoding.Counts())

	encoding, err = encoder.EncodeReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, encoding.Tokens)

	_, err = encoder.EncodeReader(strings.NewReader("hello\n\xff\xfe\n"))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = encoder.EncodeReader(strings.NewReader("hel\x00lo"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestEncodeFile(t *testing.T) {
	encoder, err := NewEncoder(helloVocab(t), 0)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "table.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world\n"), 0644))

	encoding, err := encoder.EncodeFile(path)
	require.NoError(t, err)
	assert.Len(t, encoding.Tokens, 10)

	_, err = encoder.EncodeFile(path + ".missing")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestTrainThenEncodeRoundTrip(t *testing.T) {
	text := "year revenue region\n2019 1200 north\n2020 1350 north\n" +
		"2021 1100 south\n2022 1500 south\n"
	segments, err := CountSegments(strings.NewReader(text), false)
	require.NoError(t, err)
	vocab, err := NewTrainer().Train(segments)
	require.NoError(t, err)
	encoder, err := NewEncoder(vocab, 0)
	require.NoError(t, err)

	encoding, err := encoder.EncodeReader(strings.NewReader(text))
	require.NoError(t, err)
	assert.Zero(t, encoding.Unknown)
	// Encoding never loses characters: units concatenate back to the
	// normalized lines.
	assert.Equal(t, strings.ReplaceAll(Normalize(text), "\n", ""),
		strings.Join(encoding.Tokens, ""))
}
