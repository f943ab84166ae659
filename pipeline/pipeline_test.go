package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gittables "github.com/rcap107/study-gittables"
	"github.com/rcap107/study-gittables/aggregate"
	"github.com/rcap107/study-gittables/checkpoint"
	"github.com/rcap107/study-gittables/config"
	"github.com/rcap107/study-gittables/corpus"
	"github.com/rcap107/study-gittables/dispatch"
	"github.com/rcap107/study-gittables/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink stands in for a remote artifact store.
type memorySink struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (sink *memorySink) Put(_ context.Context, name string,
	data []byte) error {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.objects == nil {
		sink.objects = make(map[string][]byte)
	}
	sink.objects[name] = append([]byte{}, data...)
	return nil
}

func (sink *memorySink) Location(name string) string {
	return "memory://" + name
}

// countingProgress counts steps and optionally cancels after a number of
// them.
type countingProgress struct {
	started  []string
	steps    int
	finished int
	cancelAt int
	cancel   context.CancelFunc
}

func (progress *countingProgress) Start(label string, total int) {
	progress.started = append(progress.started, label)
}

func (progress *countingProgress) Step(dispatch.Status) {
	progress.steps++
	if progress.cancel != nil && progress.steps == progress.cancelAt {
		progress.cancel()
	}
}

func (progress *countingProgress) Finish() {
	progress.finished++
}

func writeFile(t *testing.T, path string, body string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

// textCorpus lays out three groups: two with text files, one of them
// holding an undecodable file, and an empty one.
func textCorpus(t *testing.T) string {
	root := filepath.Join(t.TempDir(), "txt_tables")
	writeFile(t, filepath.Join(root, "g1", "a.parquet.txt"),
		"low lower newest widest\nlow low newest\n")
	writeFile(t, filepath.Join(root, "g1", "b.parquet.txt"),
		"newest widest widest\nlower lowest\n")
	writeFile(t, filepath.Join(root, "g2", "c.parquet.txt"),
		"low newest 42\n")
	writeFile(t, filepath.Join(root, "g2", "d.parquet.txt"),
		"bad \xff\xfe bytes\n")
	writeFile(t, filepath.Join(root, "g2", "e.parquet.txt"), "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "g3"), 0755))
	return root
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Workers = 2
	cfg.VocabSize = 40
	return cfg
}

func readSummary(t *testing.T, path string) map[string]any {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	summary := make(map[string]any)
	require.NoError(t, json.Unmarshal(data, &summary))
	return summary
}

func trainVocabulary(t *testing.T, root string) (*gittables.Vocabulary,
	string) {
	output := filepath.Join(t.TempDir(), "tokenizer.json")
	vocab, _, err := NewRunner(testConfig()).Train(context.Background(),
		root, output)
	require.NoError(t, err)
	return vocab, output
}

func TestTrain(t *testing.T) {
	root := textCorpus(t)
	output := filepath.Join(t.TempDir(), "out", "tokenizer.json")
	progress := &countingProgress{}
	runner := NewRunner(testConfig())
	runner.Progress = progress

	vocab, summary, err := runner.Train(context.Background(), root, output)
	require.NoError(t, err)
	assert.LessOrEqual(t, vocab.Size(), 40)
	assert.NotEmpty(t, vocab.Merges)
	assert.Equal(t, dispatch.Summary{Total: 5, Attempted: 5, Succeeded: 4,
		Failed: 1}, summary.Summary)
	assert.Contains(t, summary.Failures, "g2/d.parquet")
	assert.Equal(t, []string{"g3"}, summary.EmptyGroups)
	assert.Equal(t, []string{"counting"}, progress.started)
	assert.Equal(t, 5, progress.steps)
	assert.Equal(t, 1, progress.finished)

	loaded, err := gittables.LoadVocabulary(output)
	require.NoError(t, err)
	assert.Equal(t, vocab.Units(), loaded.Units())
	assert.Equal(t, vocab.Merges, loaded.Merges)

	written := readSummary(t, output+".summary.json")
	assert.Equal(t, "train", written["pipeline"])
	assert.Equal(t, float64(1), written["failed"])
}

func TestTrainFailsOnMissingCorpus(t *testing.T) {
	_, _, err := NewRunner(testConfig()).Train(context.Background(),
		filepath.Join(t.TempDir(), "missing"),
		filepath.Join(t.TempDir(), "tokenizer.json"))
	assert.Error(t, err)
}

// emptyCorpus has group folders but no member files.
func emptyCorpus(t *testing.T) string {
	root := filepath.Join(t.TempDir(), "txt_tables")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "g1"), 0755))
	writeFile(t, filepath.Join(root, "g2", "notes.md"), "not a table\n")
	return root
}

func TestTrainFailsOnEmptyCorpus(t *testing.T) {
	cfg := testConfig()
	cfg.MemberPattern = "*.txt"
	output := filepath.Join(t.TempDir(), "tokenizer.json")
	_, _, err := NewRunner(cfg).Train(context.Background(), emptyCorpus(t),
		output)
	assert.ErrorIs(t, err, corpus.ErrEnumeration)
	assert.NoFileExists(t, output)
	assert.NoFileExists(t, output+".summary.json")
}

func TestTrainInterruptedWritesNothing(t *testing.T) {
	root := textCorpus(t)
	output := filepath.Join(t.TempDir(), "tokenizer.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, summary, err := NewRunner(testConfig()).Train(ctx, root, output)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.Interrupted)
	assert.NoFileExists(t, output)
}

// expectedTally encodes the decodable files directly.
func expectedTally(t *testing.T, vocab *gittables.Vocabulary,
	paths ...string) types.Counts {
	encoder, err := gittables.NewEncoder(vocab, 0)
	require.NoError(t, err)
	counts := make(types.Counts)
	for _, path := range paths {
		encoding, err := encoder.EncodeFile(path)
		require.NoError(t, err)
		counts.Merge(encoding.Counts())
	}
	return counts
}

func goodTexts(root string) []string {
	return []string{
		filepath.Join(root, "g1", "a.parquet.txt"),
		filepath.Join(root, "g1", "b.parquet.txt"),
		filepath.Join(root, "g2", "c.parquet.txt"),
		filepath.Join(root, "g2", "e.parquet.txt"),
	}
}

func TestTally(t *testing.T) {
	root := textCorpus(t)
	vocab, vocabPath := trainVocabulary(t, root)
	output := filepath.Join(t.TempDir(), "global_counter.json")
	remote := &memorySink{}
	runner := NewRunner(testConfig())
	runner.Remote = remote

	table, summary, err := runner.Tally(context.Background(), root,
		vocabPath, output)
	require.NoError(t, err)
	assert.Equal(t, dispatch.Summary{Total: 5, Attempted: 5, Succeeded: 4,
		Failed: 1}, summary.Summary)
	assert.False(t, summary.Interrupted)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	written := make(map[string]int64)
	require.NoError(t, json.Unmarshal(data, &written))
	assert.ElementsMatch(t, vocab.Units(), keys(written))

	expected := expectedTally(t, vocab, goodTexts(root)...)
	for unit, count := range written {
		assert.Equal(t, expected[unit], count, "unit %q", unit)
	}
	assert.Equal(t, expected.Total(), table.Total())

	assert.Equal(t, data, remote.objects["global_counter.json"])
	assert.Contains(t, remote.objects, "global_counter.json.summary.json")
}

func TestTallyMissingVocabulary(t *testing.T) {
	root := textCorpus(t)
	_, _, err := NewRunner(testConfig()).Tally(context.Background(), root,
		filepath.Join(t.TempDir(), "missing.json"),
		filepath.Join(t.TempDir(), "out.json"))
	assert.Error(t, err)
}

func TestTallyFailsOnEmptyCorpus(t *testing.T) {
	_, vocabPath := trainVocabulary(t, textCorpus(t))
	cfg := testConfig()
	cfg.MemberPattern = "*.txt"
	output := filepath.Join(t.TempDir(), "global_counter.json")
	_, _, err := NewRunner(cfg).Tally(context.Background(), emptyCorpus(t),
		vocabPath, output)
	assert.ErrorIs(t, err, corpus.ErrEnumeration)
	assert.NoFileExists(t, output)
	assert.NoFileExists(t, output+".summary.json")
}

func TestTallyRecordsFailures(t *testing.T) {
	root := textCorpus(t)
	_, vocabPath := trainVocabulary(t, root)
	output := filepath.Join(t.TempDir(), "global_counter.json")

	_, summary, err := NewRunner(testConfig()).Tally(context.Background(),
		root, vocabPath, output)
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures["g2/d.parquet"],
		gittables.ErrDecode.Error())

	stored := readSummary(t, output+".summary.json")
	failures, ok := stored["failures"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, summary.Failures["g2/d.parquet"],
		failures["g2/d.parquet"])
}

func TestTallyItemSkipsCheckpointAfterDeadline(t *testing.T) {
	root := textCorpus(t)
	vocab, _ := trainVocabulary(t, root)
	encoder, err := gittables.NewEncoder(vocab, 0)
	require.NoError(t, err)
	store, err := checkpoint.Open(context.Background(),
		filepath.Join(t.TempDir(), "checkpoint.db"))
	require.NoError(t, err)
	defer store.Close()

	good := types.Item{GroupID: "g1", MemberID: "a.parquet",
		Path: filepath.Join(root, "g1", "a.parquet.txt")}
	bad := types.Item{GroupID: "g2", MemberID: "d.parquet",
		Path: filepath.Join(root, "g2", "d.parquet.txt")}
	process := tallyItem(encoder, store, "tally:test", checkpoint.NewRunID())

	expired, cancel := context.WithTimeout(context.Background(),
		time.Nanosecond)
	defer cancel()
	<-expired.Done()
	_, err = process(expired, good)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, err = process(expired, bad)
	assert.ErrorIs(t, err, gittables.ErrDecode)

	done, err := checkpoint.Completed[aggregate.Tally](context.Background(),
		store, "tally:test")
	require.NoError(t, err)
	assert.Empty(t, done)
	failures, err := store.Failures(context.Background(), "tally:test")
	require.NoError(t, err)
	assert.Empty(t, failures)

	// A live context checkpoints as usual.
	tally, err := process(context.Background(), good)
	require.NoError(t, err)
	done, err = checkpoint.Completed[aggregate.Tally](context.Background(),
		store, "tally:test")
	require.NoError(t, err)
	assert.Equal(t, tally.Counts, done[good.Key()].Counts)
}

func TestTallyWithCheckpointAndItemTimeout(t *testing.T) {
	root := textCorpus(t)
	_, vocabPath := trainVocabulary(t, root)
	cfg := testConfig()
	cfg.Checkpoint = filepath.Join(t.TempDir(), "checkpoint.db")
	cfg.ItemTimeout = time.Nanosecond
	output := filepath.Join(t.TempDir(), "global_counter.json")

	_, summary, err := NewRunner(cfg).Tally(context.Background(), root,
		vocabPath, output)
	require.NoError(t, err)

	_, fingerprint, err := LoadVocabulary(vocabPath)
	require.NoError(t, err)
	store, err := checkpoint.Open(context.Background(), cfg.Checkpoint)
	require.NoError(t, err)
	defer store.Close()
	done, err := checkpoint.Completed[aggregate.Tally](context.Background(),
		store, "tally:"+fingerprint)
	require.NoError(t, err)
	// Whatever the checkpoint holds, this run reported as succeeded.
	for key := range done {
		_, failed := summary.Failures[key]
		assert.False(t, failed, "%s checkpointed but reported failed", key)
	}
}

func TestTallyResumesFromCheckpoint(t *testing.T) {
	root := textCorpus(t)
	vocab, vocabPath := trainVocabulary(t, root)
	cfg := testConfig()
	cfg.Checkpoint = filepath.Join(t.TempDir(), "checkpoint.db")
	output := filepath.Join(t.TempDir(), "global_counter.json")

	first, summary, err := NewRunner(cfg).Tally(context.Background(), root,
		vocabPath, output)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Resumed)

	// Fix the broken file; only it is encoded again.
	writeFile(t, filepath.Join(root, "g2", "d.parquet.txt"), "lowest\n")
	second, summary, err := NewRunner(cfg).Tally(context.Background(), root,
		vocabPath, output)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Resumed)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)

	expected := expectedTally(t, vocab, append(goodTexts(root),
		filepath.Join(root, "g2", "d.parquet.txt"))...)
	assert.Equal(t, expected.Total(), second.Total())
	assert.Greater(t, second.Total(), first.Total())
}

func TestTallyInterruptedWritesPartialTable(t *testing.T) {
	root := textCorpus(t)
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(root, "g4",
			strings.Repeat("x", i+1)+".txt"), "low lower\n")
	}
	vocab, vocabPath := trainVocabulary(t, root)
	output := filepath.Join(t.TempDir(), "global_counter.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig()
	cfg.Workers = 1
	runner := NewRunner(cfg)
	runner.Progress = &countingProgress{cancelAt: 1, cancel: cancel}

	table, summary, err := runner.Tally(ctx, root, vocabPath, output)
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 25, summary.Total)
	assert.Greater(t, summary.NotAttempted, 0)
	assert.Equal(t, summary.Total, summary.Attempted+summary.NotAttempted)
	assert.Equal(t, vocab.Size(), table.Len())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	written := make(map[string]int64)
	require.NoError(t, json.Unmarshal(data, &written))
	assert.ElementsMatch(t, vocab.Units(), keys(written))

	stored := readSummary(t, output+".summary.json")
	assert.Equal(t, true, stored["interrupted"])
	assert.Equal(t, float64(summary.NotAttempted), stored["not_attempted"])
}

func keys(counts map[string]int64) []string {
	out := make([]string, 0, len(counts))
	for key := range counts {
		out = append(out, key)
	}
	return out
}
