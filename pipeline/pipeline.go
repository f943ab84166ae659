// Package pipeline wires enumeration, dispatch and aggregation into the runs
// the commands expose: vocabulary training, token tally, table statistics
// and table domains.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rcap107/study-gittables/checkpoint"
	"github.com/rcap107/study-gittables/config"
	"github.com/rcap107/study-gittables/dispatch"
	"github.com/rcap107/study-gittables/resources"
)

// Progress receives per-item notifications of a run.
type Progress interface {
	Start(label string, total int)
	Step(status dispatch.Status)
	Finish()
}

// Summary describes the outcome of a run. Items found in a checkpoint are
// counted as Resumed and were not dispatched again.
type Summary struct {
	RunID    string `json:"run_id"`
	Pipeline string `json:"pipeline"`
	dispatch.Summary
	Resumed       int               `json:"resumed,omitempty"`
	UnknownUnits  int64             `json:"unknown_units"`
	Interrupted   bool              `json:"interrupted"`
	EmptyGroups   []string          `json:"empty_groups,omitempty"`
	SkippedGroups []string          `json:"skipped_groups,omitempty"`
	PartialGroups []string          `json:"partial_groups,omitempty"`
	Artifacts     []string          `json:"artifacts"`
	Failures      map[string]string `json:"failures,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	Elapsed       string            `json:"elapsed"`
}

// Runner carries what every run shares.
type Runner struct {
	Config config.Config
	// Remote, when set, receives a copy of every artifact.
	Remote   resources.Sink
	Progress Progress
}

func NewRunner(cfg config.Config) *Runner {
	return &Runner{Config: cfg}
}

func (runner *Runner) sink(dir string) (resources.Sink, error) {
	local, err := resources.NewLocalSink(dir)
	if err != nil {
		return nil, err
	}
	if runner.Remote == nil {
		return local, nil
	}
	return resources.MultiSink{local, runner.Remote}, nil
}

func (runner *Runner) options(label string, total int) dispatch.Options {
	opts := dispatch.Options{
		Workers:     runner.Config.Workers,
		ItemTimeout: runner.Config.ItemTimeout,
	}
	if runner.Progress != nil {
		runner.Progress.Start(label, total)
		opts.OnResult = func(_ int, status dispatch.Status, _ error) {
			runner.Progress.Step(status)
		}
	}
	return opts
}

func (runner *Runner) finishProgress() {
	if runner.Progress != nil {
		runner.Progress.Finish()
	}
}

func newSummary(pipeline string) *Summary {
	return &Summary{
		RunID:     checkpoint.NewRunID(),
		Pipeline:  pipeline,
		Artifacts: []string{},
		StartedAt: time.Now().UTC(),
	}
}

// record folds dispatch results into the summary and logs failures when
// asked to.
func record[T any](runner *Runner, summary *Summary,
	results []dispatch.Result[T]) {
	summary.Summary.Add(dispatch.Summarize(results))
	for _, failure := range dispatch.Failures(results) {
		if summary.Failures == nil {
			summary.Failures = make(map[string]string)
		}
		summary.Failures[failure.Item.Key()] = failure.Err.Error()
		if runner.Config.LogFailures {
			log.Printf("skipping %s: %v", failure.Item, failure.Err)
		}
	}
}

// put writes one artifact and notes it in the summary.
func put(ctx context.Context, sink resources.Sink, summary *Summary,
	name string, data []byte) error {
	if err := sink.Put(ctx, name, data); err != nil {
		return err
	}
	summary.Artifacts = append(summary.Artifacts, name)
	return nil
}

// summaryName is the artifact name of the summary stored next to name.
func summaryName(name string) string {
	return name + ".summary.json"
}

// previousSummary reads the summary an earlier run stored as
// name.summary.json under sink. A missing file yields nil.
func previousSummary(sink *resources.LocalSink, name string) (*Summary,
	error) {
	data, err := os.ReadFile(sink.Location(summaryName(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	previous := &Summary{}
	if err := json.Unmarshal(data, previous); err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", summaryName(name), err)
	}
	return previous, nil
}

// finish logs the summary and stores it next to the artifacts as
// name.summary.json.
func finish(ctx context.Context, sink resources.Sink, summary *Summary,
	name string) error {
	summary.Elapsed = time.Since(summary.StartedAt).Round(
		time.Millisecond).String()
	sort.Strings(summary.EmptyGroups)
	sort.Strings(summary.SkippedGroups)
	sort.Strings(summary.PartialGroups)
	log.Printf("%s run %s: %s, %s resumed, %s unknown units, elapsed %s",
		summary.Pipeline, summary.RunID, summary.Summary,
		humanize.Comma(int64(summary.Resumed)),
		humanize.Comma(summary.UnknownUnits), summary.Elapsed)
	if summary.Interrupted {
		log.Printf("%s run %s was interrupted; %s items not attempted",
			summary.Pipeline, summary.RunID,
			humanize.Comma(int64(summary.NotAttempted)))
	}
	if len(summary.PartialGroups) > 0 {
		log.Printf("%s run %s left %d groups partial: %v", summary.Pipeline,
			summary.RunID, len(summary.PartialGroups), summary.PartialGroups)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	// Written after the artifacts, so it does not list itself.
	return sink.Put(ctx, summaryName(name), append(data, '\n'))
}
