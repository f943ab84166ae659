package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/dustin/go-humanize"
	gittables "github.com/rcap107/study-gittables"
	"github.com/rcap107/study-gittables/corpus"
	"github.com/rcap107/study-gittables/dispatch"
	"github.com/rcap107/study-gittables/types"
)

// Train learns a vocabulary from the text corpus under root and writes it to
// output. Unreadable files are skipped. An interrupted run writes nothing,
// since a vocabulary learned from part of the corpus is a different
// vocabulary.
func (runner *Runner) Train(ctx context.Context, root string,
	output string) (*gittables.Vocabulary, *Summary, error) {
	summary := newSummary("train")
	listing, err := corpus.Enumerate(root, corpus.Options{
		MemberPattern: runner.Config.MemberPattern,
		TrimSuffix:    runner.Config.TextSuffix,
	})
	if err != nil {
		return nil, summary, err
	}
	summary.EmptyGroups = listing.EmptyGroups()
	log.Printf("Counting segments in %s files from %d groups",
		humanize.Comma(int64(len(listing.Items))), len(listing.Groups))

	sanitize := runner.Config.Sanitize
	results := dispatch.Run(ctx, listing.Items,
		func(_ context.Context, item types.Item) (types.Counts, error) {
			return gittables.CountSegmentsFile(item.Path, sanitize)
		}, runner.options("counting", len(listing.Items)))
	runner.finishProgress()
	record(runner, summary, results)
	if ctx.Err() != nil {
		summary.Interrupted = true
		return nil, summary, fmt.Errorf("training interrupted after %d of "+
			"%d files: %w", summary.Attempted, summary.Total, ctx.Err())
	}

	segments := make(types.Counts)
	for idx := range results {
		if results[idx].Status == dispatch.Succeeded {
			segments.Merge(results[idx].Record)
		}
	}
	log.Printf("Training on %s distinct segments (%s total)",
		humanize.Comma(int64(len(segments))),
		humanize.Comma(segments.Total()))

	trainer := gittables.NewTrainer()
	trainer.VocabSize = runner.Config.VocabSize
	trainer.MinFrequency = runner.Config.MinFrequency
	trainer.LogEvery = 1000
	vocab, err := trainer.Train(segments)
	if err != nil {
		return nil, summary, err
	}
	log.Printf("Learned %s units from %s merges",
		humanize.Comma(int64(vocab.Size())),
		humanize.Comma(int64(len(vocab.Merges))))

	data, err := vocab.Bytes()
	if err != nil {
		return nil, summary, err
	}
	sink, err := runner.sink(filepath.Dir(output))
	if err != nil {
		return nil, summary, err
	}
	name := filepath.Base(output)
	if err := put(ctx, sink, summary, name, data); err != nil {
		return nil, summary, err
	}
	return vocab, summary, finish(ctx, sink, summary, name)
}
