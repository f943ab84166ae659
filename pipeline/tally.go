package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"path/filepath"

	"github.com/dustin/go-humanize"
	gittables "github.com/rcap107/study-gittables"
	"github.com/rcap107/study-gittables/aggregate"
	"github.com/rcap107/study-gittables/checkpoint"
	"github.com/rcap107/study-gittables/corpus"
	"github.com/rcap107/study-gittables/dispatch"
	"github.com/rcap107/study-gittables/resources"
	"github.com/rcap107/study-gittables/types"
)

// LoadVocabulary reads a vocabulary artifact from a path or an http(s) URL
// and returns it with a fingerprint of its bytes.
func LoadVocabulary(location string) (*gittables.Vocabulary, string, error) {
	data, err := resources.Fetch(location)
	if err != nil {
		return nil, "", err
	}
	vocab, err := gittables.ReadVocabulary(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	digest := sha256.Sum256(data)
	return vocab, hex.EncodeToString(digest[:8]), nil
}

// tallyItem encodes one text file and, with a store, checkpoints the
// outcome. Nothing is checkpointed once the item's context has expired: the
// dispatcher has already reported such an item as timed out, and a stored
// success would be merged by a later resume.
func tallyItem(encoder *gittables.Encoder, store *checkpoint.Store,
	key string, runID string) dispatch.Processor[aggregate.Tally] {
	return func(itemCtx context.Context, item types.Item) (aggregate.Tally,
		error) {
		encoding, err := encoder.EncodeFile(item.Path)
		if err != nil {
			if store != nil && itemCtx.Err() == nil {
				if saveErr := store.Fail(itemCtx, key, runID, item,
					err); saveErr != nil {
					log.Printf("%v", saveErr)
				}
			}
			return aggregate.Tally{}, err
		}
		tally := aggregate.Tally{Counts: encoding.Counts(),
			Unknown: encoding.Unknown}
		if store == nil {
			return tally, nil
		}
		if err := itemCtx.Err(); err != nil {
			return aggregate.Tally{}, err
		}
		if err := store.Succeed(itemCtx, key, runID, item,
			tally); err != nil {
			return aggregate.Tally{}, err
		}
		return tally, nil
	}
}

// Tally encodes every text file under root with the vocabulary at
// vocabLocation and writes the corpus-wide frequency table to output.
//
// The table is written even when the run is interrupted, covering the items
// that succeeded before it stopped. With a checkpoint configured, items that
// succeeded in an earlier run against the same vocabulary are not encoded
// again; their stored counts are merged in.
func (runner *Runner) Tally(ctx context.Context, root string,
	vocabLocation string, output string) (*aggregate.FrequencyTable, *Summary,
	error) {
	summary := newSummary("tally")
	vocab, fingerprint, err := LoadVocabulary(vocabLocation)
	if err != nil {
		return nil, summary, err
	}
	encoder, err := gittables.NewEncoder(vocab, runner.Config.CacheSize)
	if err != nil {
		return nil, summary, err
	}
	encoder.Sanitize = runner.Config.Sanitize

	listing, err := corpus.Enumerate(root, corpus.Options{
		MemberPattern: runner.Config.MemberPattern,
		TrimSuffix:    runner.Config.TextSuffix,
	})
	if err != nil {
		return nil, summary, err
	}
	summary.EmptyGroups = listing.EmptyGroups()

	table := aggregate.NewFrequencyTable(vocab.Units())
	items := listing.Items
	var store *checkpoint.Store
	key := "tally:" + fingerprint
	if runner.Config.Checkpoint != "" {
		store, err = checkpoint.Open(ctx, runner.Config.Checkpoint)
		if err != nil {
			return nil, summary, err
		}
		defer store.Close()
		if err := store.StartRun(ctx, summary.RunID, key); err != nil {
			return nil, summary, err
		}
		done, err := checkpoint.Completed[aggregate.Tally](ctx, store, key)
		if err != nil {
			return nil, summary, err
		}
		items = make([]types.Item, 0, len(listing.Items))
		for _, item := range listing.Items {
			if tally, ok := done[item.Key()]; ok {
				summary.UnknownUnits += table.AddTally(tally)
				summary.Resumed++
				continue
			}
			items = append(items, item)
		}
		if summary.Resumed > 0 {
			log.Printf("Resuming: %s of %s files already tallied",
				humanize.Comma(int64(summary.Resumed)),
				humanize.Comma(int64(len(listing.Items))))
		}
	}
	summary.Total += summary.Resumed

	results := dispatch.Run(ctx, items,
		tallyItem(encoder, store, key, summary.RunID),
		runner.options("tallying", len(items)))
	runner.finishProgress()
	record(runner, summary, results)
	summary.Interrupted = ctx.Err() != nil

	partial, unknown := aggregate.Frequencies(vocab.Units(), results)
	summary.UnknownUnits += unknown
	if err := table.Merge(partial); err != nil {
		return nil, summary, err
	}
	hits, misses := encoder.CacheStats()
	log.Printf("Tallied %s tokens; segment cache %s hits, %s misses",
		humanize.Comma(table.Total()), humanize.Comma(hits),
		humanize.Comma(misses))

	// Artifacts are written even after an interrupt.
	writeCtx := context.WithoutCancel(ctx)
	data, err := table.MarshalJSON()
	if err != nil {
		return nil, summary, err
	}
	sink, err := runner.sink(filepath.Dir(output))
	if err != nil {
		return nil, summary, err
	}
	name := filepath.Base(output)
	if err := put(writeCtx, sink, summary, name, data); err != nil {
		return nil, summary, err
	}
	if err := finish(writeCtx, sink, summary, name); err != nil {
		return table, summary, err
	}
	if store != nil {
		if err := store.FinishRun(writeCtx, summary.RunID,
			summary); err != nil {
			return table, summary, err
		}
	}
	return table, summary, nil
}
