package pipeline

import (
	"context"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/rcap107/study-gittables/aggregate"
	"github.com/rcap107/study-gittables/corpus"
	"github.com/rcap107/study-gittables/dispatch"
	"github.com/rcap107/study-gittables/resources"
	"github.com/rcap107/study-gittables/tables"
	"github.com/rcap107/study-gittables/types"
)

// groupRun describes one flavor of per-group table profiling.
type groupRun[R any] struct {
	pipeline string
	process  dispatch.Processor[R]
	artifact func(group string) string
	encode   func(*aggregate.GroupTable[R]) ([]byte, error)
}

// Statistics profiles every table under root and writes one statistics
// table per group into outputDir.
func (runner *Runner) Statistics(ctx context.Context, root string,
	outputDir string) (*Summary, error) {
	return profileGroups(ctx, runner, root, outputDir, groupRun[tables.Record]{
		pipeline: "statistics",
		process:  tables.Profile,
		artifact: aggregate.StatisticsArtifact,
		encode:   aggregate.EncodeStatistics,
	})
}

// Domains collects the domain annotations of every table under root and
// writes one domain table per group into outputDir. Tables without
// annotations are failures.
func (runner *Runner) Domains(ctx context.Context, root string,
	outputDir string) (*Summary, error) {
	return profileGroups(ctx, runner, root, outputDir,
		groupRun[tables.DomainRecord]{
			pipeline: "domains",
			process:  tables.ProfileDomain,
			artifact: aggregate.DomainArtifact,
			encode:   aggregate.EncodeDomains,
		})
}

// profileGroups runs one group flavor. Groups with no members get no
// artifact. On interrupt, every group with at least one attempted member is
// written from what it has, and groups with unattempted members are listed
// as partial in the summary. With skip_existing, a later run skips groups
// whose artifact exists unless the previous summary lists them as partial.
func profileGroups[R any](ctx context.Context, runner *Runner, root string,
	outputDir string, flavor groupRun[R]) (*Summary, error) {
	summary := newSummary(flavor.pipeline)
	listing, err := corpus.Enumerate(root, corpus.Options{
		MemberPattern: runner.Config.MemberPattern,
	})
	if err != nil {
		return summary, err
	}
	local, err := resources.NewLocalSink(outputDir)
	if err != nil {
		return summary, err
	}
	sink, err := runner.sink(outputDir)
	if err != nil {
		return summary, err
	}

	partialBefore := make(map[string]bool)
	if runner.Config.SkipExisting {
		previous, err := previousSummary(local, flavor.pipeline)
		if err != nil {
			return summary, err
		}
		if previous != nil {
			for _, group := range previous.PartialGroups {
				partialBefore[group] = true
			}
		}
	}

	summary.EmptyGroups = listing.EmptyGroups()
	for _, group := range summary.EmptyGroups {
		log.Printf("Folder %s is empty, skipping.", group)
	}
	members := listing.ByGroup()
	groups := make([]string, 0, len(listing.Groups))
	items := make([]types.Item, 0, len(listing.Items))
	for _, group := range listing.Groups {
		if len(members[group]) == 0 {
			continue
		}
		if runner.Config.SkipExisting && !partialBefore[group] &&
			local.Exists(flavor.artifact(group)) {
			summary.SkippedGroups = append(summary.SkippedGroups, group)
			continue
		}
		groups = append(groups, group)
		items = append(items, members[group]...)
	}
	log.Printf("Profiling %s tables in %d groups (%d skipped)",
		humanize.Comma(int64(len(items))), len(groups),
		len(summary.SkippedGroups))

	results := dispatch.Run(ctx, items, flavor.process,
		runner.options(flavor.pipeline, len(items)))
	runner.finishProgress()
	record(runner, summary, results)
	summary.Interrupted = ctx.Err() != nil

	attempted := make(map[string]bool, len(groups))
	partial := make(map[string]bool)
	for idx := range results {
		group := results[idx].Item.GroupID
		if results[idx].Status == dispatch.NotAttempted {
			partial[group] = true
		} else {
			attempted[group] = true
		}
	}
	for _, group := range groups {
		if partial[group] {
			summary.PartialGroups = append(summary.PartialGroups, group)
		}
	}

	writeCtx := context.WithoutCancel(ctx)
	for _, table := range aggregate.Group(groups, results) {
		if !attempted[table.GroupID] {
			continue
		}
		data, err := flavor.encode(table)
		if err != nil {
			return summary, err
		}
		if err := put(writeCtx, sink, summary, flavor.artifact(table.GroupID),
			data); err != nil {
			return summary, err
		}
	}
	return summary, finish(writeCtx, sink, summary, flavor.pipeline)
}
