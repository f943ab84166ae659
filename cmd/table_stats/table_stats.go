package main

import (
	"flag"
	"log"

	"github.com/rcap107/study-gittables/cmd/internal/cli"
	"github.com/rcap107/study-gittables/config"
	"github.com/rcap107/study-gittables/pipeline"
)

// Profiles every table under <input>/<group>/ and writes one CSV per group:
// structural statistics by default, or domain annotations with -domains.

func main() {
	inputDir := flag.String("input", "", "table root, one folder per group")
	outputDir := flag.String("output", "info_tables",
		"directory for the per-group tables")
	domains := flag.Bool("domains", false,
		"collect table_domain annotations instead of statistics")
	quiet := flag.Bool("quiet", false, "do not show a progress bar")
	flags := config.Bind(flag.CommandLine)
	flag.Parse()
	cli.Require("input", *inputDir)

	runner := cli.Runner(flags, *quiet)
	ctx, stop := cli.Context()
	defer stop()

	var summary *pipeline.Summary
	var err error
	if *domains {
		summary, err = runner.Domains(ctx, *inputDir, *outputDir)
	} else {
		summary, err = runner.Statistics(ctx, *inputDir, *outputDir)
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %d group tables to %s", len(summary.Artifacts),
		*outputDir)
}
