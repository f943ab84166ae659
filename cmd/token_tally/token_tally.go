package main

import (
	"flag"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/rcap107/study-gittables/cmd/internal/cli"
	"github.com/rcap107/study-gittables/config"
)

// Counts how often every vocabulary unit occurs across a text corpus and
// writes the frequency table as JSON. Unseen units are listed with a zero
// count.

func main() {
	inputDir := flag.String("input", "",
		"text corpus root, one folder per group")
	vocabPath := flag.String("vocab", "tokenizer.json",
		"vocabulary path or http(s) URL")
	outputFile := flag.String("output", "global_counter.json",
		"where to write the frequency table")
	quiet := flag.Bool("quiet", false, "do not show a progress bar")
	flags := config.Bind(flag.CommandLine)
	flag.Parse()
	cli.Require("input", *inputDir)
	cli.Require("vocab", *vocabPath)

	runner := cli.Runner(flags, *quiet)
	ctx, stop := cli.Context()
	defer stop()

	log.Printf("Tally input: %s", *inputDir)
	log.Printf("Vocabulary: %s", *vocabPath)
	log.Printf("Frequency table output: %s", *outputFile)
	table, summary, err := runner.Tally(ctx, *inputDir, *vocabPath,
		*outputFile)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("%s tokens over %d units from %s files",
		humanize.Comma(table.Total()), table.Len(),
		humanize.Comma(int64(summary.Succeeded+summary.Resumed)))
}
