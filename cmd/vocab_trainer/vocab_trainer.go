package main

import (
	"flag"
	"log"

	"github.com/rcap107/study-gittables/cmd/internal/cli"
	"github.com/rcap107/study-gittables/config"
)

// Learns a subword vocabulary from a corpus of table text renderings laid
// out as <input>/<group>/<member>.txt.

func main() {
	inputDir := flag.String("input", "",
		"text corpus root, one folder per group")
	outputFile := flag.String("output", "tokenizer.json",
		"where to write the vocabulary")
	quiet := flag.Bool("quiet", false, "do not show a progress bar")
	flags := config.Bind(flag.CommandLine)
	flag.Parse()
	cli.Require("input", *inputDir)

	runner := cli.Runner(flags, *quiet)
	ctx, stop := cli.Context()
	defer stop()

	log.Printf("Training input: %s", *inputDir)
	log.Printf("Vocabulary output: %s", *outputFile)
	vocab, _, err := runner.Train(ctx, *inputDir, *outputFile)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %d units to %s", vocab.Size(), *outputFile)
}
