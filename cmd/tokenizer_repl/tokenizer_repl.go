package main

import (
	"bufio"
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	gittables "github.com/rcap107/study-gittables"
	"github.com/rcap107/study-gittables/resources"
)

// A REPL for trying out a trained vocabulary.

func main() {
	vocabPath := flag.String("vocab", "tokenizer.json",
		"vocabulary path or http(s) URL")
	sanitize := flag.Bool("sanitize", false,
		"sanitize whitespace before normalization")
	flag.Parse()

	data, err := resources.Fetch(*vocabPath)
	if err != nil {
		log.Fatal(err)
	}
	vocab, err := gittables.ReadVocabulary(bytes.NewReader(data))
	if err != nil {
		log.Fatal(err)
	}
	encoder, err := gittables.NewEncoder(vocab, 0)
	if err != nil {
		log.Fatal(err)
	}
	encoder.Sanitize = *sanitize
	log.Printf("Loaded %d units, %d merges", vocab.Size(), len(vocab.Merges))

	reader := bufio.NewReader(os.Stdin)
	// Provide a REPL
	for {
		fmt.Print(">>> ")
		input, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && input == "" {
			fmt.Println()
			return
		} else if err != nil && !errors.Is(err, io.EOF) {
			log.Fatal(err)
		}
		input = strings.TrimRight(input, "\r\n")

		tokens, unknown := encoder.EncodeLine(input)
		ids := make([]int, len(tokens))
		for idx, token := range tokens {
			ids[idx], _ = vocab.Id(token)
		}
		fmt.Printf("%v\n", ids)
		for _, token := range tokens {
			fmt.Printf("|%s", token)
		}
		fmt.Printf("|\n")
		if unknown > 0 {
			fmt.Printf("(%d unknown characters dropped)\n", unknown)
		}
	}
}
