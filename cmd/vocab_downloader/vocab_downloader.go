package main

import (
	"bytes"
	"context"
	"flag"
	"log"
	"path"

	gittables "github.com/rcap107/study-gittables"
	"github.com/rcap107/study-gittables/resources"
)

// Fetches a vocabulary artifact, checks that it loads, and stores a local
// copy so later runs do not depend on the network.

func main() {
	vocabURL := flag.String("vocab", "",
		"vocabulary URL or path to fetch")
	destPath := flag.String("dest", "./",
		"directory to download the vocabulary to")
	name := flag.String("name", "",
		"file name to store it under, defaults to the URL's base name")
	flag.Parse()
	if *vocabURL == "" {
		flag.Usage()
		log.Fatal("Must provide -vocab")
	}

	data, err := resources.Fetch(*vocabURL)
	if err != nil {
		log.Fatalf("Error downloading vocabulary: %s", err)
	}
	vocab, err := gittables.ReadVocabulary(bytes.NewReader(data))
	if err != nil {
		log.Fatalf("Downloaded file is not a usable vocabulary: %s", err)
	}
	sink, err := resources.NewLocalSink(*destPath)
	if err != nil {
		log.Fatal(err)
	}
	if *name == "" {
		*name = path.Base(*vocabURL)
	}
	if err := sink.Put(context.Background(), *name, data); err != nil {
		log.Fatal(err)
	}
	log.Printf("Stored %d units, %d merges in %s", vocab.Size(),
		len(vocab.Merges), sink.Location(*name))
}
