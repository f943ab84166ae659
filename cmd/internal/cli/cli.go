// Package cli holds the pieces every command binary shares: config flags,
// interrupt handling, the progress bar and artifact upload.
package cli

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rcap107/study-gittables/config"
	"github.com/rcap107/study-gittables/dispatch"
	"github.com/rcap107/study-gittables/pipeline"
	"github.com/rcap107/study-gittables/resources"
	"github.com/schollz/progressbar/v3"
)

// Bar shows dispatch progress on stderr.
type Bar struct {
	bar    *progressbar.ProgressBar
	failed int
}

func (b *Bar) Start(label string, total int) {
	b.failed = 0
	b.bar = progressbar.Default(int64(total), label)
}

func (b *Bar) Step(status dispatch.Status) {
	if status == dispatch.Failed {
		b.failed++
	}
	if b.bar != nil {
		b.bar.Add(1)
	}
}

func (b *Bar) Finish() {
	if b.bar == nil {
		return
	}
	b.bar.Finish()
	if b.failed > 0 {
		log.Printf("%d items failed", b.failed)
	}
}

// Context returns a context cancelled by the first SIGINT or SIGTERM. A
// second signal kills the process as usual.
func Context() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			log.Print("Interrupting... finishing in-flight items")
			signal.Stop(signals)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(signals)
		cancel()
	}
}

// Runner parses the command line and builds a pipeline runner from it.
// Config errors are fatal.
func Runner(flags *config.Flags, quiet bool) *pipeline.Runner {
	cfg, err := flags.Resolve()
	if err != nil {
		log.Fatal(err)
	}
	runner := pipeline.NewRunner(cfg)
	if !quiet {
		runner.Progress = &Bar{}
	}
	if cfg.S3.Bucket != "" {
		sink, err := resources.NewS3Sink(cfg.S3.Region, cfg.S3.Bucket,
			cfg.S3.Prefix)
		if err != nil {
			log.Fatal(err)
		}
		runner.Remote = sink
	}
	log.Printf("Using %d workers", cfg.Workers)
	return runner
}

// Require exits with usage when a mandatory flag is empty.
func Require(name string, value string) {
	if value == "" {
		flag.Usage()
		log.Fatalf("Must provide -%s", name)
	}
}
