// Package config holds the run configuration shared by every command: a YAML
// file whose values can be overridden from the command line.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultVocabSize     = 30000
	DefaultMinFrequency  = 2
	DefaultCacheSize     = 65536
	DefaultMemberPattern = "*"
	DefaultTextSuffix    = ".txt"
)

var ErrConfig = errors.New("invalid configuration")

// S3 configures artifact upload. An empty bucket disables it.
type S3 struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

type Config struct {
	Workers       int           `yaml:"workers"`
	ItemTimeout   time.Duration `yaml:"item_timeout"`
	VocabSize     int           `yaml:"vocab_size"`
	MinFrequency  int64         `yaml:"min_frequency"`
	CacheSize     int           `yaml:"cache_size"`
	Sanitize      bool          `yaml:"sanitize"`
	MemberPattern string        `yaml:"member_pattern"`
	TextSuffix    string        `yaml:"text_suffix"`
	Checkpoint    string        `yaml:"checkpoint"`
	SkipExisting  bool          `yaml:"skip_existing"`
	S3            S3            `yaml:"s3"`
	LogFailures   bool          `yaml:"log_failures"`
}

func Default() Config {
	return Config{
		Workers:       runtime.NumCPU(),
		VocabSize:     DefaultVocabSize,
		MinFrequency:  DefaultMinFrequency,
		CacheSize:     DefaultCacheSize,
		MemberPattern: DefaultMemberPattern,
		TextSuffix:    DefaultTextSuffix,
	}
}

// Load reads a YAML config file. Keys absent from the file keep their
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}
	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	switch {
	case cfg.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d",
			ErrConfig, cfg.Workers)
	case cfg.ItemTimeout < 0:
		return fmt.Errorf("%w: item_timeout must not be negative",
			ErrConfig)
	case cfg.VocabSize < 1:
		return fmt.Errorf("%w: vocab_size must be positive", ErrConfig)
	case cfg.MinFrequency < 1:
		return fmt.Errorf("%w: min_frequency must be positive", ErrConfig)
	case cfg.CacheSize < 1:
		return fmt.Errorf("%w: cache_size must be positive", ErrConfig)
	case cfg.MemberPattern == "":
		return fmt.Errorf("%w: member_pattern is empty", ErrConfig)
	}
	return nil
}

// Flags binds the config to a flag set. Flags given on the command line take
// precedence over the config file, which takes precedence over defaults.
type Flags struct {
	fs     *flag.FlagSet
	path   string
	values Config
}

func Bind(fs *flag.FlagSet) *Flags {
	flags := &Flags{fs: fs, values: Default()}
	values := &flags.values
	fs.StringVar(&flags.path, "config", "", "YAML run configuration")
	fs.IntVar(&values.Workers, "workers", values.Workers,
		"number of concurrent workers")
	fs.DurationVar(&values.ItemTimeout, "item_timeout", 0,
		"give up on an item after this long, 0 for no limit")
	fs.IntVar(&values.VocabSize, "vocab_size", values.VocabSize,
		"vocabulary size, base units included")
	fs.Int64Var(&values.MinFrequency, "min_frequency", values.MinFrequency,
		"minimum pair frequency for a merge")
	fs.IntVar(&values.CacheSize, "cache_size", values.CacheSize,
		"encoder segment cache entries")
	fs.BoolVar(&values.Sanitize, "sanitize", false,
		"sanitize whitespace before normalization")
	fs.StringVar(&values.MemberPattern, "member_pattern",
		values.MemberPattern, "glob selecting the members of a group")
	fs.StringVar(&values.TextSuffix, "text_suffix", values.TextSuffix,
		"suffix stripped from text member names")
	fs.StringVar(&values.Checkpoint, "checkpoint", "",
		"SQLite checkpoint database for resumable runs")
	fs.BoolVar(&values.SkipExisting, "skip_existing", false,
		"skip groups whose artifact already exists")
	fs.StringVar(&values.S3.Bucket, "s3_bucket", "",
		"also upload artifacts to this S3 bucket")
	fs.StringVar(&values.S3.Prefix, "s3_prefix", "",
		"key prefix for uploaded artifacts")
	fs.StringVar(&values.S3.Region, "s3_region", "", "S3 region")
	fs.BoolVar(&values.LogFailures, "log_failures", false,
		"log every failed item")
	return flags
}

// Resolve merges the config file, if any, with the flags that were set. Call
// it after the flag set is parsed.
func (flags *Flags) Resolve() (Config, error) {
	cfg := Default()
	if flags.path != "" {
		loaded, err := Load(flags.path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	set := flags.values
	flags.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = set.Workers
		case "item_timeout":
			cfg.ItemTimeout = set.ItemTimeout
		case "vocab_size":
			cfg.VocabSize = set.VocabSize
		case "min_frequency":
			cfg.MinFrequency = set.MinFrequency
		case "cache_size":
			cfg.CacheSize = set.CacheSize
		case "sanitize":
			cfg.Sanitize = set.Sanitize
		case "member_pattern":
			cfg.MemberPattern = set.MemberPattern
		case "text_suffix":
			cfg.TextSuffix = set.TextSuffix
		case "checkpoint":
			cfg.Checkpoint = set.Checkpoint
		case "skip_existing":
			cfg.SkipExisting = set.SkipExisting
		case "s3_bucket":
			cfg.S3.Bucket = set.S3.Bucket
		case "s3_prefix":
			cfg.S3.Prefix = set.S3.Prefix
		case "s3_region":
			cfg.S3.Region = set.S3.Region
		case "log_failures":
			cfg.LogFailures = set.LogFailures
		}
	})
	return cfg, cfg.Validate()
}
