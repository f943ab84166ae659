package resources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dustin/go-humanize"
)

// Sink persists named artifacts.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	// Location describes where name ends up, for logging.
	Location(name string) string
}

// LocalSink writes artifacts into a directory, atomically per artifact.
type LocalSink struct {
	Dir string
}

func NewLocalSink(dir string) (*LocalSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create output directory %s: %w",
			dir, err)
	}
	return &LocalSink{Dir: dir}, nil
}

func (sink *LocalSink) Location(name string) string {
	return filepath.Join(sink.Dir, name)
}

// Exists reports whether the artifact is already present.
func (sink *LocalSink) Exists(name string) bool {
	_, err := os.Stat(sink.Location(name))
	return err == nil
}

func (sink *LocalSink) Put(_ context.Context, name string, data []byte) error {
	target := sink.Location(name)
	tmp, err := os.CreateTemp(filepath.Dir(target), ".artifact-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// S3Client is the part of the S3 API the sink needs.
type S3Client interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput,
		opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3Sink uploads artifacts under Prefix in Bucket.
type S3Sink struct {
	Client S3Client
	Bucket string
	Prefix string
}

// NewS3Sink builds a sink on the default AWS credential chain.
func NewS3Sink(region, bucket, prefix string) (*S3Sink, error) {
	if bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}
	config := aws.NewConfig()
	if region != "" {
		config = config.WithRegion(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *config,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create AWS session: %w", err)
	}
	return &S3Sink{Client: s3.New(sess), Bucket: bucket, Prefix: prefix}, nil
}

func (sink *S3Sink) key(name string) string {
	if sink.Prefix == "" {
		return name
	}
	return path.Join(sink.Prefix, name)
}

func (sink *S3Sink) Location(name string) string {
	return "s3://" + sink.Bucket + "/" + sink.key(name)
}

func (sink *S3Sink) Put(ctx context.Context, name string, data []byte) error {
	_, err := sink.Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(sink.Bucket),
		Key:           aws.String(sink.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("error uploading %s: %w", sink.Location(name), err)
	}
	return nil
}

// MultiSink writes each artifact to every sink in order, stopping at the
// first failure.
type MultiSink []Sink

func (sinks MultiSink) Location(name string) string {
	if len(sinks) == 0 {
		return name
	}
	return sinks[0].Location(name)
}

func (sinks MultiSink) Put(ctx context.Context, name string,
	data []byte) error {
	for _, sink := range sinks {
		if err := sink.Put(ctx, name, data); err != nil {
			return err
		}
		log.Printf("Wrote %s (%s)", sink.Location(name),
			humanize.Bytes(uint64(len(data))))
	}
	return nil
}
