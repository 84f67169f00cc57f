package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/spa-availability/pkg/logging"
)

// S3API is the subset of the S3 client used by S3Sink.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ManifestEntry is one line of the monthly publish manifest.
type ManifestEntry struct {
	Key         string `json:"key"`
	MD5         string `json:"md5"`
	GeneratedAt string `json:"generated_at"`
	Bytes       int    `json:"bytes"`
}

// S3Sink uploads the artifact for the static site and keeps a dated copy.
// If bucket is empty, all operations are no-ops.
type S3Sink struct {
	bucket   string
	prefix   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

func NewS3Sink(s3Client S3API, bucket, prefix string, logger *logging.Logger) *S3Sink {
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Sink{
		bucket:   bucket,
		prefix:   prefix,
		s3Client: s3Client,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enabled returns true if a bucket is configured.
func (s *S3Sink) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) Publish(ctx context.Context, art Artifact) error {
	if !s.Enabled() {
		return nil
	}

	if err := s.put(ctx, s.key(JSONName), art.JSON, "application/json"); err != nil {
		return err
	}
	if err := s.put(ctx, s.key(MD5Name), []byte(art.MD5), "text/plain"); err != nil {
		return err
	}

	stamp := art.GeneratedAt
	if stamp.IsZero() {
		stamp = s.now()
	}
	stamp = stamp.UTC()
	historyKey := s.key(fmt.Sprintf("history/%d/%02d/%02d/%s.json",
		stamp.Year(), stamp.Month(), stamp.Day(), stamp.Format("150405")))
	if err := s.put(ctx, historyKey, art.JSON, "application/json"); err != nil {
		return err
	}

	s.logger.Info("published appointments to S3", "bucket", s.bucket, "history_key", historyKey, "md5", art.MD5)

	entry := ManifestEntry{
		Key:         historyKey,
		MD5:         art.MD5,
		GeneratedAt: stamp.Format(time.RFC3339),
		Bytes:       len(art.JSON),
	}
	if err := s.AppendManifest(ctx, stamp, entry); err != nil {
		// the artifact is already up; the manifest is bookkeeping
		s.logger.Warn("failed to append manifest", "error", err)
	}
	return nil
}

// AppendManifest appends a JSONL line to the month's manifest.
// S3 has no append, so this is a read-modify-write.
func (s *S3Sink) AppendManifest(ctx context.Context, at time.Time, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("output: marshal manifest entry: %w", err)
	}

	manifestKey := s.key(fmt.Sprintf("history/manifests/%d-%02d.jsonl", at.Year(), at.Month()))

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("output: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	return s.put(ctx, manifestKey, buf.Bytes(), "application/x-ndjson")
}

func (s *S3Sink) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("output: s3 put %s: %w", key, err)
	}
	return nil
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}
