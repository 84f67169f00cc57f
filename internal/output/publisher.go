// Package output publishes the appointments artifact to its sinks: the
// static site directory, stdout, S3 and Redis.
package output

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/spa-availability/internal/availability"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

const (
	JSONName = "appointments.json"
	MD5Name  = "appointments.md5"
)

// Artifact is one encoded aggregate and its content hash.
type Artifact struct {
	JSON        []byte
	MD5         string
	GeneratedAt time.Time
}

// Sink receives every published artifact.
type Sink interface {
	Name() string
	Publish(ctx context.Context, artifact Artifact) error
}

// HashSource reports the hash of the last published artifact.
type HashSource interface {
	LastHash(ctx context.Context) (string, error)
}

// Publisher encodes the aggregate once and hands it to each sink.
type Publisher struct {
	sinks  []Sink
	hashes HashSource
	logger *logging.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithHashSource enables change detection against a previous publish.
func WithHashSource(src HashSource) PublisherOption {
	return func(p *Publisher) {
		p.hashes = src
	}
}

func NewPublisher(logger *logging.Logger, sinks []Sink, opts ...PublisherOption) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Publisher{sinks: sinks, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewArtifact encodes agg in the wire format and hashes the exact bytes.
func NewArtifact(agg *availability.Aggregate) (Artifact, error) {
	data, err := agg.Encode()
	if err != nil {
		return Artifact{}, fmt.Errorf("output: encode aggregate: %w", err)
	}
	art := Artifact{JSON: data, MD5: Checksum(data)}
	if meta, ok := agg.Meta(); ok {
		art.GeneratedAt = meta.GeneratedAt
	}
	return art, nil
}

// Checksum is the lowercase hex MD5 of data.
func Checksum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Publish writes the aggregate to every sink. changed is false only when a
// hash source is configured and reports the same digest. Sinks are all
// attempted; their errors are joined.
func (p *Publisher) Publish(ctx context.Context, agg *availability.Aggregate) (Artifact, bool, error) {
	art, err := NewArtifact(agg)
	if err != nil {
		return Artifact{}, false, err
	}

	changed := true
	if p.hashes != nil {
		prev, err := p.hashes.LastHash(ctx)
		switch {
		case err != nil:
			p.logger.Warn("could not read previous hash", "error", err)
		case prev == art.MD5:
			changed = false
			p.logger.Info("availability unchanged since last publish", "md5", art.MD5)
		}
	}

	var errs []error
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, art); err != nil {
			p.logger.Error("sink publish failed", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("output: %s: %w", sink.Name(), err))
			continue
		}
		p.logger.Debug("artifact published", "sink", sink.Name(), "bytes", len(art.JSON))
	}
	return art, changed, errors.Join(errs...)
}
