package output

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/spa-availability/internal/availability"
)

const (
	LatestKey = "spa:appointments:latest"
	HashKey   = "spa:appointments:md5"
)

// RedisSink keeps the latest artifact in Redis for the HTTP server and for
// change detection between runs.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (r *RedisSink) Name() string { return "redis" }

// Publish stores the JSON and its hash in one transaction.
func (r *RedisSink) Publish(ctx context.Context, art Artifact) error {
	if r == nil || r.client == nil {
		return nil
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, LatestKey, art.JSON, 0)
	pipe.Set(ctx, HashKey, art.MD5, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// LastHash returns "" when nothing has been published yet.
func (r *RedisSink) LastHash(ctx context.Context) (string, error) {
	if r == nil || r.client == nil {
		return "", nil
	}
	sum, err := r.client.Get(ctx, HashKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("output: get last hash: %w", err)
	}
	return sum, nil
}

// LatestArtifact returns the stored bytes, or ok=false when empty.
func (r *RedisSink) LatestArtifact(ctx context.Context) (Artifact, bool, error) {
	if r == nil || r.client == nil {
		return Artifact{}, false, nil
	}
	vals, err := r.client.MGet(ctx, LatestKey, HashKey).Result()
	if err != nil {
		return Artifact{}, false, fmt.Errorf("output: get latest: %w", err)
	}
	data, _ := vals[0].(string)
	if data == "" {
		return Artifact{}, false, nil
	}
	sum, _ := vals[1].(string)
	return Artifact{JSON: []byte(data), MD5: sum}, true, nil
}

// Latest decodes the last published aggregate; nil when none exists.
func (r *RedisSink) Latest(ctx context.Context) (*availability.Aggregate, error) {
	art, ok, err := r.LatestArtifact(ctx)
	if err != nil || !ok {
		return nil, err
	}
	agg := availability.NewAggregate()
	if err := agg.UnmarshalJSON(art.JSON); err != nil {
		return nil, fmt.Errorf("output: decode latest: %w", err)
	}
	return agg, nil
}
