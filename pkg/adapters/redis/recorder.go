// Package redis streams run trails to a Redis list per run, for external
// inspection and replay tooling.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/wovenlab/shuttle/pkg/domain"
)

// Recorder implements ports.TrailRecorder on a Redis backend. Each run's
// trail lives in its own list; entries are append-only JSON.
type Recorder struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithTTL expires a run's trail after the given duration, refreshed on
// every append. Zero keeps trails forever.
func WithTTL(ttl time.Duration) RecorderOption {
	return func(r *Recorder) {
		r.ttl = ttl
	}
}

// NewRecorder creates a recorder using the given client and key prefix.
func NewRecorder(client *backend.Client, prefix string, opts ...RecorderOption) *Recorder {
	r := &Recorder{client: client, prefix: prefix}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) key(runID string) string {
	return r.prefix + "trail:" + runID
}

// Append implements ports.TrailRecorder.
func (r *Recorder) Append(ctx context.Context, runID string, entry domain.HistoryEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding trail entry: %w", err)
	}
	key := r.key(runID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending trail entry: %w", err)
	}
	return nil
}

// Trail implements ports.TrailRecorder.
func (r *Recorder) Trail(ctx context.Context, runID string) ([]domain.HistoryEntry, error) {
	raw, err := r.client.LRange(ctx, r.key(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading trail: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrRunNotFound
	}
	entries := make([]domain.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry domain.HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("decoding trail entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
