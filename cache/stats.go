package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Stats tracks like and play counters per track in Redis. Counters are
// best-effort product telemetry, not catalog state; every method is safe to
// skip when Redis is absent by keeping Stats nil.
type Stats struct {
	client *redis.Client
}

// NewStats wraps an open Redis client.
func NewStats(client *redis.Client) *Stats {
	return &Stats{client: client}
}

func likeKey(trackID string) string {
	return "likes:" + trackID
}

func playKey(trackID string) string {
	return "plays:" + trackID
}

// Like increments the like counter and returns the new total.
func (s *Stats) Like(ctx context.Context, trackID string) (int64, error) {
	n, err := s.client.Incr(ctx, likeKey(trackID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment likes for %s: %w", trackID, err)
	}
	return n, nil
}

// RecordPlay increments the play counter.
func (s *Stats) RecordPlay(ctx context.Context, trackID string) error {
	if err := s.client.Incr(ctx, playKey(trackID)).Err(); err != nil {
		return fmt.Errorf("failed to increment plays for %s: %w", trackID, err)
	}
	return nil
}

// Counts returns the like and play totals for a track. Missing keys read
// as zero.
func (s *Stats) Counts(ctx context.Context, trackID string) (likes, plays int64, err error) {
	vals, err := s.client.MGet(ctx, likeKey(trackID), playKey(trackID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read counters for %s: %w", trackID, err)
	}
	if likes, err = parseCounter(vals[0]); err != nil {
		return 0, 0, fmt.Errorf("bad like counter for %s: %w", trackID, err)
	}
	if plays, err = parseCounter(vals[1]); err != nil {
		return 0, 0, fmt.Errorf("bad play counter for %s: %w", trackID, err)
	}
	return likes, plays, nil
}

// parseCounter interprets one MGET reply. A missing key reads as zero; a
// non-numeric value is an error rather than a silent zero.
func parseCounter(v interface{}) (int64, error) {
	str, ok := v.(string)
	if !ok {
		return 0, nil
	}
	return strconv.ParseInt(str, 10, 64)
}

// Forget drops the counters for a deleted track.
func (s *Stats) Forget(ctx context.Context, trackID string) error {
	if err := s.client.Del(ctx, likeKey(trackID), playKey(trackID)).Err(); err != nil {
		return fmt.Errorf("failed to delete counters for %s: %w", trackID, err)
	}
	return nil
}
