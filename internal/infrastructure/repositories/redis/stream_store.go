package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// StreamStore persists stream records in Redis: one hash per stream key plus
// a live-set index for discovery. Follower relationships live in per-owner
// sets maintained by the account service.
type StreamStore struct {
	client *redis.Client
	prefix string
}

func NewStreamStore(client *redis.Client) ports.StreamStore {
	return &StreamStore{
		client: client,
		prefix: "livegate:",
	}
}

func (s *StreamStore) streamKey(key domain.StreamKey) string {
	return s.prefix + "stream:" + string(key)
}

func (s *StreamStore) liveSetKey() string {
	return s.prefix + "streams:live"
}

func (s *StreamStore) followersKey(owner domain.UserID) string {
	return s.prefix + "followers:" + string(owner)
}

func (s *StreamStore) CreateStreamRecord(ctx context.Context, rec *domain.StreamRecord) error {
	fields := map[string]interface{}{
		"owner":   string(rec.Owner),
		"private": strconv.FormatBool(rec.IsPrivate),
		"status":  string(rec.Status),
	}
	if !rec.StartedAt.IsZero() {
		fields["started_at"] = rec.StartedAt.Unix()
	}
	if !rec.EndedAt.IsZero() {
		fields["ended_at"] = rec.EndedAt.Unix()
	}

	if err := s.client.HSet(ctx, s.streamKey(rec.StreamKey), fields).Err(); err != nil {
		return fmt.Errorf("failed to store stream record: %w", err)
	}
	return nil
}

func (s *StreamStore) FindStreamByKey(ctx context.Context, key domain.StreamKey) (*domain.StreamRecord, error) {
	values, err := s.client.HGetAll(ctx, s.streamKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrStreamNotFound
		}
		return nil, fmt.Errorf("failed to read stream record: %w", err)
	}
	if len(values) == 0 {
		return nil, domain.ErrStreamNotFound
	}

	rec := &domain.StreamRecord{
		StreamKey: key,
		Owner:     domain.UserID(values["owner"]),
		Status:    domain.StreamStatus(values["status"]),
	}
	rec.IsPrivate, _ = strconv.ParseBool(values["private"])
	return rec, nil
}

func (s *StreamStore) UpdateStreamStatus(ctx context.Context, key domain.StreamKey, status domain.StreamStatus, startedAt, endedAt int64) error {
	fields := map[string]interface{}{"status": string(status)}
	if startedAt > 0 {
		fields["started_at"] = startedAt
	}
	if endedAt > 0 {
		fields["ended_at"] = endedAt
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.streamKey(key), fields)
	if status == domain.StatusLive {
		pipe.SAdd(ctx, s.liveSetKey(), string(key))
	} else {
		pipe.SRem(ctx, s.liveSetKey(), string(key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update stream status: %w", err)
	}
	return nil
}

func (s *StreamStore) IsAuthorizedViewer(ctx context.Context, owner, viewer domain.UserID) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.followersKey(owner), string(viewer)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check follower set: %w", err)
	}
	return ok, nil
}
