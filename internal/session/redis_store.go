package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"

	"fleetguard/internal/inspection"
)

// RedisStore keeps sessions as zstd-compressed JSON so multiple API instances share them.
// Photos travel inside the snapshot, which is why it is compressed.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewRedisStore(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl, encoder: enc, decoder: dec}, nil
}

func (r *RedisStore) sessionKey(handle string) string {
	return fmt.Sprintf("inspection:session:%s", handle)
}

func (r *RedisStore) operatorKey(operatorID string) string {
	return fmt.Sprintf("inspection:operator:%s", operatorID)
}

func (r *RedisStore) Save(ctx context.Context, s *inspection.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	payload := r.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(s.Handle), payload, r.ttl)
		if s.State == inspection.StateInProgress {
			pipe.Set(ctx, r.operatorKey(s.Operator.ID), s.Handle, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}
	if s.State != inspection.StateInProgress {
		return r.releaseOperator(ctx, s)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, handle string) (*inspection.Session, error) {
	payload, err := r.client.Get(ctx, r.sessionKey(handle)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	raw, err := r.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress session: %w", err)
	}
	var s inspection.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) ActiveFor(ctx context.Context, operatorID string) (*inspection.Session, error) {
	handle, err := r.client.Get(ctx, r.operatorKey(operatorID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator session: %w", err)
	}
	s, err := r.Get(ctx, handle)
	if err != nil {
		return nil, err
	}
	if s.State != inspection.StateInProgress {
		return nil, ErrNotFound
	}
	return s, nil
}

func (r *RedisStore) Delete(ctx context.Context, s *inspection.Session) error {
	if err := r.client.Del(ctx, r.sessionKey(s.Handle)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return r.releaseOperator(ctx, s)
}

// releaseOperator clears the operator index only when it still points at this session.
func (r *RedisStore) releaseOperator(ctx context.Context, s *inspection.Session) error {
	key := r.operatorKey(s.Operator.ID)
	current, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read operator session: %w", err)
	}
	if current != s.Handle {
		return nil
	}
	return r.client.Del(ctx, key).Err()
}
