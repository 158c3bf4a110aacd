package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/segura08m/InnerNode/internal/core/domain"
)

// Dead letters are forensic data, not a work queue; a week is enough for an
// operator to notice and inspect them.
const deadLetterTTL = 7 * 24 * time.Hour

// DeadLetterRepo keeps dead letters in a per-chain sorted set scored by
// creation time, with the full record JSON stored under a per-ID key.
type DeadLetterRepo struct {
	client *Client
}

func NewDeadLetterRepo(client *Client) *DeadLetterRepo {
	return &DeadLetterRepo{client: client}
}

func indexKey(chainID uint64) string {
	return fmt.Sprintf("deadletters:%d", chainID)
}

func entryKey(id string) string {
	return fmt.Sprintf("deadletter:%s", id)
}

func (r *DeadLetterRepo) Add(ctx context.Context, dl *domain.DeadLetter) error {
	entry := *dl
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	pipe := r.client.rdb.TxPipeline()
	pipe.Set(ctx, entryKey(entry.ID), data, deadLetterTTL)
	pipe.ZAdd(ctx, indexKey(entry.ChainID), redis.Z{
		Score:  float64(entry.CreatedAt.UnixNano()),
		Member: entry.ID,
	})
	pipe.Expire(ctx, indexKey(entry.ChainID), deadLetterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add dead letter: %w", err)
	}
	return nil
}

func (r *DeadLetterRepo) List(ctx context.Context, chainID uint64, limit int) ([]*domain.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := r.client.rdb.ZRevRange(ctx, indexKey(chainID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}
	values, err := r.client.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch dead letters: %w", err)
	}

	out := make([]*domain.DeadLetter, 0, len(values))
	var expired []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Entry key expired but the index member survived.
			expired = append(expired, ids[i])
			continue
		}
		var dl domain.DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			continue
		}
		out = append(out, &dl)
	}
	if len(expired) > 0 {
		r.client.rdb.ZRem(ctx, indexKey(chainID), expired...)
	}
	return out, nil
}

func (r *DeadLetterRepo) Count(ctx context.Context, chainID uint64) (int, error) {
	n, err := r.client.rdb.ZCard(ctx, indexKey(chainID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return int(n), nil
}

func (r *DeadLetterRepo) DeleteOlderThan(ctx context.Context, chainID uint64, cutoff time.Time) (int64, error) {
	maxScore := fmt.Sprintf("(%d", cutoff.UnixNano())
	ids, err := r.client.rdb.ZRangeByScore(ctx, indexKey(chainID), &redis.ZRangeBy{
		Min: "-inf",
		Max: maxScore,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("prune dead letters: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}
	pipe := r.client.rdb.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRemRangeByScore(ctx, indexKey(chainID), "-inf", maxScore)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("prune dead letters: %w", err)
	}
	return int64(len(ids)), nil
}

func (r *DeadLetterRepo) Delete(ctx context.Context, id string) error {
	raw, err := r.client.rdb.Get(ctx, entryKey(id)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete dead letter: %w", err)
	}

	var dl domain.DeadLetter
	pipe := r.client.rdb.TxPipeline()
	if err := json.Unmarshal([]byte(raw), &dl); err == nil {
		pipe.ZRem(ctx, indexKey(dl.ChainID), id)
	}
	pipe.Del(ctx, entryKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete dead letter: %w", err)
	}
	return nil
}
