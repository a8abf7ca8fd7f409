package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// SequenceSource yields the next per-day ticket sequence number. dayStart
// is local midnight of the day being numbered.
type SequenceSource interface {
	NextDaily(ctx context.Context, dayStart time.Time) (int64, error)
}

type pgSequence struct {
	pool *pgxpool.Pool
}

// NewPostgresSequence counts tickets created since dayStart. Concurrent
// callers can observe the same count; the unique ticket_number index
// rejects the loser.
func NewPostgresSequence(pool *pgxpool.Pool) SequenceSource {
	return &pgSequence{pool: pool}
}

func (s *pgSequence) NextDaily(ctx context.Context, dayStart time.Time) (int64, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE created_at >= $1 AND created_at < $2`
	var count int64
	if err := s.pool.QueryRow(ctx, query, dayStart, dayStart.AddDate(0, 0, 1)).Scan(&count); err != nil {
		return 0, err
	}
	return count + 1, nil
}

type redisSequence struct {
	client *redis.Client
	prefix string
}

// NewRedisSequence keeps one INCR counter per day.
func NewRedisSequence(client *redis.Client, prefix string) SequenceSource {
	if prefix == "" {
		prefix = "ticket_seq"
	}
	return &redisSequence{client: client, prefix: prefix}
}

func (s *redisSequence) NextDaily(ctx context.Context, dayStart time.Time) (int64, error) {
	key := fmt.Sprintf("%s:%s", s.prefix, dayStart.Format("20060102"))
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
