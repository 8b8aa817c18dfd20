package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/juju/clock"
	"github.com/redis/go-redis/v9"

	"StoryStream/internal/config"
	"StoryStream/internal/domain"
	"StoryStream/internal/ports"
)

// maxWatchRetries bounds optimistic-lock retries when the identity set changes mid-insert.
const maxWatchRetries = 3

var errDuplicateIdentity = errors.New("duplicate identity")

// RedisRepository stores identities in a SET and records in a ZSET scored by
// creation time (unix milliseconds).
type RedisRepository struct {
	client *redis.Client
	clock  clock.Clock
	keys   redisKeys
}

var _ ports.RecordStore = (*RedisRepository)(nil)

type redisKeys struct {
	identities string
	records    string
	sequence   string
}

func newRedisKeys(prefix string) redisKeys {
	if prefix == "" {
		prefix = "storystream"
	}
	return redisKeys{
		identities: prefix + ":identities",
		records:    prefix + ":records",
		sequence:   prefix + ":seq",
	}
}

// NewRedisRepository connects and verifies the server with a ping.
func NewRedisRepository(ctx context.Context, cfg config.RedisConfig, clk clock.Clock) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: connect to redis at %s: %w", domain.ErrStorage, cfg.Addr, err)
	}

	if clk == nil {
		clk = clock.WallClock
	}
	return &RedisRepository{client: client, clock: clk, keys: newRedisKeys(cfg.KeyPrefix)}, nil
}

// Ensure pings the server; Redis needs no schema.
func (r *RedisRepository) Ensure(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping redis: %w", domain.ErrStorage, err)
	}
	return nil
}

// LoadKnownIdentities reads the identity SET.
func (r *RedisRepository) LoadKnownIdentities(ctx context.Context) (domain.IdentitySet, error) {
	members, err := r.client.SMembers(ctx, r.keys.identities).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read identities: %w", domain.ErrStorage, err)
	}

	out := make(domain.IdentitySet, len(members))
	for _, m := range members {
		id, err := decodeIdentity(m)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		out.Add(id)
	}
	return out, nil
}

// InsertNew adds identities and records in one MULTI/EXEC guarded by WATCH on
// the identity set; a stored identity rejects the whole batch.
func (r *RedisRepository) InsertNew(ctx context.Context, records []domain.Record) ([]domain.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	members := make([]interface{}, len(records))
	for i, rec := range records {
		members[i] = encodeIdentity(rec.Identity())
	}

	var inserted []domain.Record
	txf := func(tx *redis.Tx) error {
		present, err := tx.SMIsMember(ctx, r.keys.identities, members...).Result()
		if err != nil {
			return err
		}
		for i, ok := range present {
			if ok {
				return fmt.Errorf("%w %s", errDuplicateIdentity, members[i])
			}
		}

		last, err := tx.IncrBy(ctx, r.keys.sequence, int64(len(records))).Result()
		if err != nil {
			return err
		}

		inserted = make([]domain.Record, len(records))
		zs := make([]redis.Z, len(records))
		first := last - int64(len(records)) + 1
		for i, rec := range records {
			rec.ID = first + int64(i)
			inserted[i] = rec
			payload, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			zs[i] = redis.Z{Score: float64(rec.CreatedAt.UnixMilli()), Member: payload}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, r.keys.identities, members...)
			pipe.ZAdd(ctx, r.keys.records, zs...)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = r.client.Watch(ctx, txf, r.keys.identities)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: insert records: %w", domain.ErrStorage, err)
	}
	return inserted, nil
}

// QueryRecent counts records scored after now-window.
func (r *RedisRepository) QueryRecent(ctx context.Context, window time.Duration) (int, error) {
	cutoff := r.clock.Now().Add(-window).UnixMilli()
	n, err := r.client.ZCount(ctx, r.keys.records, "("+strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: count recent: %w", domain.ErrStorage, err)
	}
	return int(n), nil
}

// ListRecent returns every record, most recent first.
func (r *RedisRepository) ListRecent(ctx context.Context) ([]domain.Record, error) {
	raw, err := r.client.ZRevRange(ctx, r.keys.records, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list records: %w", domain.ErrStorage, err)
	}

	out := make([]domain.Record, 0, len(raw))
	for _, item := range raw {
		var rec domain.Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("%w: decode record: %w", domain.ErrStorage, err)
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

// Close releases the client.
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// encodeIdentity renders the pair as a JSON array so separators inside titles stay unambiguous.
func encodeIdentity(id domain.Identity) string {
	raw, _ := json.Marshal([2]string{id.Title, id.Link})
	return string(raw)
}

func decodeIdentity(member string) (domain.Identity, error) {
	var pair [2]string
	if err := json.Unmarshal([]byte(member), &pair); err != nil {
		return domain.Identity{}, fmt.Errorf("decode identity %q: %w", member, err)
	}
	return domain.Identity{Title: pair[0], Link: pair[1]}, nil
}
