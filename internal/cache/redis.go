package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/helpdesk/internal/metrics"
	"github.com/hitoshi/helpdesk/internal/model"
)

// RedisConfig はRedis接続設定。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisClient はRedisクライアントを生成し、接続を確認する。
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// defaultTTL はTTLが未指定の場合のビューの有効期間。
const defaultTTL = time.Minute

// setIfCurrent は世代キーが期待値と一致する場合のみビューを書き込む。
// 世代キーが存在しない場合は世代0として扱う。
var setIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// RedisViewCache はRedisを使用したViewCacheの実装。
// 値はJSONで保存し、TTLで自然に失効させる。
// 世代を進めると古い世代のキーは参照されなくなり、TTLで消える。
type RedisViewCache struct {
	client  redis.Cmdable
	ttl     time.Duration
	metrics metrics.MetricsCollector
}

var _ ViewCache = (*RedisViewCache)(nil)

// NewRedisViewCache はRedisViewCacheを生成する。
func NewRedisViewCache(client redis.Cmdable, ttl time.Duration, mc metrics.MetricsCollector) *RedisViewCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisViewCache{
		client:  client,
		ttl:     ttl,
		metrics: metrics.OrNop(mc),
	}
}

// Generation は現在の世代を返す。
func (c *RedisViewCache) Generation(ctx context.Context) (int64, bool) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		slog.Warn("view cache generation read failed", slog.String("error", err.Error()))
		return 0, false
	}
	return gen, true
}

// GetList はキャッシュ済みのチケット一覧を返す。
func (c *RedisViewCache) GetList(ctx context.Context, gen int64) ([]*model.Ticket, bool) {
	var tickets []*model.Ticket
	hit := c.get(ctx, ListKey(gen), &tickets)
	c.metrics.RecordViewCacheLookup(ViewList, hit)
	return tickets, hit
}

// SetList はチケット一覧をキャッシュする。genが現在の世代でない場合は何もしない。
func (c *RedisViewCache) SetList(ctx context.Context, gen int64, tickets []*model.Ticket) {
	if tickets == nil {
		tickets = []*model.Ticket{}
	}
	c.set(ctx, gen, ListKey(gen), tickets)
}

// GetDetail はキャッシュ済みのチケット詳細を返す。
func (c *RedisViewCache) GetDetail(ctx context.Context, gen int64, id string) (*model.Ticket, bool) {
	var ticket model.Ticket
	hit := c.get(ctx, DetailKey(gen, id), &ticket)
	c.metrics.RecordViewCacheLookup(ViewDetail, hit)
	if !hit {
		return nil, false
	}
	return &ticket, true
}

// SetDetail はチケット詳細をキャッシュする。genが現在の世代でない場合は何もしない。
func (c *RedisViewCache) SetDetail(ctx context.Context, gen int64, ticket *model.Ticket) {
	if ticket == nil {
		return
	}
	c.set(ctx, gen, DetailKey(gen, ticket.ID), ticket)
}

// Invalidate は世代を1つ進める。
func (c *RedisViewCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate view cache: %w", err)
	}
	return nil
}

func (c *RedisViewCache) get(ctx context.Context, key string, dst any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		slog.Warn("view cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("view cache entry is corrupt", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

func (c *RedisViewCache) set(ctx context.Context, gen int64, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("view cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	err = setIfCurrent.Run(ctx, c.client,
		[]string{generationKey, key},
		strconv.FormatInt(gen, 10), data, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		slog.Warn("view cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
