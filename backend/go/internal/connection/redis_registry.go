package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TechPulse/backend/go/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix = "techpulse:conn:"
	redisIndexKey  = "techpulse:conn:index"
)

// RedisRegistry keeps one JSON value per connection, expiring with the
// registration, plus a set indexing every known id. Index members whose value
// has already expired are listed as expired stubs so the caller prunes them.
type RedisRegistry struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisRegistry creates a registry on top of an existing client.
func NewRedisRegistry(client redis.UniversalClient) *RedisRegistry {
	return &RedisRegistry{client: client, now: time.Now}
}

func connectionKey(id string) string {
	return redisKeyPrefix + id
}

func (r *RedisRegistry) encode(conn models.LiveConnection) ([]byte, time.Duration, error) {
	data, err := json.Marshal(conn)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode connection %s: %w", conn.ConnectionID, err)
	}
	ttl := conn.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		ttl = time.Second
	}
	return data, ttl, nil
}

func (r *RedisRegistry) Put(ctx context.Context, conn models.LiveConnection) error {
	data, ttl, err := r.encode(conn)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, connectionKey(conn.ConnectionID), data, ttl)
		pipe.SAdd(ctx, redisIndexKey, conn.ConnectionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register connection %s: %w", conn.ConnectionID, err)
	}
	return nil
}

// Refresh uses SET XX so a registration pruned by another node stays gone.
func (r *RedisRegistry) Refresh(ctx context.Context, conn models.LiveConnection) (bool, error) {
	data, ttl, err := r.encode(conn)
	if err != nil {
		return false, err
	}
	ok, err := r.client.SetXX(ctx, connectionKey(conn.ConnectionID), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to refresh connection %s: %w", conn.ConnectionID, err)
	}
	return ok, nil
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (*models.LiveConnection, error) {
	data, err := r.client.Get(ctx, connectionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read connection %s: %w", id, err)
	}
	var conn models.LiveConnection
	if err := json.Unmarshal(data, &conn); err != nil {
		return nil, fmt.Errorf("failed to decode connection %s: %w", id, err)
	}
	return &conn, nil
}

func (r *RedisRegistry) List(ctx context.Context) ([]models.LiveConnection, error) {
	ids, err := r.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = connectionKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load connections: %w", err)
	}
	return decodeListed(ids, values), nil
}

// decodeListed pairs index ids with MGET values. Missing or unreadable values
// become stubs with a zero ExpiresAt, which always report Expired.
func decodeListed(ids []string, values []interface{}) []models.LiveConnection {
	out := make([]models.LiveConnection, 0, len(ids))
	for i, id := range ids {
		stub := models.LiveConnection{ConnectionID: id}
		if i >= len(values) {
			out = append(out, stub)
			continue
		}
		raw, ok := values[i].(string)
		if !ok {
			out = append(out, stub)
			continue
		}
		var conn models.LiveConnection
		if err := json.Unmarshal([]byte(raw), &conn); err != nil || conn.ConnectionID != id {
			out = append(out, stub)
			continue
		}
		out = append(out, conn)
	}
	sortConnections(out)
	return out
}

func (r *RedisRegistry) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = connectionKey(id)
		members[i] = id
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, redisIndexKey, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove %d connections: %w", len(ids), err)
	}
	return nil
}
