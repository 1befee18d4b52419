package preset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey is the hash holding presets, keyed by preset id.
const DefaultRedisKey = "SOUNDBOARD_PRESETS"

// RedisStore keeps presets as JSON values in one Redis hash.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore creates a store on rdb. An empty key uses DefaultRedisKey.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

// DialRedis connects to addr and checks the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Preset, error) {
	objs, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("hgetall %s: %w", s.key, err)
	}
	out := make([]Preset, 0, len(objs))
	for id, v := range objs {
		var p Preset
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			log.Printf("Ignoring corrupt preset %s: %v", id, err)
			continue
		}
		out = append(out, p)
	}
	sortPresets(out)
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Preset, error) {
	v, err := s.rdb.HGet(ctx, s.key, id).Result()
	if errors.Is(err, redis.Nil) {
		return Preset{}, ErrNotFound
	}
	if err != nil {
		return Preset{}, fmt.Errorf("hget %s %s: %w", s.key, id, err)
	}
	var p Preset
	if err := json.Unmarshal([]byte(v), &p); err != nil {
		return Preset{}, fmt.Errorf("unmarshal preset %s: %w", id, err)
	}
	return p, nil
}

func (s *RedisStore) Save(ctx context.Context, p Preset) error {
	if p.ID == "" {
		return errors.New("save preset: missing id")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal preset %s: %w", p.ID, err)
	}
	if err := s.rdb.HSet(ctx, s.key, p.ID, string(b)).Err(); err != nil {
		return fmt.Errorf("hset %s %s: %w", s.key, p.ID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.HDel(ctx, s.key, id).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("hdel %s %s: %w", s.key, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
