package dedup

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "aprsd:dupe:"

// RedisStore shares the dedup window between relay instances running
// behind one address. Fingerprints live only for the window TTL, so
// nothing persists beyond it.
type RedisStore struct {
	client *redis.Client
	window time.Duration
}

func NewRedisStore(host, port, username, password string, window time.Duration) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     host + ":" + port,
		Username: username,
		Password: password,
		DB:       0,
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisStore{client: client, window: window}, nil
}

func (st *RedisStore) Seen(ctx context.Context, fp uint64) (bool, error) {
	key := redisKeyPrefix + strconv.FormatUint(fp, 16)
	set, err := st.client.SetNX(ctx, key, 1, st.window).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

func (st *RedisStore) Size() int {
	return -1
}

func (st *RedisStore) Close() error {
	return st.client.Close()
}
