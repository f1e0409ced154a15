package progress

import (
	"context"
	"time"

	"rapture/utils"

	"github.com/redis/go-redis/v9"
)

// RedisSet keeps completed markers in a Redis set so several hosts can share
// one resume state.
type RedisSet struct {
	client *redis.Client
	key    string
}

var _ MarkerSet = (*RedisSet)(nil)

func NewRedisSet(redisURL, key string) (*RedisSet, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, utils.ErrorWithTrace(err)
	}
	return &RedisSet{client: client, key: key}, nil
}

func (r *RedisSet) Has(ctx context.Context, id string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, id).Result()
	if err != nil {
		return false, utils.ErrorWithTrace(err)
	}
	return ok, nil
}

func (r *RedisSet) Add(ctx context.Context, id string) error {
	if err := r.client.SAdd(ctx, r.key, id).Err(); err != nil {
		return utils.ErrorWithTrace(err)
	}
	return nil
}

func (r *RedisSet) Close() error {
	return r.client.Close()
}
