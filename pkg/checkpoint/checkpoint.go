package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "graph:checkpoint:"

// RedisCheckpointer 将图状态以 JSON 形式写入 redis，按对话线程隔离
type RedisCheckpointer struct {
	client redis.UniversalClient
}

func NewRedisCheckpointer(client redis.UniversalClient) *RedisCheckpointer {
	return &RedisCheckpointer{client: client}
}

// Get 返回线程的最新快照，不存在时返回 nil
func (c *RedisCheckpointer) Get(ctx context.Context, threadID string, state interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+threadID).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load checkpoint %s: %w", threadID, err)
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return false, fmt.Errorf("decode checkpoint %s: %w", threadID, err)
	}
	return true, nil
}

// Put 覆盖写入线程快照，不设置过期时间
func (c *RedisCheckpointer) Put(ctx context.Context, threadID string, state interface{}) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", threadID, err)
	}
	if err := c.client.Set(ctx, keyPrefix+threadID, raw, 0).Err(); err != nil {
		return fmt.Errorf("store checkpoint %s: %w", threadID, err)
	}
	return nil
}
