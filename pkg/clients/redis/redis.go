package redis

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisSingleClient 创建单节点模式客户端对象
func NewRedisSingleClient(cfg *RedisConfig) (*redis.Client, error) {
	return newRedisSingleApi(cfg)
}

func CloseRedisSingle(r *redis.Client) {
	if r != nil {
		if err := r.Close(); err != nil {
			log.Println("redis close error:", err.Error())
		}
	}
}

// 单节点模式
func newRedisSingleApi(cfg *RedisConfig) (*redis.Client, error) {
	cfg.DefaultConfig()
	r := redis.NewClient(&redis.Options{
		Addr:         cfg.Host,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  time.Second * time.Duration(cfg.DialTimeout),
		ReadTimeout:  time.Second * time.Duration(cfg.ReadTimeout),
		WriteTimeout: time.Second * time.Duration(cfg.WriteTimeout),
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxConnAge:   time.Minute * time.Duration(cfg.MaxConnAge),
		PoolTimeout:  time.Second * time.Duration(cfg.PoolTimeout),
		IdleTimeout:  time.Second * time.Duration(cfg.IdleTimeout),
		DB:           cfg.Db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return r, nil
}
