package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/homepage-api/internal/config"
)

// NewUniversalRedisClient подключается к Redis в режиме single, sentinel или cluster
// и проверяет соединение через PING.
func NewUniversalRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	mode, options, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	if mode == "cluster" {
		// UniversalClient выбирает кластер только при нескольких адресах, одного seed-узла тоже достаточно
		client = redis.NewClusterClient(options.Cluster())
	} else {
		client = redis.NewUniversalClient(options)
	}

	pingCtx, cancel := context.WithTimeout(ctx, options.DialTimeout+time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis (mode: %s, addrs: %v): %w", mode, options.Addrs, err)
	}
	return client, nil
}

// redisOptions проверяет конфигурацию и собирает опции клиента
func redisOptions(cfg config.RedisConfig) (string, *redis.UniversalOptions, error) {
	addrs := cfg.Addrs
	if len(addrs) == 0 && cfg.Addr != "" {
		addrs = []string{cfg.Addr}
	}
	if len(addrs) == 0 {
		return "", nil, errors.New("redis configuration error: addrs or addr must be provided")
	}

	mode := cfg.Mode
	if mode == "" {
		mode = "single"
	}

	options := &redis.UniversalOptions{
		Addrs:       addrs,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
		MaxRetries:  cfg.MaxRetries,
	}
	if cfg.DialTimeout > 0 {
		options.DialTimeout = time.Duration(cfg.DialTimeout) * time.Second
	}
	if cfg.MinRetryBackoff > 0 {
		options.MinRetryBackoff = time.Duration(cfg.MinRetryBackoff) * time.Millisecond
	}
	if cfg.MaxRetryBackoff > 0 {
		options.MaxRetryBackoff = time.Duration(cfg.MaxRetryBackoff) * time.Millisecond
	}

	switch mode {
	case "single":
		options.Addrs = addrs[:1]
	case "sentinel":
		if cfg.MasterName == "" {
			return "", nil, errors.New("redis sentinel mode requires master_name")
		}
		options.MasterName = cfg.MasterName
	case "cluster":
		// в кластере нет выбора БД
		options.DB = 0
	default:
		return "", nil, fmt.Errorf("unsupported redis mode: %s", mode)
	}
	return mode, options, nil
}
