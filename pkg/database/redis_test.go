package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/homepage-api/internal/config"
)

func TestNewUniversalRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.RedisConfig
		wantErr bool
	}{
		{name: "single by addr", cfg: config.RedisConfig{Mode: "single", Addr: mr.Addr()}},
		{name: "default mode", cfg: config.RedisConfig{Addrs: []string{mr.Addr()}}},
		{name: "no address", cfg: config.RedisConfig{Mode: "single"}, wantErr: true},
		{name: "sentinel without master", cfg: config.RedisConfig{Mode: "sentinel", Addr: mr.Addr()}, wantErr: true},
		{name: "unknown mode", cfg: config.RedisConfig{Mode: "ring", Addr: mr.Addr()}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewUniversalRedisClient(context.Background(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = client.Close() })
			assert.NoError(t, client.Ping(context.Background()).Err())
		})
	}
}

func TestRedisOptions(t *testing.T) {
	mode, opts, err := redisOptions(config.RedisConfig{Addr: "localhost:6379", DB: 2, MinRetryBackoff: 8})
	require.NoError(t, err)
	assert.Equal(t, "single", mode)
	assert.Equal(t, []string{"localhost:6379"}, opts.Addrs)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)
	assert.Equal(t, 8*time.Millisecond, opts.MinRetryBackoff)

	// single берет только первый адрес
	_, opts, err = redisOptions(config.RedisConfig{Mode: "single", Addrs: []string{"a:1", "b:2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1"}, opts.Addrs)

	_, opts, err = redisOptions(config.RedisConfig{Mode: "sentinel", Addrs: []string{"s1:26379", "s2:26379"}, MasterName: "mymaster", DialTimeout: 1})
	require.NoError(t, err)
	assert.Equal(t, "mymaster", opts.MasterName)
	assert.Equal(t, time.Second, opts.DialTimeout)

	mode, opts, err = redisOptions(config.RedisConfig{Mode: "cluster", Addr: "c1:7000", DB: 3})
	require.NoError(t, err)
	assert.Equal(t, "cluster", mode)
	assert.Zero(t, opts.DB)
}
