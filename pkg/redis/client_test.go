package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendeo/vendeo-backend/pkg/config"
)

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMemoryCmdable()}

	ok, err := client.SetNX(ctx, "vd:lock:cron", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.SetNX(ctx, "vd:lock:cron", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	owner, err := client.Get(ctx, "vd:lock:cron")
	require.NoError(t, err)
	assert.Equal(t, "owner-a", owner)

	require.NoError(t, client.Del(ctx, "vd:lock:cron"))
	_, err = client.Get(ctx, "vd:lock:cron")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestDelIfEqualsOnlyRemovesMatchingValue(t *testing.T) {
	ctx := context.Background()
	store := newMemoryCmdable()
	client := &Client{store: store}
	require.NoError(t, client.Set(ctx, "k", "owner-a", 0))

	removed, err := client.DelIfEquals(ctx, "k", "owner-b")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, "owner-a", store.data["k"])

	removed, err = client.DelIfEquals(ctx, "k", "owner-a")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NotContains(t, store.data, "k")
}

func TestUninitializedClient(t *testing.T) {
	ctx := context.Background()
	client := &Client{}
	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	assert.ErrorIs(t, client.Set(ctx, "k", "v", 0), errNotInitialized)
	_, err := client.DelIfEquals(ctx, "k", "v")
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeys(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "vd:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "vd:lock:cron-worker:prod", client.LockKey("cron-worker", "prod"))
	assert.Equal(t, "vd:lock:cron-worker", client.LockKey("cron-worker", " "))
	assert.Equal(t, "vd", Key())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7, DB: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB, "url database wins")
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 2, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, time.Second, opts.DialTimeout)
}

type memoryCmdable struct {
	data map[string]string
}

func newMemoryCmdable() *memoryCmdable {
	return &memoryCmdable{data: map[string]string{}}
}

func (m *memoryCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memoryCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// The only script the client runs is compareAndDelete, so the scripting
// surface emulates it directly.
func (m *memoryCmdable) EvalSha(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	if len(keys) == 1 && len(args) == 1 && m.data[keys[0]] == fmt.Sprint(args[0]) {
		delete(m.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (m *memoryCmdable) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, "", keys, args...)
}

func (m *memoryCmdable) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return m.Eval(ctx, script, keys, args...)
}

func (m *memoryCmdable) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, sha, keys, args...)
}

func (m *memoryCmdable) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (m *memoryCmdable) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}
