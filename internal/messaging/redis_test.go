package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisPublisher(t *testing.T, addr string, policy RetryPolicy) (*RedisStreamPublisher, *[]time.Duration) {
	t.Helper()
	pub := NewRedisStreamPublisher(&redis.Options{Addr: addr, MaxRetries: -1}, policy, zerolog.Nop(), nil)
	sleeps := &[]time.Duration{}
	pub.retrier.notify = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	t.Cleanup(func() { _ = pub.Close() })
	return pub, sleeps
}

func TestRedisStreamPublisher_Publish(t *testing.T) {
	srv := miniredis.RunT(t)
	pub, sleeps := newRedisPublisher(t, srv.Addr(), DefaultRetryPolicy())
	ctx := context.Background()

	require.NoError(t, pub.Connect(ctx))
	assert.Equal(t, StateReady, pub.State())

	event := map[string]any{"event_type": "image_created", "image": map[string]any{"id": "a"}}
	require.True(t, pub.Publish(ctx, "images", event))
	require.True(t, pub.Publish(ctx, "images", event))
	assert.Empty(t, *sleeps)

	reader := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer reader.Close()

	entries, err := reader.XRange(ctx, "images", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &decoded))
	assert.Equal(t, "image_created", decoded["event_type"])
}

func TestRedisStreamPublisher_ServerDown(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	pub, sleeps := newRedisPublisher(t, addr, RetryPolicy{MaxRetries: 3, Delay: time.Millisecond, SendTimeout: time.Second})

	assert.Error(t, pub.Connect(context.Background()))
	assert.Equal(t, StateFailed, pub.State())

	assert.False(t, pub.Publish(context.Background(), "images", "x"))
	assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}, *sleeps)
	assert.Equal(t, StateReady, pub.State(), "client rebuilt for the last attempt")
}

func TestRedisStreamPublisher_ReconnectsAfterRestart(t *testing.T) {
	srv := miniredis.RunT(t)
	pub, sleeps := newRedisPublisher(t, srv.Addr(), RetryPolicy{MaxRetries: 3, Delay: time.Millisecond, SendTimeout: time.Second})
	ctx := context.Background()

	require.True(t, pub.Publish(ctx, "images", "before"))

	srv.Close()
	pub.retrier.notify = func(d time.Duration) {
		*sleeps = append(*sleeps, d)
		if len(*sleeps) == 1 {
			require.NoError(t, srv.Restart())
		}
	}

	assert.True(t, pub.Publish(ctx, "images", "after"))
	assert.Len(t, *sleeps, 1)

	assert.Equal(t, 2, streamLen(t, srv.Addr(), "images"), "miniredis keeps data across a restart")
}

func TestRedisStreamPublisher_CloseIsReusable(t *testing.T) {
	srv := miniredis.RunT(t)
	pub, _ := newRedisPublisher(t, srv.Addr(), DefaultRetryPolicy())
	ctx := context.Background()

	require.True(t, pub.Publish(ctx, "images", 1))
	require.NoError(t, pub.Close())
	assert.Equal(t, StateUninitialized, pub.State())
	require.NoError(t, pub.Close())

	require.True(t, pub.Publish(ctx, "images", 2))
	assert.Equal(t, 2, streamLen(t, srv.Addr(), "images"))
}

func streamLen(t *testing.T, addr, stream string) int {
	t.Helper()
	reader := redis.NewClient(&redis.Options{Addr: addr})
	defer reader.Close()

	entries, err := reader.XRange(context.Background(), stream, "-", "+").Result()
	require.NoError(t, err)
	return len(entries)
}

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "dial tcp: connection refused" }
func (fakeNetErr) Timeout() bool   { return false }
func (fakeNetErr) Temporary() bool { return false }

func TestRedisStreamPublisher_Classify(t *testing.T) {
	p := &RedisStreamPublisher{}
	tests := []struct {
		err  error
		want failureClass
	}{
		{redis.ErrClosed, classConnection},
		{io.EOF, classConnection},
		{fakeNetErr{}, classConnection},
		{errors.New("OOM command not allowed when used memory > 'maxmemory'"), classOverload},
		{errors.New("BUSY Redis is busy running a script"), classOverload},
		{errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"), classOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.classify(tt.err), tt.err.Error())
	}
}
