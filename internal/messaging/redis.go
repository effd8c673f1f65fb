package messaging

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// streamPayloadField is the stream entry field holding the JSON message.
const streamPayloadField = "payload"

// RedisStreamPublisher publishes to Redis Streams; the topic is the stream key.
type RedisStreamPublisher struct {
	opts    *redis.Options
	retrier retrier

	mu     sync.Mutex
	state  State
	client *redis.Client
}

var _ Publisher = (*RedisStreamPublisher)(nil)

// NewRedisStreamPublisher creates a publisher for the Redis server described
// by opts. The client is created on first use.
func NewRedisStreamPublisher(opts *redis.Options, policy RetryPolicy, log zerolog.Logger, metrics *Metrics) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		opts:    opts,
		retrier: newRetrier("redis", policy, log, metrics),
	}
}

// Connect creates the client and checks the server answers.
func (p *RedisStreamPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	client := p.clientLocked()
	ctx, cancel := context.WithTimeout(ctx, p.retrier.policy.SendTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		p.state = StateFailed
		p.retrier.log.Error().Str("event", "bus_connect_failed").Str("addr", p.opts.Addr).Err(err).Send()
		return err
	}
	return nil
}

func (p *RedisStreamPublisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, topic string, message any) bool {
	return p.retrier.publish(ctx, p, topic, message)
}

// Close closes the client. It always succeeds.
func (p *RedisStreamPublisher) Close() error {
	p.reset()
	return nil
}

func (p *RedisStreamPublisher) send(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	client := p.clientLocked()
	p.mu.Unlock()

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{streamPayloadField: payload},
	}).Err()
}

func (p *RedisStreamPublisher) classify(err error) failureClass {
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return classConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return classConnection
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "OOM ") || strings.HasPrefix(msg, "BUSY ") {
		return classOverload
	}
	return classOther
}

func (p *RedisStreamPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		_ = p.client.Close()
		p.client = nil
		p.retrier.log.Info().Str("event", "bus_reset").Send()
	}
	p.state = StateUninitialized
}

// clientLocked must be called with p.mu held.
func (p *RedisStreamPublisher) clientLocked() *redis.Client {
	if p.client == nil {
		p.state = StateConnecting
		p.client = redis.NewClient(p.opts)
		p.state = StateReady
		p.retrier.log.Info().Str("event", "bus_connected").Str("addr", p.opts.Addr).Send()
	}
	return p.client
}
