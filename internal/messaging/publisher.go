// Package messaging publishes domain events to a message bus. Publishing is
// best-effort: failures are retried under a RetryPolicy, logged, counted and
// finally reported as false, never as an error.
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// Publisher sends messages to named topics.
type Publisher interface {
	// Publish serializes message as JSON and sends it to topic, retrying
	// according to the publisher's policy. It reports whether the bus
	// acknowledged the message.
	Publish(ctx context.Context, topic string, message any) bool
	// Close releases every connection. The publisher reconnects lazily if it
	// is used again.
	Close() error
}

// RetryPolicy bounds how hard Publish tries.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Delay is the pause between attempts. Overload failures wait twice as long.
	Delay time.Duration
	// SendTimeout bounds each attempt.
	SendTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Delay: time.Second, SendTimeout: 3 * time.Second}
}

// State is the lifecycle of a publisher's shared connection.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

type failureClass int

const (
	classOther failureClass = iota
	classConnection
	classOverload
)

func (c failureClass) String() string {
	switch c {
	case classConnection:
		return "connection"
	case classOverload:
		return "overload"
	default:
		return "other"
	}
}

// transport is the bus-specific half of a publisher.
type transport interface {
	send(ctx context.Context, topic string, payload []byte) error
	classify(err error) failureClass
	reset()
}

// retrier drives a transport through the retry policy.
type retrier struct {
	driver  string
	policy  RetryPolicy
	log     zerolog.Logger
	metrics *Metrics
	// notify, when set, observes every wait before a retry.
	notify func(time.Duration)
}

func newRetrier(driver string, policy RetryPolicy, log zerolog.Logger, metrics *Metrics) retrier {
	return retrier{
		driver:  driver,
		policy:  policy,
		log:     log.With().Str("component", "messaging").Str("driver", driver).Logger(),
		metrics: metrics,
	}
}

// classBackOff waits a constant delay between attempts, doubled after an
// overload failure.
type classBackOff struct {
	base *backoff.ConstantBackOff
	last failureClass
}

func newClassBackOff(delay time.Duration) *classBackOff {
	return &classBackOff{base: backoff.NewConstantBackOff(delay)}
}

func (b *classBackOff) NextBackOff() time.Duration {
	d := b.base.NextBackOff()
	if b.last == classOverload {
		d *= 2
	}
	return d
}

func (b *classBackOff) Reset() {
	b.base.Reset()
	b.last = classOther
}

func (r retrier) publish(ctx context.Context, t transport, topic string, message any) bool {
	payload, err := json.Marshal(message)
	if err != nil {
		r.log.Error().Str("event", "publish_failed").Str("topic", topic).Err(err).Msg("message is not serializable")
		r.metrics.published("marshal_error")
		return false
	}

	// Attempts outlive the caller's cancellation but not the send timeout.
	ctx = context.WithoutCancel(ctx)
	attempts := r.policy.MaxRetries + 1
	bo := newClassBackOff(r.policy.Delay)
	attempt := 0

	operation := func() (struct{}, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, r.policy.SendTimeout)
		err := t.send(attemptCtx, topic, payload)
		cancel()
		if err == nil {
			return struct{}{}, nil
		}

		class := t.classify(err)
		bo.last = class
		r.metrics.attempted(class)
		r.log.Warn().
			Str("event", "publish_attempt_failed").
			Str("topic", topic).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Str("class", class.String()).
			Err(err).
			Send()

		if class == classConnection && attempt < attempts {
			t.reset()
		}
		return struct{}{}, err
	}

	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(_ error, wait time.Duration) {
			if r.notify != nil {
				r.notify(wait)
			}
		}),
	)
	if err != nil {
		r.log.Error().
			Str("event", "publish_failed").
			Str("topic", topic).
			Int("attempts", attempts).
			Err(err).
			Msg("giving up")
		r.metrics.published("failure")
		return false
	}

	r.log.Debug().
		Str("event", "publish_success").
		Str("topic", topic).
		Int("attempt", attempt).
		Int("size_bytes", len(payload)).
		Send()
	r.metrics.published("success")
	return true
}
