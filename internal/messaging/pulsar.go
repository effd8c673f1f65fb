package messaging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/rs/zerolog"
)

// Producer settings tuned for fast failure over throughput.
const (
	pulsarOperationTimeout  = 5 * time.Second
	pulsarBatchingDelay     = 10 * time.Millisecond
	pulsarMaxPendingMessage = 1000
)

type busProducer interface {
	Send(ctx context.Context, msg *pulsar.ProducerMessage) (pulsar.MessageID, error)
	Close()
}

type busClient interface {
	createProducer(topic string) (busProducer, error)
	Close()
}

type dialFunc func(serviceURL string, sendTimeout time.Duration) (busClient, error)

// pulsarResult is satisfied by *pulsar.Error.
type pulsarResult interface {
	error
	Result() pulsar.Result
}

type pulsarClient struct {
	pulsar.Client
	sendTimeout time.Duration
}

func (c pulsarClient) createProducer(topic string) (busProducer, error) {
	return c.CreateProducer(pulsar.ProducerOptions{
		Topic:                   topic,
		SendTimeout:             c.sendTimeout,
		DisableBlockIfQueueFull: true,
		BatchingMaxPublishDelay: pulsarBatchingDelay,
		MaxPendingMessages:      pulsarMaxPendingMessage,
	})
}

func dialPulsar(serviceURL string, sendTimeout time.Duration) (busClient, error) {
	c, err := pulsar.NewClient(pulsar.ClientOptions{
		URL:               serviceURL,
		OperationTimeout:  pulsarOperationTimeout,
		ConnectionTimeout: pulsarOperationTimeout,
	})
	if err != nil {
		return nil, err
	}
	return pulsarClient{Client: c, sendTimeout: sendTimeout}, nil
}

// PulsarPublisher publishes to Apache Pulsar. One client is shared by all
// topics and one producer is kept per topic; both are created on first use.
type PulsarPublisher struct {
	serviceURL string
	retrier    retrier
	dial       dialFunc

	mu        sync.Mutex
	state     State
	client    busClient
	producers sync.Map // topic -> busProducer
}

var _ Publisher = (*PulsarPublisher)(nil)

// NewPulsarPublisher creates a publisher for the broker at serviceURL. No
// connection is attempted until Connect or the first Publish.
func NewPulsarPublisher(serviceURL string, policy RetryPolicy, log zerolog.Logger, metrics *Metrics) *PulsarPublisher {
	return &PulsarPublisher{
		serviceURL: serviceURL,
		retrier:    newRetrier("pulsar", policy, log, metrics),
		dial:       dialPulsar,
	}
}

// Connect creates the shared client ahead of the first Publish.
func (p *PulsarPublisher) Connect(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.clientLocked()
	return err
}

func (p *PulsarPublisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PulsarPublisher) Publish(ctx context.Context, topic string, message any) bool {
	return p.retrier.publish(ctx, p, topic, message)
}

// Close closes every producer and the client. It always succeeds.
func (p *PulsarPublisher) Close() error {
	p.reset()
	return nil
}

func (p *PulsarPublisher) send(ctx context.Context, topic string, payload []byte) error {
	producer, err := p.producer(topic)
	if err != nil {
		return err
	}
	_, err = producer.Send(ctx, &pulsar.ProducerMessage{Payload: payload})
	return err
}

func (p *PulsarPublisher) classify(err error) failureClass {
	var perr pulsarResult
	if errors.As(err, &perr) {
		switch perr.Result() {
		case pulsar.ConnectError, pulsar.NotConnectedError, pulsar.AlreadyClosedError, pulsar.LookupError:
			return classConnection
		case pulsar.BrokerPersistenceError:
			return classOverload
		}
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "bookies") || strings.Contains(msg, "ManagedLedgerException") {
		return classOverload
	}
	return classOther
}

func (p *PulsarPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.producers.Range(func(topic, v any) bool {
		v.(busProducer).Close()
		p.producers.Delete(topic)
		return true
	})
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	if p.state != StateUninitialized {
		p.retrier.log.Info().Str("event", "bus_reset").Send()
	}
	p.state = StateUninitialized
}

func (p *PulsarPublisher) producer(topic string) (busProducer, error) {
	if v, ok := p.producers.Load(topic); ok {
		return v.(busProducer), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.producers.Load(topic); ok {
		return v.(busProducer), nil
	}

	client, err := p.clientLocked()
	if err != nil {
		return nil, err
	}
	producer, err := client.createProducer(topic)
	if err != nil {
		return nil, err
	}
	p.producers.Store(topic, producer)
	p.retrier.log.Info().Str("event", "bus_producer_created").Str("topic", topic).Send()
	return producer, nil
}

// clientLocked must be called with p.mu held.
func (p *PulsarPublisher) clientLocked() (busClient, error) {
	if p.client != nil {
		return p.client, nil
	}

	p.state = StateConnecting
	client, err := p.dial(p.serviceURL, p.retrier.policy.SendTimeout)
	if err != nil {
		p.state = StateFailed
		p.retrier.log.Error().Str("event", "bus_connect_failed").Str("service_url", p.serviceURL).Err(err).Send()
		return nil, err
	}

	p.client = client
	p.state = StateReady
	p.retrier.log.Info().Str("event", "bus_connected").Str("service_url", p.serviceURL).Send()
	return client, nil
}
