package kafka

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Sira-Clinica/backend/internal/config"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")

// Message is a consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message.  A nil return commits it.
type Handler func(ctx context.Context, msg *Message) error

// Publisher is the dead-letter sink.  *Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// Recorder counts handled messages.  It is satisfied by
// *prometheus.TriageMetrics.
type Recorder interface {
	RecordMessage(topic string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordMessage(string, error) {}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
	DeadLetterTopic string
	// Retryable reports whether a handler error is worth another attempt.
	// Nil retries everything.
	Retryable func(error) bool
}

// ConsumerConfig holds configuration for the Consumer.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	Topics          []string
	AutoOffsetReset string
	SessionTimeout  time.Duration
	MaxWait         time.Duration
	Security        SecurityConfig
	RetryConfig     RetryConfig
}

// ConsumerConfigFrom derives the consumer settings for the request topic.
func ConsumerConfigFrom(cfg config.KafkaConfig) ConsumerConfig {
	return ConsumerConfig{
		Brokers:         cfg.Brokers,
		GroupID:         cfg.GroupID,
		Topics:          []string{cfg.RequestTopic},
		AutoOffsetReset: cfg.AutoOffsetReset,
		Security:        securityFrom(cfg),
		RetryConfig: RetryConfig{
			MaxRetries:      cfg.MaxRetries,
			RetryBackoff:    cfg.RetryBackoff,
			DeadLetterTopic: cfg.DeadLetterTopic,
		},
	}
}

// ConsumerMetrics holds consumer counters.
type ConsumerMetrics struct {
	MessagesConsumed     atomic.Int64
	MessagesProcessed    atomic.Int64
	MessagesFailed       atomic.Int64
	MessagesRetried      atomic.Int64
	MessagesDeadLettered atomic.Int64
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a consumer group and dispatches each message to the handler
// of its topic.  Messages are handled one at a time per consumer; failed
// messages are retried with exponential backoff, then dead-lettered and
// committed so a poison message never blocks the partition.  When the
// dead-letter publish keeps failing the loop stops with the message
// uncommitted.
type Consumer struct {
	reader ReaderInterface
	config ConsumerConfig
	logger logging.Logger
	dlq    Publisher
	rec    Recorder

	handlers map[string]Handler
	mu       sync.RWMutex

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	metrics *ConsumerMetrics
}

// ConsumerOption configures NewConsumer.
type ConsumerOption func(*Consumer)

// WithDeadLetter sets the publisher for exhausted messages.
func WithDeadLetter(p Publisher) ConsumerOption {
	return func(c *Consumer) { c.dlq = p }
}

// WithRecorder counts handled messages.
func WithRecorder(r Recorder) ConsumerOption {
	return func(c *Consumer) { c.rec = r }
}

// NewConsumer creates a Consumer backed by a kafka.Reader.
func NewConsumer(cfg ConsumerConfig, logger logging.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}

	mech, err := cfg.Security.saslMechanism()
	if err != nil {
		return nil, err
	}
	tlsCfg, err := cfg.Security.tlsConfig()
	if err != nil {
		return nil, err
	}

	readerCfg := kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    cfg.Topics,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024,
		MaxWait:        cfg.MaxWait,
		SessionTimeout: cfg.SessionTimeout,
		StartOffset:    kafka.FirstOffset,
		Dialer: &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			SASLMechanism: mech,
			TLS:           tlsCfg,
		},
	}
	if cfg.AutoOffsetReset == "latest" {
		readerCfg.StartOffset = kafka.LastOffset
	}

	return newConsumer(kafka.NewReader(readerCfg), cfg, logger, opts...), nil
}

func newConsumer(r ReaderInterface, cfg ConsumerConfig, logger logging.Logger, opts ...ConsumerOption) *Consumer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	c := &Consumer{
		reader:   r,
		config:   cfg,
		logger:   logger.Named("kafka-consumer"),
		rec:      nopRecorder{},
		handlers: make(map[string]Handler),
		metrics:  &ConsumerMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers handler for topic.
func (c *Consumer) Subscribe(topic string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("subscribed to topic", logging.String("topic", topic))
}

// Start launches the consume loop.  It returns immediately.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("kafka consumer started",
		logging.String("group", c.config.GroupID),
		logging.Any("topics", c.config.Topics))
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch message failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		c.metrics.MessagesConsumed.Add(1)

		msg := &Message{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Key:       m.Key,
			Value:     m.Value,
			Timestamp: m.Time,
			Headers:   make(map[string]string, len(m.Headers)),
		}
		for _, h := range m.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}

		c.mu.RLock()
		handler, ok := c.handlers[m.Topic]
		c.mu.RUnlock()

		if !ok {
			c.logger.Warn("no handler for topic", logging.String("topic", m.Topic))
		} else if commit, err := c.processMessage(ctx, msg, handler); err != nil {
			if ctx.Err() != nil {
				// Shutdown mid-retry: leave uncommitted for redelivery.
				return
			}
			c.metrics.MessagesFailed.Add(1)
			if !commit {
				// Committing a later offset would skip this message too, so
				// the loop stops and the group redelivers it after restart.
				c.logger.Error("stopping consumer, message left uncommitted",
					logging.String("topic", m.Topic),
					logging.Int("partition", m.Partition),
					logging.Int64("offset", m.Offset))
				return
			}
		} else {
			c.metrics.MessagesProcessed.Add(1)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed",
				logging.String("topic", m.Topic),
				logging.Int64("offset", m.Offset),
				logging.Err(err))
		}
	}
}

// retryPolicy is the resolved RetryConfig schedule.
type retryPolicy struct {
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
}

func (rc RetryConfig) policy() retryPolicy {
	p := retryPolicy{maxRetries: rc.MaxRetries, backoff: rc.RetryBackoff, maxBackoff: rc.MaxRetryBackoff}
	if p.maxRetries == 0 {
		p.maxRetries = 3
	}
	if p.backoff == 0 {
		p.backoff = time.Second
	}
	if p.maxBackoff == 0 {
		p.maxBackoff = 30 * time.Second
	}
	return p
}

// run calls fn, backing off between calls while retry allows another attempt
// and retries remain.  It returns the number of calls and the last error.
func (p retryPolicy) run(ctx context.Context, fn func() error, retry func(error) bool, onRetry func()) (int, error) {
	backoff := p.backoff
	attempts := 1
	err := fn()
	for err != nil && attempts <= p.maxRetries && (retry == nil || retry(err)) {
		if onRetry != nil {
			onRetry()
		}
		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-time.After(backoff):
		}
		attempts++
		err = fn()
		backoff *= 2
		if backoff > p.maxBackoff {
			backoff = p.maxBackoff
		}
	}
	return attempts, err
}

// processMessage runs handler with retries.  It returns the last handler
// error and whether the offset may be committed: true once the message
// succeeded, was dead-lettered or has nowhere to go, false when the
// dead-letter publish itself kept failing.
func (c *Consumer) processMessage(ctx context.Context, msg *Message, handler Handler) (bool, error) {
	rc := c.config.RetryConfig
	policy := rc.policy()

	attempts, err := policy.run(ctx,
		func() error { return handler(ctx, msg) },
		rc.Retryable,
		func() { c.metrics.MessagesRetried.Add(1) })
	if err != nil && ctx.Err() != nil {
		return false, err
	}
	c.rec.RecordMessage(msg.Topic, err)
	if err == nil {
		return true, nil
	}

	c.logger.Error("message processing failed",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Int("attempts", attempts),
		logging.String(logging.FieldErrorCode, string(errors.GetCode(err))),
		logging.Err(err))

	if c.dlq != nil && rc.DeadLetterTopic != "" {
		headers := make(map[string]string, len(msg.Headers)+4)
		for k, v := range msg.Headers {
			headers[k] = v
		}
		headers[HeaderOriginalTopic] = msg.Topic
		headers[HeaderErrorCode] = string(errors.GetCode(err))
		headers[HeaderErrorMessage] = err.Error()
		headers[HeaderAttempts] = strconv.Itoa(attempts)

		dlMsg := &ProducerMessage{Topic: rc.DeadLetterTopic, Key: msg.Key, Value: msg.Value, Headers: headers}
		dlAttempts, dlErr := policy.run(ctx, func() error { return c.dlq.Publish(ctx, dlMsg) }, nil, nil)
		if dlErr != nil {
			c.logger.Error("dead letter publish failed",
				logging.String("topic", rc.DeadLetterTopic),
				logging.Int("attempts", dlAttempts),
				logging.Err(dlErr))
			return false, err
		}
		c.metrics.MessagesDeadLettered.Add(1)
	}
	return true, err
}

// Metrics returns a snapshot of the consumer counters.
func (c *Consumer) Metrics() map[string]int64 {
	return map[string]int64{
		"consumed":      c.metrics.MessagesConsumed.Load(),
		"processed":     c.metrics.MessagesProcessed.Load(),
		"failed":        c.metrics.MessagesFailed.Load(),
		"retried":       c.metrics.MessagesRetried.Load(),
		"dead_lettered": c.metrics.MessagesDeadLettered.Load(),
	}
}

// Close stops the loop, waits for the in-flight message and closes the
// reader.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return c.reader.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	err := c.reader.Close()
	c.logger.Info("kafka consumer closed", logging.Int64("consumed", c.metrics.MessagesConsumed.Load()))
	return err
}

// ValidateConsumerConfig validates configuration.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeConfiguration, "kafka brokers required")
	}
	if cfg.GroupID == "" {
		return errors.New(errors.ErrCodeConfiguration, "kafka group id required")
	}
	if len(cfg.Topics) == 0 {
		return errors.New(errors.ErrCodeConfiguration, "kafka topics required")
	}
	if cfg.AutoOffsetReset != "" && cfg.AutoOffsetReset != "earliest" && cfg.AutoOffsetReset != "latest" {
		return errors.New(errors.ErrCodeConfiguration, "invalid auto offset reset").WithDetail(cfg.AutoOffsetReset)
	}
	if cfg.RetryConfig.MaxRetries < 0 {
		return errors.New(errors.ErrCodeConfiguration, "kafka max retries must be >= 0")
	}
	return cfg.Security.validate()
}
