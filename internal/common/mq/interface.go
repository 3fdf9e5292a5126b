package mq

import (
	"context"
	"time"
)

// MessageQueue is the broker abstraction used for verification jobs and
// completion events.
type MessageQueue interface {
	Producer
	Consumer

	// Ping verifies the message queue connection is alive
	Ping(ctx context.Context) error

	// Close closes the message queue connection
	Close() error
}

// Producer defines the interface for publishing messages
type Producer interface {
	Publish(ctx context.Context, topic string, message *Message) error
}

// Consumer defines the interface for consuming messages
type Consumer interface {
	// SubscribeWithOptions registers handler for topic. Consumption begins on Start.
	SubscribeWithOptions(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error

	Start() error

	// Stop waits for in-flight handlers to return.
	Stop() error
}

// Message represents a message in the queue
type Message struct {
	ID         string
	Body       []byte
	Headers    map[string]string
	Timestamp  time.Time
	RetryCount int
	MaxRetries int
}

// HandlerFunc processes one message. A non-nil error triggers a retry.
type HandlerFunc func(ctx context.Context, message *Message) error

// FetchLimiter bounds how many fetched messages may be in flight.
type FetchLimiter interface {
	Acquire(ctx context.Context) error
	Release()
}

// SubscribeOptions defines options for subscribing to a topic
type SubscribeOptions struct {
	// ConsumerGroup defaults to "dailycode-<topic>".
	ConsumerGroup string

	// Concurrency sets the number of concurrent handlers. Default: 1
	Concurrency int

	// MaxRetries before the message is dead-lettered. Default: 3
	MaxRetries int

	// RetryDelay between handler attempts. Default: 1 second
	RetryDelay time.Duration

	DeadLetterTopic string

	// MessageTTL drops messages older than this without handling them.
	MessageTTL time.Duration

	Limiter FetchLimiter
}

// SetDefaults sets default values for subscribe options
func (o *SubscribeOptions) SetDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Second
	}
}

// NewMessage creates a new message with the given body
func NewMessage(id string, body []byte) *Message {
	return &Message{
		ID:         id,
		Body:       body,
		Headers:    make(map[string]string),
		Timestamp:  time.Now(),
		MaxRetries: 3,
	}
}

// SetHeader sets a header value
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// GetHeader retrieves a header value
func (m *Message) GetHeader(key string) (string, bool) {
	if m.Headers == nil {
		return "", false
	}
	val, ok := m.Headers[key]
	return val, ok
}
