// Package notify publishes "pair scored" messages so downstream caches such
// as leaderboards can refresh after a scoring pass.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"

	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/internal/engine"
	"github.com/okian/paddock/pkg/logger"
	"github.com/okian/paddock/pkg/metrics"
)

// Defaults for the Redis publisher.
const (
	DefaultChannel         = "paddock:scores"
	DefaultBreakerFailures = 3
	DefaultBreakerTimeout  = 30 * time.Second
	publishTimeout         = 2 * time.Second
)

// MessageTypePairScored tags messages published after a committed pass.
const MessageTypePairScored = "pair_scored"

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("notifier unavailable")

// Message is the JSON body published per scored pair.
type Message struct {
	Type          string         `json:"type"`
	EventID       string         `json:"event_id"`
	PropType      model.PropType `json:"prop_type"`
	RuleVersion   string         `json:"rule_version"`
	PicksScored   int            `json:"picks_scored"`
	ScoresCreated int            `json:"scores_created"`
	ScoresUpdated int            `json:"scores_updated"`
	TotalPoints   int            `json:"total_points"`
	ScoredAt      time.Time      `json:"scored_at"`
}

// NewMessage builds the message for a pair report.
func NewMessage(r engine.PairReport, at time.Time) Message {
	return Message{
		Type:          MessageTypePairScored,
		EventID:       r.EventID,
		PropType:      r.PropType,
		RuleVersion:   r.RuleVersion,
		PicksScored:   r.Picks,
		ScoresCreated: r.Created,
		ScoresUpdated: r.Updated,
		TotalPoints:   r.TotalPoints,
		ScoredAt:      at,
	}
}

// Config holds Redis connection and breaker settings.
type Config struct {
	Addr            string
	Password        string
	DB              int
	Channel         string
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// RedisPublisher publishes messages to a Redis channel behind a circuit breaker.
type RedisPublisher struct {
	client  redis.Cmdable
	closer  func() error
	channel string
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
	logger  logger.Logger
}

var _ engine.Notifier = (*RedisPublisher)(nil)

// Dial creates a publisher with its own Redis client.
func Dial(cfg Config, opts ...Option) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	p := NewRedisPublisher(client, cfg, opts...)
	p.closer = client.Close
	return p
}

// NewRedisPublisher wraps an existing client. The caller keeps ownership of it.
func NewRedisPublisher(client redis.Cmdable, cfg Config, opts ...Option) *RedisPublisher {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = DefaultBreakerFailures
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = DefaultBreakerTimeout
	}

	p := &RedisPublisher{
		client:  client,
		closer:  func() error { return nil },
		channel: cfg.Channel,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.Get().Named("notify"),
	}
	if p.channel == "" {
		p.channel = DefaultChannel
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-notify",
		Timeout: timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn(context.Background(), "breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PairScored implements engine.Notifier.
func (p *RedisPublisher) PairScored(ctx context.Context, r engine.PairReport) error {
	body, err := json.Marshal(NewMessage(r, p.now()))
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.client.Publish(ctx, p.channel, string(body)).Err()
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordNotification("dropped")
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case err != nil:
		metrics.RecordNotification("failed")
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	metrics.RecordNotification("sent")
	return nil
}

// State reports the breaker state: closed, half-open or open.
func (p *RedisPublisher) State() string {
	return p.breaker.State().String()
}

// Ping checks the Redis connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the client if the publisher created it.
func (p *RedisPublisher) Close() error {
	return p.closer()
}
