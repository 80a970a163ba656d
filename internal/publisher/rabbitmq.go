package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"hn_insight/internal/domain"
)

const (
	ActionSummarized = "summarized"

	messageType = "story." + ActionSummarized
)

var ErrNotConfirmed = errors.New("broker did not confirm message")

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// RabbitMQ publishes story events on a durable direct exchange. The channel
// runs in confirm mode, so Publish returns only after the broker has taken
// the message.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger

	mu sync.Mutex
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	logger = logger.With("component", "publisher")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// declareTopology creates the durable exchange and queue and binds them.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// StoryMessage is the event emitted after a story's summary is stored.
type StoryMessage struct {
	Action    string         `json:"action"`
	Story     domain.Story   `json:"story"`
	Summary   domain.Summary `json:"summary"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewStoryMessage builds the summarized event. The summary is carried once,
// at the top level, and the caller's story is not modified.
func NewStoryMessage(story *domain.Story, summary *domain.Summary, now time.Time) StoryMessage {
	msg := StoryMessage{
		Action:    ActionSummarized,
		Story:     *story,
		Summary:   *summary,
		Timestamp: now.UTC(),
	}
	msg.Story.Summary = nil
	return msg
}

func (r *RabbitMQ) Publish(ctx context.Context, story *domain.Story, summary *domain.Summary) error {
	now := time.Now()
	body, err := json.Marshal(NewStoryMessage(story, summary, now))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	r.mu.Lock()
	confirmation, err := r.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         messageType,
			Body:         body,
			Timestamp:    now,
		},
	)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait for confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("story %d: %w", story.ID, ErrNotConfirmed)
	}

	r.logger.Debug("published story event",
		"story_id", story.ID,
		"action", ActionSummarized,
	)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
