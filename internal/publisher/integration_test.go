//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"hn_insight/internal/domain"
	"hn_insight/testdata/utils"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func testStory() (*domain.Story, *domain.Summary) {
	now := time.Now().Truncate(time.Millisecond)
	sum := &domain.Summary{
		StoryID:     123,
		Technical:   "- fast",
		TechnicalZh: "- 快",
		Layman:      "It is fast.",
		LaymanZh:    "它很快。",
		Comments:    "Readers agree.",
		CommentsZh:  "读者同意。",
		Keywords:    []string{"go", "rabbitmq"},
		Sentiment:   domain.Sentiment{Constructive: 70, Technical: 90, Controversial: 10},
	}
	story := &domain.Story{
		ID:           123,
		Title:        "Show HN: Test",
		URL:          utils.Ptr("https://example.com/article"),
		Author:       utils.Ptr("pg"),
		PostedAt:     now,
		Points:       42,
		NumComments:  7,
		CommentsDump: utils.Ptr("[Comment 1]: hi\n"),
		Domain:       "example.com",
		Type:         "story",
		Status:       domain.StoryStatusCompleted,
		Summary:      sum,
	}
	return story, sum
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange",
		RoutingKey: "test-routing-key",
		QueueName:  "test-queue",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(pub)

	err = pub.Close()
	s.NoError(err)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishSummarized() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-summarized",
		RoutingKey: "test-routing-key-summarized",
		QueueName:  "test-queue-summarized",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	story, sum := testStory()
	err = pub.Publish(s.ctx, story, sum)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal("application/json", msg.ContentType)
	s.Equal("story.summarized", msg.Type)

	var received StoryMessage
	err = json.Unmarshal(msg.Body, &received)
	s.Require().NoError(err)
	s.Equal(ActionSummarized, received.Action)
	s.Equal(int64(123), received.Story.ID)
	s.Equal("Show HN: Test", received.Story.Title)
	s.Equal("example.com", received.Story.Domain)
	s.Nil(received.Story.Summary)
	s.Nil(received.Story.CommentsDump)
	s.Equal([]string{"go", "rabbitmq"}, received.Summary.Keywords)
	s.Equal(90, received.Summary.Sentiment.Technical)
	s.Equal("它很快。", received.Summary.LaymanZh)
	s.False(received.Timestamp.IsZero())

	// the caller's story is left untouched
	s.NotNil(story.Summary)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_MessagePersistence() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-persist",
		RoutingKey: "test-routing-key-persist",
		QueueName:  "test-queue-persist",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	story, sum := testStory()
	err = pub.Publish(s.ctx, story, sum)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.Require().NotNil(msg)

	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
