// Package push delivers alerts to mobile devices by publishing them to a
// Pub/Sub topic consumed by the push gateway.
package push

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/breatheroute/aqiguard/internal/notification"
)

// Publisher publishes one message and waits for the server ID.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Payload is the message body read by the push gateway.
type Payload struct {
	Token     string `json:"token"`
	SubjectID string `json:"subject_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Tier      string `json:"tier"`
}

// Channel publishes push alerts.
type Channel struct {
	publisher Publisher
	logger    zerolog.Logger
}

// NewChannel creates a push channel over publisher.
func NewChannel(publisher Publisher, logger zerolog.Logger) *Channel {
	return &Channel{publisher: publisher, logger: logger}
}

// Method returns the delivery method.
func (c *Channel) Method() notification.Method {
	return notification.MethodPush
}

// Send publishes msg for the device token in msg.Destination.
func (c *Channel) Send(ctx context.Context, msg notification.Message) error {
	data, err := json.Marshal(Payload{
		Token:     msg.Destination,
		SubjectID: msg.SubjectID,
		Title:     msg.Subject,
		Body:      msg.Body,
		Tier:      string(msg.Tier),
	})
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	id, err := c.publisher.Publish(ctx, data, map[string]string{
		"type": "aqi_alert",
		"tier": string(msg.Tier),
	})
	if err != nil {
		return fmt.Errorf("publish push alert: %w", err)
	}

	c.logger.Debug().Str("subject_id", msg.SubjectID).Str("pubsub_id", id).Msg("push alert published")
	return nil
}

// TopicPublisher publishes to a Pub/Sub topic.
type TopicPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// NewTopicPublisher creates a Pub/Sub client for projectID and a publisher
// for topic.
func NewTopicPublisher(ctx context.Context, projectID, topic string) (*TopicPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &TopicPublisher{client: client, publisher: client.Publisher(topic)}, nil
}

// Publish sends one message and blocks until it is acknowledged.
func (p *TopicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	result := p.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return result.Get(ctx)
}

// Close flushes pending messages and closes the client.
func (p *TopicPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

var _ notification.Channel = (*Channel)(nil)
