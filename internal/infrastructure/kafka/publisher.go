package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"StoryStream/internal/config"
	"StoryStream/internal/domain"
	"StoryStream/internal/ports"
)

// Publisher writes every inserted record to a Kafka topic, one message per record.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

var _ ports.DeltaSink = (*Publisher)(nil)

// NewPublisher connects a synchronous producer to the configured brokers.
// Every broker round trip is bounded by timeout so a slow cluster cannot hold
// an ingestion run.
func NewPublisher(cfg config.KafkaConfig, timeout time.Duration) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newSaramaConfig(timeout))
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewPublisherWithProducer(producer, cfg.Topic), nil
}

func newSaramaConfig(timeout time.Duration) *sarama.Config {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := sarama.NewConfig()
	c.Version = sarama.V3_6_0_0
	c.ClientID = "storystream"
	c.Net.DialTimeout = timeout
	c.Net.ReadTimeout = timeout
	c.Net.WriteTimeout = timeout
	c.Metadata.Retry.Max = 1
	c.Metadata.Timeout = timeout
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Timeout = timeout
	c.Producer.Retry.Max = 1
	c.Producer.Return.Successes = true
	return c
}

// NewPublisherWithProducer wraps an existing producer.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string {
	return "kafka"
}

// PublishDelta sends the whole delta in one batch.
func (p *Publisher) PublishDelta(ctx context.Context, delta domain.Delta) error {
	if delta.Total() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: kafka: %w", domain.ErrDelivery, err)
	}

	total := []byte(strconv.Itoa(delta.Total()))
	msgs := make([]*sarama.ProducerMessage, 0, delta.Total())
	for _, rec := range delta.Records {
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", rec.ID, err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(rec.Link),
			Value: sarama.ByteEncoder(body),
			Headers: []sarama.RecordHeader{
				{Key: []byte("event"), Value: []byte(domain.EventNewRecords)},
				{Key: []byte("totalNewCount"), Value: total},
			},
		})
	}

	if err := p.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("%w: kafka send: %w", domain.ErrDelivery, err)
	}
	return nil
}

// Close flushes and shuts down the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
