package repository

import (
	"context"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	pkgkafka "FinCast/pkg/kafka"
)

// DefaultPredictionTopic receives one event per finished cycle.
const DefaultPredictionTopic = "fincast.predictions"

// KafkaResultPublisher implements ResultPublisher for Kafka.
type KafkaResultPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.ResultPublisher = (*KafkaResultPublisher)(nil)

// NewKafkaResultPublisher creates Kafka publisher.
func NewKafkaResultPublisher(producer *pkgkafka.Producer, topic string) *KafkaResultPublisher {
	if topic == "" {
		topic = DefaultPredictionTopic
	}
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

// Publish writes r as JSON keyed by symbol.
func (p *KafkaResultPublisher) Publish(ctx context.Context, r *models.PredictionResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.Symbol), r)
}

func (p *KafkaResultPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
