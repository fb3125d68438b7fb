package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Config describes the brokers and writer behaviour. Zero fields take the
// defaults of withDefaults.
type Config struct {
	Brokers      []string
	Compression  string // gzip, snappy, lz4, zstd or none
	RequiredAcks int    // -1 waits for all in-sync replicas
	MaxAttempts  int
	WriteTimeout time.Duration
	BatchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Compression == "" {
		c.Compression = "gzip"
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	return c
}

// MessageWriter is the subset of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON events. Messages are hashed by key so all events of
// one symbol land on one partition in order.
type Producer struct {
	writer      MessageWriter
	compression string
}

func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: at least one broker is required")
	}
	cfg = cfg.withDefaults()
	codec, err := compressionCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            codec,
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(w, cfg.Compression), nil
}

// NewProducerWithWriter wraps an existing writer; tests pass a fake.
func NewProducerWithWriter(w MessageWriter, compression string) *Producer {
	registerCollectors()
	return &Producer{writer: w, compression: compression}
}

// Publish writes value to topic. []byte and string values are sent as is;
// anything else is JSON encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	start := time.Now()
	payload, err := encode(value)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: payload,
		Time:  start,
	})
	collectors.observe(topic, p.compression, len(payload), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal kafka value: %w", err)
	}
	return b, nil
}

func compressionCodec(name string) (kafka.Compression, error) {
	switch strings.ToLower(name) {
	case "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("kafka: unknown compression %q", name)
}

type producerCollectors struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	collectors     *producerCollectors
	collectorsOnce sync.Once
)

func registerCollectors() {
	collectorsOnce.Do(func() {
		collectors = &producerCollectors{
			messages: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "fincast_kafka_producer_messages_total",
				Help: "Messages published to Kafka by outcome",
			}, []string{"topic", "compression", "result"}),
			bytes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "fincast_kafka_producer_bytes_total",
				Help: "Payload bytes published to Kafka",
			}, []string{"topic"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "fincast_kafka_producer_publish_seconds",
				Help:    "Time spent in WriteMessages",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
		}
	})
}

func (c *producerCollectors) observe(topic, compression string, n int, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.messages.WithLabelValues(topic, compression, result).Inc()
	c.bytes.WithLabelValues(topic).Add(float64(n))
	c.latency.WithLabelValues(topic).Observe(d.Seconds())
}
