package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestPublishMarshalsJSON(t *testing.T) {
	w := &captureWriter{}
	p := NewProducerWithWriter(w, "gzip")
	if err := p.Publish(context.Background(), "fincast.predictions", []byte("AAPL"), map[string]float64{"prediction": 101.5}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.Topic != "fincast.predictions" || string(m.Key) != "AAPL" {
		t.Fatalf("unexpected message %+v", m)
	}
	var got map[string]float64
	if err := json.Unmarshal(m.Value, &got); err != nil || got["prediction"] != 101.5 {
		t.Fatalf("unexpected payload %s (%v)", m.Value, err)
	}
}

func TestPublishPropagatesWriterError(t *testing.T) {
	p := NewProducerWithWriter(&captureWriter{err: errors.New("broker down")}, "gzip")
	if err := p.Publish(context.Background(), "t", nil, []byte("x")); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(Config{}); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestNewProducerRejectsUnknownCompression(t *testing.T) {
	if _, err := NewProducer(Config{Brokers: []string{"localhost:9092"}, Compression: "brotli"}); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Brokers: []string{"b:9092"}}.withDefaults()
	if cfg.Compression != "gzip" || cfg.RequiredAcks != -1 || cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}
