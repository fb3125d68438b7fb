package repository

import (
	"context"

	"FinCast/internal/domain/models"
)

// NoopRecorder is used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (NoopRecorder) RecordRun(context.Context, *models.PredictionResult, error) error { return nil }
func (NoopRecorder) Close() error                                                     { return nil }

// NoopPublisher is used when Kafka is not configured.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (NoopPublisher) Publish(context.Context, *models.PredictionResult) error { return nil }
func (NoopPublisher) Close() error                                            { return nil }
