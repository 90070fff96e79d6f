// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/pulseboard/surveykpi/internal/model"
)

// KPIDetector identifies key performance indicator columns in survey data.
type KPIDetector interface {
	// DetectKPIs analyzes one batch of survey records.
	DetectKPIs(ctx context.Context, request model.DetectionRequest) (model.DetectionResult, error)

	// BatchDetectKPIs analyzes multiple independent batches concurrently.
	// Results are positionally aligned with the requests.
	BatchDetectKPIs(ctx context.Context, requests []model.DetectionRequest) ([]model.DetectionResult, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
