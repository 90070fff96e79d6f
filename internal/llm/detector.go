package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulseboard/surveykpi/internal/common"
	"github.com/pulseboard/surveykpi/internal/model"
	"github.com/pulseboard/surveykpi/internal/service"
)

// Detector implements the service.KPIDetector interface using an LLM API.
type Detector struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// Config holds configuration for the KPI detector.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// NewDetector creates a new LLM-based KPI detector.
func NewDetector(cfg Config, logger *slog.Logger) (*Detector, error) {
	client, err := newAnthropicClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = 2 * time.Second
	}

	// Client-side throttling is opt-in; concurrent calls are otherwise
	// fully independent.
	var limiter *rateLimiter
	if cfg.RateLimit > 0 {
		limiter = newRateLimiter(cfg.RateLimit)
	}

	return &Detector{
		client:      client,
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: limiter,
	}, nil
}

// DetectKPIs asks the model which columns in the supplied survey records are
// key performance indicators. Rate-limited calls are retried with exponential
// backoff; any other upstream failure is returned as-is.
func (d *Detector) DetectKPIs(ctx context.Context, request model.DetectionRequest) (model.DetectionResult, error) {
	requestID := uuid.New().String()

	if d.rateLimiter != nil {
		if err := d.rateLimiter.wait(ctx); err != nil {
			return model.DetectionResult{}, fmt.Errorf("rate limit error: %w", err)
		}
	}

	prompt, err := buildPrompt(request)
	if err != nil {
		return model.DetectionResult{}, fmt.Errorf("failed to build prompt: %w", err)
	}

	var response DetectionResponse

	err = common.WithRetry(ctx, func() error {
		d.logger.Debug("attempting KPI detection",
			"request_id", requestID,
			"records", len(request.Records))

		resp, callErr := d.client.DetectKPIs(ctx, prompt)
		if callErr != nil {
			return callErr
		}

		response = resp
		return nil
	}, d.retryOpts)

	if err != nil {
		return model.DetectionResult{}, err
	}

	result := model.DetectionResult{
		KPIs:        response.KPIs,
		Explanation: response.Explanation,
	}

	// The result is returned as-is, but a KPI naming a column that is not
	// in the data is worth flagging.
	if unknown := unknownColumns(result.KPIs, request.Records); len(unknown) > 0 {
		d.logger.Warn("model returned KPIs not present in the data",
			"request_id", requestID,
			"columns", unknown)
	}

	d.logger.Info("KPI detection complete",
		"request_id", requestID,
		"records", len(request.Records),
		"kpis", result.KPIs)

	return result, nil
}

// BatchDetectKPIs runs detection for multiple independent record sets.
func (d *Detector) BatchDetectKPIs(ctx context.Context, requests []model.DetectionRequest) ([]model.DetectionResult, error) {
	results := make([]model.DetectionResult, len(requests))
	errs := make([]error, len(requests))

	// Process requests concurrently with a worker pool
	const maxWorkers = 5
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, req := range requests {
		wg.Add(1)
		go func(idx int, request model.DetectionRequest) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			}

			result, err := d.DetectKPIs(ctx, request)
			if err != nil {
				errs[idx] = err
				return
			}

			results[idx] = result
		}(i, req)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to detect KPIs for request %d: %w", i, err)
		}
	}

	return results, nil
}

// buildPrompt creates the KPI detection prompt. The language clause is only
// present when a language was supplied.
func buildPrompt(request model.DetectionRequest) (string, error) {
	data, err := json.Marshal(request.Records)
	if err != nil {
		return "", fmt.Errorf("failed to serialize records: %w", err)
	}

	languageClause := ""
	if request.Language != "" {
		languageClause = fmt.Sprintf("\nWrite the explanation in the language %q.\n", request.Language)
	}

	return fmt.Sprintf(`Analyze these survey responses and identify which numeric columns are key performance indicators (KPIs).

Survey responses:
%s
%s
Instructions:
1. Only consider columns that are actually present in the responses above.
2. A KPI is a numeric column whose values track an outcome the survey owner would want to monitor (scores, ratings, counts, durations).
3. Explain briefly why the chosen columns qualify.

Respond with JSON in this exact shape:
{"kpis": ["column_name", ...], "explanation": "<1-3 sentence rationale>"}`,
		string(data),
		languageClause), nil
}

// unknownColumns returns the KPI names that are not columns of the records.
func unknownColumns(kpis []string, records []model.SurveyRecord) []string {
	columns := make(map[string]struct{})
	for _, name := range model.Columns(records) {
		columns[name] = struct{}{}
	}

	var unknown []string
	for _, kpi := range kpis {
		if _, ok := columns[kpi]; !ok {
			unknown = append(unknown, kpi)
		}
	}

	return unknown
}

// Close stops background goroutines and cleans up resources.
func (d *Detector) Close() error {
	if d.rateLimiter != nil {
		d.rateLimiter.Close()
	}
	return nil
}
