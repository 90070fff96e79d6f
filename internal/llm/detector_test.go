package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulseboard/surveykpi/internal/common"
	"github.com/pulseboard/surveykpi/internal/model"
	"github.com/pulseboard/surveykpi/internal/service"
)

var _ service.KPIDetector = (*Detector)(nil)

// mockClient is a test implementation of the Client interface.
type mockClient struct {
	failWhen  func(prompt string) error
	responses []DetectionResponse
	errors    []error
	prompts   []string
	calls     int
	mu        sync.Mutex
}

func (m *mockClient) DetectKPIs(_ context.Context, prompt string) (DetectionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	callIdx := m.calls
	m.calls++

	if m.failWhen != nil {
		if err := m.failWhen(prompt); err != nil {
			return DetectionResponse{}, err
		}
	}

	if callIdx < len(m.errors) && m.errors[callIdx] != nil {
		return DetectionResponse{}, m.errors[callIdx]
	}

	if callIdx < len(m.responses) {
		return m.responses[callIdx], nil
	}

	return DetectionResponse{}, fmt.Errorf("no more mock responses (call %d)", callIdx)
}

func (m *mockClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestDetector(client Client) *Detector {
	return &Detector{
		client: client,
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			Multiplier:   2.0,
		},
	}
}

func testRecords() []model.SurveyRecord {
	return []model.SurveyRecord{
		{"age": model.NumberValue(30), "satisfaction": model.StringValue("high")},
		{"age": model.NumberValue(45), "satisfaction": model.StringValue("low")},
	}
}

func TestDetectKPIs(t *testing.T) {
	okResponse := DetectionResponse{
		KPIs:        []string{"age"},
		Explanation: "Age is the only numeric column.",
	}

	t.Run("first attempt succeeds", func(t *testing.T) {
		client := &mockClient{responses: []DetectionResponse{okResponse}}
		detector := newTestDetector(client)

		result, err := detector.DetectKPIs(context.Background(), model.DetectionRequest{Records: testRecords()})

		require.NoError(t, err)
		assert.Equal(t, []string{"age"}, result.KPIs)
		assert.Equal(t, okResponse.Explanation, result.Explanation)
		assert.Equal(t, 1, client.callCount())
	})

	t.Run("recovers from rate limits", func(t *testing.T) {
		client := &mockClient{
			errors: []error{
				&common.RateLimitError{StatusCode: 429},
				&common.RateLimitError{StatusCode: 429},
			},
			responses: []DetectionResponse{{}, {}, okResponse},
		}
		detector := newTestDetector(client)

		result, err := detector.DetectKPIs(context.Background(), model.DetectionRequest{Records: testRecords()})

		require.NoError(t, err)
		assert.Equal(t, []string{"age"}, result.KPIs)
		assert.Equal(t, 3, client.callCount())
	})

	t.Run("exhausts retries on persistent rate limiting", func(t *testing.T) {
		client := &mockClient{
			errors: []error{
				&common.RateLimitError{StatusCode: 429},
				&common.RateLimitError{StatusCode: 429},
				&common.RateLimitError{StatusCode: 429},
			},
		}
		detector := newTestDetector(client)

		_, err := detector.DetectKPIs(context.Background(), model.DetectionRequest{Records: testRecords()})

		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrRateLimitExhausted)
		assert.Equal(t, 3, client.callCount())
	})

	t.Run("upstream error propagates without retry", func(t *testing.T) {
		boom := errors.New("model overloaded")
		client := &mockClient{errors: []error{boom}}
		detector := newTestDetector(client)

		_, err := detector.DetectKPIs(context.Background(), model.DetectionRequest{Records: testRecords()})

		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, client.callCount())
	})

	t.Run("upstream error after a rate limit stops retrying", func(t *testing.T) {
		boom := errors.New("bad request")
		client := &mockClient{
			errors: []error{
				&common.RateLimitError{StatusCode: 429},
				boom,
			},
		}
		detector := newTestDetector(client)

		_, err := detector.DetectKPIs(context.Background(), model.DetectionRequest{Records: testRecords()})

		require.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, common.ErrRateLimitExhausted)
		assert.Equal(t, 2, client.callCount())
	})

	t.Run("missing output surfaces as ErrNoOutput", func(t *testing.T) {
		client := &mockClient{errors: []error{common.ErrNoOutput}}
		detector := newTestDetector(client)

		_, err := detector.DetectKPIs(context.Background(), model.DetectionRequest{Records: testRecords()})

		require.ErrorIs(t, err, common.ErrNoOutput)
		assert.Equal(t, 1, client.callCount())
	})
}

func TestBuildPrompt(t *testing.T) {
	t.Run("serializes all records", func(t *testing.T) {
		prompt, err := buildPrompt(model.DetectionRequest{Records: testRecords()})
		require.NoError(t, err)

		assert.Contains(t, prompt, `"age":30`)
		assert.Contains(t, prompt, `"satisfaction":"high"`)
		assert.Contains(t, prompt, `"age":45`)
		assert.Contains(t, prompt, `"satisfaction":"low"`)
	})

	t.Run("omits language clause when language is empty", func(t *testing.T) {
		prompt, err := buildPrompt(model.DetectionRequest{Records: testRecords()})
		require.NoError(t, err)

		assert.NotContains(t, prompt, "Write the explanation in the language")
	})

	t.Run("includes language clause when language is set", func(t *testing.T) {
		prompt, err := buildPrompt(model.DetectionRequest{
			Records:  testRecords(),
			Language: "fr",
		})
		require.NoError(t, err)

		assert.Contains(t, prompt, `Write the explanation in the language "fr"`)
	})

	t.Run("prompt reaches the client verbatim", func(t *testing.T) {
		client := &mockClient{responses: []DetectionResponse{{KPIs: []string{"age"}}}}
		detector := newTestDetector(client)

		_, err := detector.DetectKPIs(context.Background(), model.DetectionRequest{
			Records:  testRecords(),
			Language: "fr",
		})
		require.NoError(t, err)

		require.Len(t, client.prompts, 1)
		assert.Contains(t, client.prompts[0], `"fr"`)
		assert.Contains(t, client.prompts[0], `"age":30`)
	})
}

func TestUnknownColumns(t *testing.T) {
	records := testRecords()

	assert.Empty(t, unknownColumns([]string{"age"}, records))
	assert.Equal(t, []string{"revenue"}, unknownColumns([]string{"age", "revenue"}, records))
}

func TestBatchDetectKPIs(t *testing.T) {
	t.Run("results align with requests", func(t *testing.T) {
		client := &mockClient{
			responses: []DetectionResponse{
				{KPIs: []string{"age"}},
				{KPIs: []string{"age"}},
				{KPIs: []string{"age"}},
			},
		}
		detector := newTestDetector(client)

		requests := []model.DetectionRequest{
			{Records: testRecords()},
			{Records: testRecords()},
			{Records: testRecords()},
		}

		results, err := detector.BatchDetectKPIs(context.Background(), requests)

		require.NoError(t, err)
		require.Len(t, results, 3)
		for _, result := range results {
			assert.Equal(t, []string{"age"}, result.KPIs)
		}
		assert.Equal(t, 3, client.callCount())
	})

	t.Run("surfaces the failing request", func(t *testing.T) {
		boom := errors.New("model overloaded")
		client := &mockClient{
			failWhen: func(prompt string) error {
				if strings.Contains(prompt, "poison") {
					return boom
				}
				return nil
			},
			responses: []DetectionResponse{
				{KPIs: []string{"age"}},
				{KPIs: []string{"age"}},
			},
		}
		detector := newTestDetector(client)

		requests := []model.DetectionRequest{
			{Records: testRecords()},
			{Records: []model.SurveyRecord{{"poison": model.NumberValue(1)}}},
		}

		_, err := detector.BatchDetectKPIs(context.Background(), requests)

		require.ErrorIs(t, err, boom)
	})
}
