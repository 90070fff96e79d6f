package llm

import (
	"context"
)

// Client is the transport to the model endpoint.
type Client interface {
	DetectKPIs(ctx context.Context, prompt string) (DetectionResponse, error)
}

// DetectionResponse contains the model's KPI answer.
type DetectionResponse struct {
	Explanation string
	KPIs        []string
}
