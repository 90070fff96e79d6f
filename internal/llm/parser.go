package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pulseboard/surveykpi/internal/common"
)

// cleanMarkdownWrapper strips a markdown code fence the model may have put
// around its JSON payload.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	return strings.TrimSpace(content)
}

// parseDetection extracts the KPI list and explanation from the model output.
func parseDetection(content string) (DetectionResponse, error) {
	var jsonResp struct {
		Explanation string   `json:"explanation"`
		KPIs        []string `json:"kpis"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return DetectionResponse{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	if len(jsonResp.KPIs) == 0 && jsonResp.Explanation == "" {
		return DetectionResponse{}, common.ErrNoOutput
	}

	return DetectionResponse{
		KPIs:        jsonResp.KPIs,
		Explanation: jsonResp.Explanation,
	}, nil
}
