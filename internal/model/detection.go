package model

// DetectionRequest carries a batch of survey responses for KPI detection.
// Language is an optional language code or name used verbatim in the prompt;
// empty means unspecified.
type DetectionRequest struct {
	Language string         `json:"language,omitempty"`
	Records  []SurveyRecord `json:"records"`
}

// DetectionResult is the model's answer: which columns are key performance
// indicators, and why.
type DetectionResult struct {
	Explanation string   `json:"explanation"`
	KPIs        []string `json:"kpis"`
}
