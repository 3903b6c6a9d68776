package entity

// IntentAnalysis is the JSON shape the LLM intent classifier asks the model for.
type IntentAnalysis struct {
	HasApplicationIntent bool    `json:"has_application_intent"`
	Confidence           float64 `json:"confidence"`
	Reasoning            string  `json:"reasoning"`
}

type OllamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type OllamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type OllamaGenerateRequest struct {
	Model   string               `json:"model"`
	Prompt  string               `json:"prompt"`
	System  string               `json:"system,omitempty"`
	Stream  bool                 `json:"stream"`
	Options OllamaGenerateOption `json:"options"`
}

type OllamaGenerateOption struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type OllamaGenerateResponse struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
}
