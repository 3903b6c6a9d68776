package entity

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
