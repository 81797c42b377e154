package api

// ErrorPayload is the body of every non-2xx response.
type ErrorPayload struct {
	Error     string   `json:"error" example:"invalid_request"`
	Details   []string `json:"details,omitempty" example:"lat: must be between -90 and 90"`
	RequestID string   `json:"request_id,omitempty" example:"host/abc123-000001"`
}

// HealthResponse is returned by the liveness probe.
type HealthResponse struct {
	OK bool `json:"ok" example:"true"`
}
