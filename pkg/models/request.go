package models

// GenerateRequest is the body of an Ollama /api/generate call. Stream is
// always false: the whole answer arrives in one response.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}
