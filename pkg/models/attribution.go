package models

// ModelPricing defines the per-1K prompt token cost for a model.
type ModelPricing struct {
	Model     string  `json:"model" yaml:"model"`
	CostPer1K float64 `json:"cost_per_1k" yaml:"cost_per_1k"`
}

// Requirement is one "to-be" requirement extracted from a business document.
type Requirement struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Functional  bool   `json:"functional"`
}

// C4Diagram is a generated MermaidJS C4 diagram with the model's explanation.
type C4Diagram struct {
	Level       string `json:"level"`
	Diagram     string `json:"diagram"`
	Explanation string `json:"explanation"`
}
