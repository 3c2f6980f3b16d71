package models

// SemanticDocument is a precomputed embedding of one course row.
type SemanticDocument struct {
	Embedding []float32 `json:"embedding"`
	Program   Program   `json:"program"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Row       int       `json:"row,omitempty"`
}

// SemanticIndexFile is the on-disk layout of the offline-built index.
type SemanticIndexFile struct {
	Model     string             `json:"model"`
	Dimension int                `json:"dimension"`
	Documents []SemanticDocument `json:"documents"`
}
