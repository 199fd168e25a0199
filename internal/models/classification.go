package models

// Candidate is one ranked category for an item. Score is a cosine similarity in [-1, 1],
// boosted values are clipped to 1.
type Candidate struct {
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Score        float64 `json:"score"`
}

// ClassificationUpdate is the persisted outcome of one classification. CategoryID is
// empty when the effective category must not change.
type ClassificationUpdate struct {
	ItemID         string
	CategoryID     string
	AutoCategoryID *string
	AutoConfidence *float64
	AutoCandidates *string
}

// ClassificationOutcome describes what a single-item classification decided.
type ClassificationOutcome struct {
	ItemID           string      `json:"item_id"`
	PrevCategoryID   string      `json:"prev_category_id"`
	CategoryID       string      `json:"category_id"`
	AutoCategoryID   *string     `json:"auto_category_id"`
	AutoConfidence   *float64    `json:"auto_confidence"`
	Candidates       []Candidate `json:"candidates"`
	Boosts           []string    `json:"boosts,omitempty"`
	Locked           bool        `json:"locked"`
	Changed          bool        `json:"changed"`
	UncategorizedID  string      `json:"uncategorized_id"`
	PrototypeCount   int         `json:"prototype_count"`
	DryRun           bool        `json:"dry_run"`
	MissingEmbedding bool        `json:"missing_embedding,omitempty"`
}
