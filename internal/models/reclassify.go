package models

// ReclassifyRequest controls a batch reclassification run.
type ReclassifyRequest struct {
	Limit     int      `json:"limit" validate:"gte=1,lte=200000"`
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=-1,lte=1"`
	// DryRun computes the report without persisting anything.
	DryRun bool `json:"dry_run"`
	// IncludeDeleted includes soft-deleted items both as targets and as prototype samples.
	IncludeDeleted bool `json:"include_deleted"`
	// Force lets unlocked items change category regardless of safe mode. Locked items
	// are never changed.
	Force bool `json:"force"`
	// OnlyUncategorized restricts safe mode to items currently in Uncategorized.
	OnlyUncategorized bool `json:"only_uncategorized"`
}

// DefaultReclassifyRequest returns the request defaults: dry run, safe mode restricted to
// Uncategorized items, deleted items included.
func DefaultReclassifyRequest(limit int) ReclassifyRequest {
	return ReclassifyRequest{
		Limit:             limit,
		DryRun:            true,
		IncludeDeleted:    true,
		OnlyUncategorized: true,
	}
}

// ReclassifySnapshot is the category state of an item before or after reclassification.
type ReclassifySnapshot struct {
	CategoryID     string   `json:"category_id"`
	AutoCategoryID *string  `json:"auto_category_id"`
	AutoConfidence *float64 `json:"auto_conf"`
}

// ReclassifySample shows one item that would change.
type ReclassifySample struct {
	ItemID string             `json:"item_id"`
	Title  string             `json:"title"`
	Prev   ReclassifySnapshot `json:"prev"`
	Next   ReclassifySnapshot `json:"next"`
}

// ReclassifyReport summarizes a batch reclassification run.
type ReclassifyReport struct {
	Status           string             `json:"status"`
	DryRun           bool               `json:"dry_run"`
	Threshold        float64            `json:"threshold"`
	Scanned          int                `json:"scanned"`
	WouldUpdate      int                `json:"would_update"`
	Applied          int                `json:"applied"`
	LockedKept       int                `json:"locked_kept"`
	MissingEmbedding int                `json:"missing_embedding"`
	PrototypeCount   int                `json:"prototype_count"`
	Samples          []ReclassifySample `json:"sample"`
	UncategorizedID  string             `json:"uncategorized_id"`
	QueryTime        int64              `json:"query_time_ms"`
}
