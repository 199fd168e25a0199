// Package assign decides whether a classification result may overwrite an item's
// effective category, and what auto fields to record.
package assign

import (
	"github.com/hyperjump/autocat/internal/classify"
	"github.com/hyperjump/autocat/internal/models"
)

// ItemState is the persisted category state of an item before classification.
type ItemState struct {
	CategoryID     string
	AutoCategoryID *string
	AutoConfidence *float64
	AutoCandidates *string
	Locked         bool
}

// StateOf returns the classification state of it.
func StateOf(it *models.Item) ItemState {
	return ItemState{
		CategoryID:     it.CategoryID,
		AutoCategoryID: it.AutoCategoryID,
		AutoConfidence: it.AutoConfidence,
		AutoCandidates: it.AutoCandidates,
		Locked:         it.IsCategoryLocked,
	}
}

// Mode selects the single-item or batch policy.
type Mode struct {
	Batch bool
	// Force lets unlocked items change category in batch mode regardless of safe mode.
	Force bool
	// OnlyUncategorized restricts batch safe mode to items currently in Uncategorized.
	OnlyUncategorized bool
}

// Decision is what should be persisted for an item.
type Decision struct {
	// Target is the category the result points at: best when confident, else Uncategorized.
	Target string
	// CategoryID is the effective category after the decision.
	CategoryID      string
	Allowed         bool
	CategoryChanged bool
	AutoCategoryID  *string
	AutoConfidence  *float64
	AutoCandidates  *string
	AutoChanged     bool
}

// Changed reports whether anything stored would differ.
func (d Decision) Changed() bool {
	return d.CategoryChanged || d.AutoChanged
}

// Update converts d into a storage update for itemID.
func (d Decision) Update(itemID string) models.ClassificationUpdate {
	u := models.ClassificationUpdate{
		ItemID:         itemID,
		AutoCategoryID: d.AutoCategoryID,
		AutoConfidence: d.AutoConfidence,
		AutoCandidates: d.AutoCandidates,
	}
	if d.CategoryChanged {
		u.CategoryID = d.CategoryID
	}
	return u
}

// Decide applies the assignment policy. A best candidate scoring exactly threshold is
// confident. Locked items never change category, in any mode.
func Decide(state ItemState, res classify.Result, threshold float64, mode Mode) (Decision, error) {
	var d Decision

	uncID := ""
	if res.Fallback != nil {
		uncID = res.Fallback.ID
	}
	d.Target = uncID
	if res.Best != nil {
		id, score := res.Best.CategoryID, res.Best.Score
		d.AutoCategoryID = &id
		d.AutoConfidence = &score
		if classify.Reaches(score, threshold) {
			d.Target = id
		}
	}
	if len(res.TopK) > 0 {
		s, err := classify.SerializeCandidates(res.TopK)
		if err != nil {
			return Decision{}, err
		}
		d.AutoCandidates = &s
	}

	switch {
	case state.Locked:
		d.Allowed = false
	case !mode.Batch || mode.Force:
		d.Allowed = true
	case state.CategoryID == uncID:
		d.Allowed = true
	case !mode.OnlyUncategorized && state.AutoCategoryID != nil && state.CategoryID == *state.AutoCategoryID:
		d.Allowed = true
	}

	d.CategoryID = state.CategoryID
	if d.Allowed && d.Target != "" && d.Target != state.CategoryID {
		d.CategoryID = d.Target
		d.CategoryChanged = true
	}

	d.AutoChanged = !equalString(state.AutoCategoryID, d.AutoCategoryID) ||
		!equalFloat(state.AutoConfidence, d.AutoConfidence) ||
		!equalString(state.AutoCandidates, d.AutoCandidates)
	return d, nil
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
