// Package cli renders classification results for the autocat command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/autocat/internal/engine"
	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/prototype"
	"github.com/hyperjump/autocat/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

const titleWidth = 40

// WriteJSON writes v as indented JSON, keeping non-ASCII text verbatim.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteOutcome writes a single-item classification outcome.
func WriteOutcome(w io.Writer, out *models.ClassificationOutcome, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, out)
	}
	fmt.Fprintf(w, "item:        %s\n", out.ItemID)
	fmt.Fprintf(w, "category:    %s -> %s", out.PrevCategoryID, out.CategoryID)
	switch {
	case out.Locked:
		fmt.Fprint(w, "   (locked)")
	case out.CategoryID == out.UncategorizedID:
		fmt.Fprint(w, "   (uncategorized)")
	}
	fmt.Fprintln(w)
	if out.AutoConfidence != nil {
		fmt.Fprintf(w, "confidence:  %.4f\n", *out.AutoConfidence)
	}
	if out.MissingEmbedding {
		fmt.Fprintln(w, "embedding:   missing")
	}
	if len(out.Boosts) > 0 {
		fmt.Fprintf(w, "boosts:      %v\n", out.Boosts)
	}
	fmt.Fprintf(w, "prototypes:  %d\n", out.PrototypeCount)
	if out.DryRun {
		fmt.Fprintln(w, "dry run:     nothing written")
	}
	for i, c := range out.Candidates {
		fmt.Fprintf(w, "  %d. %-20s %.4f  %s\n", i+1, c.CategoryName, c.Score, c.CategoryID)
	}
	return nil
}

// WriteReport writes a batch reclassification report.
func WriteReport(w io.Writer, report *models.ReclassifyReport, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, report)
	}
	mode := "applied"
	if report.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "\nReclassified %d items in %dms (%s, threshold %.2f, %d prototypes)\n\n",
		report.Scanned, report.QueryTime, mode, report.Threshold, report.PrototypeCount)
	fmt.Fprintf(w, "would_update:       %d\n", report.WouldUpdate)
	fmt.Fprintf(w, "applied:            %d\n", report.Applied)
	fmt.Fprintf(w, "locked_kept:        %d\n", report.LockedKept)
	fmt.Fprintf(w, "missing_embedding:  %d\n", report.MissingEmbedding)
	if len(report.Samples) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\n--- Sample changes ---")
	for _, s := range report.Samples {
		fmt.Fprintf(w, "%s  %-*s  %s -> %s  (%s)\n",
			s.ItemID, titleWidth, utils.Truncate(s.Title, titleWidth),
			s.Prev.CategoryID, s.Next.CategoryID, formatConfidence(s.Next.AutoConfidence))
	}
	return nil
}

// WritePrototypes writes a prototype snapshot.
func WritePrototypes(w io.Writer, set prototype.Set, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, map[string]any{"count": len(set), "prototypes": set})
	}
	if len(set) == 0 {
		fmt.Fprintln(w, "No category has enough labeled samples; every item would be uncategorized.")
		return nil
	}
	fmt.Fprintf(w, "%d prototypes\n", len(set))
	for _, p := range set {
		fmt.Fprintf(w, "  %-20s samples=%-4d %s\n", p.CategoryName, p.SampleCount, p.CategoryID)
	}
	return nil
}

// WriteStatus writes engine status.
func WriteStatus(w io.Writer, st *engine.Status, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, st)
	}
	fmt.Fprintf(w, "items:              %d\n", st.Items)
	fmt.Fprintf(w, "categories:         %d   # including Uncategorized\n", st.Categories)
	fmt.Fprintf(w, "item_embeddings:    %d   # for model %s\n", st.ItemEmbeddings, st.ModelKey)
	fmt.Fprintf(w, "encoder_ready:      %t\n", st.EncoderReady)
	if st.DiskUsageBytes > 0 {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", st.DiskUsageBytes)
	}
	return nil
}

func formatConfidence(c *float64) string {
	if c == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *c)
}
