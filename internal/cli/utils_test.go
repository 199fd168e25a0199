package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/autocat/internal/engine"
	"github.com/hyperjump/autocat/internal/models"
	"github.com/hyperjump/autocat/internal/prototype"
)

func ptr[T any](v T) *T { return &v }

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteOutcome_text(t *testing.T) {
	out := &models.ClassificationOutcome{
		ItemID:          "ITEM1",
		PrevCategoryID:  "UNC",
		CategoryID:      "PORTRAIT",
		AutoCategoryID:  ptr("PORTRAIT"),
		AutoConfidence:  ptr(0.3512),
		Boosts:          []string{"text"},
		UncategorizedID: "UNC",
		PrototypeCount:  2,
		DryRun:          true,
		Candidates: []models.Candidate{
			{CategoryID: "PORTRAIT", CategoryName: "肖像", Score: 0.3512},
			{CategoryID: "LAND", CategoryName: "风景", Score: 0.30},
		},
	}
	var buf bytes.Buffer
	if err := WriteOutcome(&buf, out, OutputText); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	for _, sub := range []string{"ITEM1", "UNC -> PORTRAIT", "0.3512", "[text]", "dry run", "1. 肖像", "2. 风景"} {
		if !strings.Contains(s, sub) {
			t.Errorf("text output missing %q:\n%s", sub, s)
		}
	}
}

func TestWriteOutcome_JSON(t *testing.T) {
	out := &models.ClassificationOutcome{ItemID: "ITEM1", CategoryID: "UNC", UncategorizedID: "UNC",
		Candidates: []models.Candidate{{CategoryID: "A", CategoryName: "动物", Score: 0.1}}}
	var buf bytes.Buffer
	if err := WriteOutcome(&buf, out, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "动物") {
		t.Errorf("non-ASCII names should not be escaped:\n%s", buf.String())
	}
	var decoded models.ClassificationOutcome
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ItemID != "ITEM1" || len(decoded.Candidates) != 1 {
		t.Errorf("unexpected decoded outcome %+v", decoded)
	}
}

func TestWriteReport_text(t *testing.T) {
	report := &models.ReclassifyReport{
		Status: "ok", DryRun: true, Threshold: 0.32, Scanned: 10, WouldUpdate: 2, LockedKept: 1,
		PrototypeCount: 5, QueryTime: 12,
		Samples: []models.ReclassifySample{{
			ItemID: "ITEM1",
			Title:  strings.Repeat("湖", 60),
			Prev:   models.ReclassifySnapshot{CategoryID: "UNC"},
			Next:   models.ReclassifySnapshot{CategoryID: "LAND", AutoConfidence: ptr(0.5)},
		}},
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	for _, sub := range []string{"Reclassified 10 items", "dry run", "would_update:       2", "locked_kept:        1", "UNC -> LAND", "0.5000", "..."} {
		if !strings.Contains(s, sub) {
			t.Errorf("text output missing %q:\n%s", sub, s)
		}
	}
	if strings.Contains(s, strings.Repeat("湖", 41)) {
		t.Error("long titles should be truncated")
	}
}

func TestWritePrototypes(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePrototypes(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No category") {
		t.Errorf("empty set message missing: %q", buf.String())
	}

	buf.Reset()
	set := prototype.Set{{CategoryID: "LAND", CategoryName: "风景", SampleCount: 12, Centroid: []float32{1}}}
	if err := WritePrototypes(&buf, set, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "centroid") {
		t.Error("centroids should not be serialized")
	}
	var decoded struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded.Count != 1 {
		t.Errorf("unexpected JSON %s (%v)", buf.String(), err)
	}
}

func TestWriteStatus_text(t *testing.T) {
	var buf bytes.Buffer
	st := &engine.Status{ModelKey: "open_clip_ViT-B-32", Items: 3, Categories: 28, ItemEmbeddings: 2, DiskUsageBytes: 4096}
	if err := WriteStatus(&buf, st, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"items:              3", "categories:         28", "open_clip_ViT-B-32", "encoder_ready:      false", "4096"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("status output missing %q:\n%s", sub, buf.String())
		}
	}
}
