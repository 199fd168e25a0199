package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/autocat/internal/models"
)

func TestDatabaseFiles(t *testing.T) {
	if got := DatabaseFiles(""); got != nil {
		t.Errorf("DatabaseFiles(\"\") = %v, want nil", got)
	}
	want := []string{"/data/gallery.db", "/data/gallery.db-wal", "/data/gallery.db-shm"}
	if got := DatabaseFiles("/data/gallery.db"); !reflect.DeepEqual(got, want) {
		t.Errorf("DatabaseFiles() = %v, want %v", got, want)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	thumb := filepath.Join(dir, "thumb.jpg")
	if err := os.WriteFile(thumb, []byte("jpeg!"), 0o644); err != nil {
		t.Fatal(err)
	}
	media := filepath.Join(dir, "media", "2024")
	if err := os.MkdirAll(media, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, data := range map[string]string{"a.png": "ab", "b.webp": "c"} {
		if err := os.WriteFile(filepath.Join(media, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{thumb}, 5},
		{"nested directory", []string{filepath.Join(dir, "media")}, 3},
		{"file and directory", []string{thumb, media}, 8},
		{"missing path counts zero", []string{thumb, filepath.Join(dir, "gone"), media}, 8},
		{"empty path skipped", []string{"", thumb}, 5},
		{"nothing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDiskUsageBytes_countsWAL(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gallery.db")
	s, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.CreateCategory(context.Background(), &models.Category{Name: "风景", IsActive: true}); err != nil {
		t.Fatal(err)
	}
	mainFile, err := DiskUsageBytes(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	all, err := DiskUsageBytes(DatabaseFiles(dbPath)...)
	if err != nil {
		t.Fatal(err)
	}
	if all <= 0 || all < mainFile {
		t.Errorf("database files = %d bytes, main file = %d", all, mainFile)
	}
}
