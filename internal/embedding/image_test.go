package embedding

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	p := filepath.Join(t.TempDir(), "img.png")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPreprocess_ShapeAndNormalization(t *testing.T) {
	p := writePNG(t, 40, 20, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	img, err := LoadImage(p)
	if err != nil {
		t.Fatal(err)
	}
	out := Preprocess(img, 8)
	if len(out) != 3*8*8 {
		t.Fatalf("expected %d values, got %d", 3*8*8, len(out))
	}
	wantR := (1 - clipMean[0]) / clipStd[0]
	wantG := (0 - clipMean[1]) / clipStd[1]
	if math.Abs(float64(out[0]-wantR)) > 0.02 {
		t.Errorf("red channel = %v, want %v", out[0], wantR)
	}
	if math.Abs(float64(out[64]-wantG)) > 0.02 {
		t.Errorf("green channel = %v, want %v", out[64], wantG)
	}
}

func TestLoadImage_Errors(t *testing.T) {
	if _, err := LoadImage(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
	p := filepath.Join(t.TempDir(), "bad.png")
	_ = os.WriteFile(p, []byte("not an image"), 0644)
	if _, err := LoadImage(p); err == nil {
		t.Error("expected decode error")
	}
}
