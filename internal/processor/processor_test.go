package processor

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/eventphoto/internal/faceanalyzer"
)

func writeTestJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("writing test jpeg: %v", err)
	}
}

func TestProcess_ResizesAndDetectsFaces(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "source.jpg")
	writeTestJPEG(t, input, 3000, 2000)

	out := t.TempDir()
	analyzer := faceanalyzer.NewFake()

	result, err := Process(context.Background(), input, 42, out, Config{MaxSize: 2048, ThumbSize: 400, JPEGQuality: 90}, analyzer)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if _, err := os.Stat(result.ProcessedPath); err != nil {
		t.Fatalf("expected processed file to exist: %v", err)
	}
	if _, err := os.Stat(result.ThumbPath); err != nil {
		t.Fatalf("expected thumbnail file to exist: %v", err)
	}

	processedImg, err := imaging.Open(result.ProcessedPath)
	if err != nil {
		t.Fatalf("opening processed image: %v", err)
	}
	b := processedImg.Bounds()
	if b.Dx() > 2048 || b.Dy() > 2048 {
		t.Fatalf("expected processed image capped at 2048, got %dx%d", b.Dx(), b.Dy())
	}

	thumbImg, err := imaging.Open(result.ThumbPath)
	if err != nil {
		t.Fatalf("opening thumbnail: %v", err)
	}
	tb := thumbImg.Bounds()
	if tb.Dx() != 400 || tb.Dy() != 400 {
		t.Fatalf("expected 400x400 thumbnail, got %dx%d", tb.Dx(), tb.Dy())
	}
}

func TestProcess_DryRunWritesNoFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "source.jpg")
	writeTestJPEG(t, input, 800, 600)

	out := t.TempDir()
	analyzer := faceanalyzer.NewFake()

	result, err := Process(context.Background(), input, 1, out, Config{MaxSize: 2048, ThumbSize: 400, DryRun: true}, analyzer)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if _, err := os.Stat(result.ProcessedPath); !os.IsNotExist(err) {
		t.Fatalf("expected no processed file in dry run, stat err = %v", err)
	}
}

func TestProcess_SmallImageUpscaledForDetectionOnly(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "small.jpg")
	writeTestJPEG(t, input, 320, 240)

	out := t.TempDir()
	analyzer := faceanalyzer.NewFake()

	result, err := Process(context.Background(), input, 2, out, Config{MaxSize: 2048, ThumbSize: 400}, analyzer)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	processedImg, err := imaging.Open(result.ProcessedPath)
	if err != nil {
		t.Fatalf("opening processed image: %v", err)
	}
	b := processedImg.Bounds()
	if b.Dx() != 320 || b.Dy() != 240 {
		t.Fatalf("expected output image unchanged at 320x240 (upscale is detection-only), got %dx%d", b.Dx(), b.Dy())
	}
}

func TestProcess_UnreadableInputFails(t *testing.T) {
	out := t.TempDir()
	analyzer := faceanalyzer.NewFake()

	_, err := Process(context.Background(), filepath.Join(out, "missing.jpg"), 3, out, Config{MaxSize: 2048, ThumbSize: 400}, analyzer)
	if err == nil {
		t.Fatal("expected error for unreadable input")
	}
}
