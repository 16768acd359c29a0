// Package processor transforms an ingested source file into a normalized
// JPEG, a thumbnail, and a list of detected faces with embeddings.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/eventphoto/internal/engineerr"
	"github.com/kozaktomas/eventphoto/internal/faceanalyzer"
	"golang.org/x/image/draw"
)

// detectorMinLongEdge is the detector's native receptive field: inputs
// smaller than this on the long side are upscaled, for detection only.
const detectorMinLongEdge = 640

var rawExtensions = map[string]bool{
	".cr2": true, ".cr3": true, ".nef": true, ".arw": true, ".dng": true,
}

// Config carries the tunables Process needs from the engine's pipeline config.
type Config struct {
	MaxSize       int
	ThumbSize     int
	JPEGQuality   int
	DryRun        bool
}

// Face is one detected face in the processed image's coordinate space.
type Face struct {
	BBoxX      float64
	BBoxY      float64
	BBoxWidth  float64
	BBoxHeight float64
	Embedding  []float32
	Confidence float64
}

// Result is the outcome of processing one source file.
type Result struct {
	ProcessedPath string
	ThumbPath     string
	Faces         []Face
}

// Process decodes input (routing camera-RAW extensions through an external
// decoder first), normalizes orientation and size, writes a processed JPEG
// and a thumbnail under outputDir named by photoID, and runs face
// detection/embedding against the processed image.
func Process(ctx context.Context, input string, photoID int64, outputDir string, cfg Config, analyzer faceanalyzer.FaceAnalyzer) (Result, error) {
	img, err := decode(ctx, input)
	if err != nil {
		return Result{}, err
	}

	processed := normalize(img, cfg.MaxSize)

	processedPath := filepath.Join(outputDir, fmt.Sprintf("%06d.jpg", photoID))
	thumbPath := filepath.Join(outputDir, fmt.Sprintf("%06d_thumb.jpg", photoID))

	quality := cfg.JPEGQuality
	if quality <= 0 {
		quality = 90
	}

	if !cfg.DryRun {
		if err := encodeJPEG(processedPath, processed, quality); err != nil {
			return Result{}, fmt.Errorf("%w: encoding processed image: %v", engineerr.ErrDecodeFailed, err)
		}
		thumb := imaging.Fill(processed, cfg.ThumbSize, cfg.ThumbSize, imaging.Center, imaging.Lanczos)
		if err := encodeJPEG(thumbPath, thumb, quality); err != nil {
			os.Remove(processedPath)
			return Result{}, fmt.Errorf("%w: encoding thumbnail: %v", engineerr.ErrDecodeFailed, err)
		}
	}

	faces, err := detectFaces(ctx, processed, analyzer)
	if err != nil {
		if !cfg.DryRun {
			os.Remove(processedPath)
			os.Remove(thumbPath)
		}
		return Result{}, err
	}

	return Result{ProcessedPath: processedPath, ThumbPath: thumbPath, Faces: faces}, nil
}

// decode routes RAW extensions through the external raw decoder and
// everything else through the standard image library, applying EXIF
// orientation before any further processing.
func decode(ctx context.Context, input string) (image.Image, error) {
	ext := strings.ToLower(filepath.Ext(input))

	if rawExtensions[ext] {
		jpegBytes, err := decodeRaw(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("%w: raw decode %s: %v", engineerr.ErrDecodeFailed, input, err)
		}
		img, err := imaging.Decode(bytes.NewReader(jpegBytes), imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding raw preview %s: %v", engineerr.ErrDecodeFailed, input, err)
		}
		return img, nil
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", engineerr.ErrDecodeFailed, input, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", engineerr.ErrDecodeFailed, input, err)
	}
	return img, nil
}

// normalize resizes img so its longest side is at most maxSize, leaving
// smaller images untouched, and ensures RGB color.
func normalize(img image.Image, maxSize int) *imaging.NRGBA {
	b := img.Bounds()
	if b.Dx() <= maxSize && b.Dy() <= maxSize {
		return imaging.Clone(img)
	}
	return imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
}

func encodeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
}

// detectFaces upscales small images for detection only (bicubic, via
// golang.org/x/image/draw), runs the analyzer against the upscaled
// buffer when needed, and rescales bboxes back to the processed image's
// coordinate space.
func detectFaces(ctx context.Context, processed *imaging.NRGBA, analyzer faceanalyzer.FaceAnalyzer) ([]Face, error) {
	b := processed.Bounds()
	longEdge := b.Dx()
	if b.Dy() > longEdge {
		longEdge = b.Dy()
	}

	detectionImg := image.Image(processed)
	scale := 1.0
	if longEdge > 0 && longEdge < detectorMinLongEdge {
		scale = float64(detectorMinLongEdge) / float64(longEdge)
		upW := int(float64(b.Dx()) * scale)
		upH := int(float64(b.Dy()) * scale)
		upscaled := image.NewRGBA(image.Rect(0, 0, upW, upH))
		draw.CatmullRom.Scale(upscaled, upscaled.Bounds(), processed, b, draw.Over, nil)
		detectionImg = upscaled
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, detectionImg, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("%w: encoding detection buffer: %v", engineerr.ErrDetectFailed, err)
	}

	detections, err := analyzer.DetectAndEmbed(ctx, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engineerr.ErrDetectFailed, err)
	}

	faces := make([]Face, 0, len(detections))
	for _, d := range detections {
		faces = append(faces, Face{
			BBoxX:      d.BBoxX / scale,
			BBoxY:      d.BBoxY / scale,
			BBoxWidth:  d.BBoxWidth / scale,
			BBoxHeight: d.BBoxHeight / scale,
			Embedding:  d.Embedding,
			Confidence: d.Confidence,
		})
	}
	return faces, nil
}
