// Package barcode extracts barcode payloads from product photos.
package barcode

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"go.trai.ch/zerr"
)

// CanonicalWidth is the width every image is rescaled to before detection.
const CanonicalWidth = 800

// Size limits checked before any pixel buffer is allocated.
const (
	MaxSourcePixels = 40_000_000
	MaxScaledHeight = 8000
)

// ErrDecodeFailed is returned when the image bytes cannot be read as an image.
// It is distinct from finding zero barcodes, which is not an error.
var ErrDecodeFailed = zerr.New("image decode failed")

// Barcode is a single symbol found in an image.
type Barcode struct {
	Payload   string `json:"payload"`
	Symbology string `json:"symbology"`
}

// Detector finds symbols in a preprocessed grayscale image.
type Detector interface {
	Detect(img *image.Gray) []Barcode
}

// Decoder turns raw image bytes into barcodes.
type Decoder struct {
	width    int
	detector Detector
	logger   *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithWidth overrides CanonicalWidth.
func WithWidth(width int) Option {
	return func(d *Decoder) { d.width = width }
}

// WithDetector replaces the default gozxing detector.
func WithDetector(det Detector) Option {
	return func(d *Decoder) { d.detector = det }
}

// NewDecoder returns a Decoder using the gozxing readers.
func NewDecoder(logger *slog.Logger, opts ...Option) *Decoder {
	d := &Decoder{
		width:    CanonicalWidth,
		detector: NewZXingDetector(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads an encoded image (JPEG, PNG, GIF, BMP or WebP) and returns the
// barcodes found in it, in detection order. An image without barcodes yields
// an empty slice and a nil error.
func (d *Decoder) Decode(data []byte) ([]Barcode, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		d.logger.Error("image decode failed", "error", err, "bytes", len(data))
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	if err := d.checkSize(cfg.Width, cfg.Height); err != nil {
		d.logger.Warn("image rejected", "error", err, "width", cfg.Width, "height", cfg.Height)
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		d.logger.Error("image decode failed", "error", err, "bytes", len(data))
		return nil, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	d.logger.Debug("image decoded", "format", format, "bounds", img.Bounds().String())
	return d.DecodeImage(img)
}

// DecodeImage runs detection on an already decoded image.
func (d *Decoder) DecodeImage(img image.Image) ([]Barcode, error) {
	b := img.Bounds()
	if err := d.checkSize(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}

	found := d.detector.Detect(Preprocess(img, d.width))
	codes := dedupe(found)

	if len(codes) == 0 {
		d.logger.Info("no barcodes found in image")
	} else {
		d.logger.Info("barcodes found", "count", len(codes))
	}
	return codes, nil
}

// checkSize rejects empty images and images whose source or rescaled
// buffers would exceed the size limits.
func (d *Decoder) checkSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: empty image", ErrDecodeFailed)
	}
	if int64(w)*int64(h) > MaxSourcePixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecodeFailed, w, h, MaxSourcePixels)
	}
	if int64(d.width)*int64(h)/int64(w) > MaxScaledHeight {
		return fmt.Errorf("%w: %dx%d rescales taller than %d px", ErrDecodeFailed, w, h, MaxScaledHeight)
	}
	return nil
}

// dedupe drops repeated (payload, symbology) pairs, keeping first occurrence.
func dedupe(codes []Barcode) []Barcode {
	out := make([]Barcode, 0, len(codes))
	seen := make(map[Barcode]struct{}, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
