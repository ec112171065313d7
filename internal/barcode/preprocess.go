package barcode

import (
	"image"

	"golang.org/x/image/draw"
)

// Preprocess rescales img to the given width, keeping the aspect ratio, and
// converts the result to 8-bit grayscale. Results recorded by earlier scans
// depend on this exact sequence: bilinear scale first, then luma conversion.
func Preprocess(img image.Image, width int) *image.Gray {
	b := img.Bounds()
	aspect := float64(b.Dx()) / float64(b.Dy())
	height := max(int(float64(width)/aspect), 1)

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)

	gray := image.NewGray(scaled.Bounds())
	draw.Draw(gray, gray.Bounds(), scaled, image.Point{}, draw.Src)
	return gray
}
