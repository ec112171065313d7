package barcode

import (
	"image"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Symbology names reported in Barcode.Symbology. gozxing has no PDF417
// reader, so ZXingDetector never reports PDF417; the name exists for other
// Detector implementations.
const (
	UPCA    = "UPC-A"
	UPCE    = "UPC-E"
	EAN13   = "EAN-13"
	EAN8    = "EAN-8"
	Code128 = "CODE-128"
	PDF417  = "PDF417"
	QRCode  = "QR-CODE"
)

const (
	// cropMinPadding is the smallest margin left of a found symbol that is
	// worth searching again.
	cropMinPadding = 100
	cropMaxDepth   = 4
)

// ZXingDetector finds UPC/EAN, Code 128 and QR symbols. Single-symbol
// readers are re-run on the regions around each hit, so an image holding
// several codes reports all of them.
type ZXingDetector struct {
	readers []gozxing.Reader
	qrMulti multi.MultipleBarcodeReader
	hints   map[gozxing.DecodeHintType]interface{}
}

// NewZXingDetector builds the default reader set.
func NewZXingDetector() *ZXingDetector {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return &ZXingDetector{
		readers: []gozxing.Reader{
			oned.NewMultiFormatUPCEANReader(hints),
			oned.NewCode128Reader(),
			qrcode.NewQRCodeReader(),
		},
		qrMulti: multiqr.NewQRCodeMultiReader(),
		hints:   hints,
	}
}

// Detect implements Detector. Reader errors mean "nothing found by this
// reader" and are not reported.
func (z *ZXingDetector) Detect(img *image.Gray) []Barcode {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil
	}

	var results []*gozxing.Result
	for _, r := range z.readers {
		results = z.decodeRegions(r, bmp, results, 0)
	}
	if found, err := z.qrMulti.DecodeMultiple(bmp, z.hints); err == nil {
		results = append(results, found...)
	}

	out := make([]Barcode, 0, len(results))
	for _, res := range results {
		out = append(out, Barcode{
			Payload:   res.GetText(),
			Symbology: symbologyName(res.GetBarcodeFormat()),
		})
	}
	return out
}

// decodeRegions decodes one symbol with r, then searches the strips left,
// above, right and below it for more, up to cropMaxDepth levels deep.
func (z *ZXingDetector) decodeRegions(r gozxing.Reader, bmp *gozxing.BinaryBitmap, acc []*gozxing.Result, depth int) []*gozxing.Result {
	if depth > cropMaxDepth {
		return acc
	}
	res, err := r.Decode(bmp, z.hints)
	r.Reset()
	if err != nil {
		return acc
	}
	if !containsResult(acc, res) {
		acc = append(acc, res)
	}

	points := res.GetResultPoints()
	if len(points) == 0 {
		return acc
	}

	width, height := bmp.GetWidth(), bmp.GetHeight()
	minX, minY := float64(width), float64(height)
	maxX, maxY := 0.0, 0.0
	for _, p := range points {
		if p == nil {
			continue
		}
		minX, maxX = min(minX, p.GetX()), max(maxX, p.GetX())
		minY, maxY = min(minY, p.GetY()), max(maxY, p.GetY())
	}

	crop := func(left, top, w, h int) {
		if w <= 0 || h <= 0 {
			return
		}
		sub, err := bmp.Crop(left, top, w, h)
		if err != nil {
			return
		}
		acc = z.decodeRegions(r, sub, acc, depth+1)
	}
	if minX > cropMinPadding {
		crop(0, 0, int(minX), height)
	}
	if minY > cropMinPadding {
		crop(0, 0, width, int(minY))
	}
	if maxX < float64(width-cropMinPadding) {
		crop(int(maxX), 0, width-int(maxX), height)
	}
	if maxY < float64(height-cropMinPadding) {
		crop(0, int(maxY), width, height-int(maxY))
	}
	return acc
}

func containsResult(results []*gozxing.Result, res *gozxing.Result) bool {
	for _, r := range results {
		if r.GetText() == res.GetText() && r.GetBarcodeFormat() == res.GetBarcodeFormat() {
			return true
		}
	}
	return false
}

func symbologyName(f gozxing.BarcodeFormat) string {
	switch f {
	case gozxing.BarcodeFormat_UPC_A:
		return UPCA
	case gozxing.BarcodeFormat_UPC_E:
		return UPCE
	case gozxing.BarcodeFormat_EAN_13:
		return EAN13
	case gozxing.BarcodeFormat_EAN_8:
		return EAN8
	case gozxing.BarcodeFormat_CODE_128:
		return Code128
	case gozxing.BarcodeFormat_PDF_417:
		return PDF417
	case gozxing.BarcodeFormat_QR_CODE:
		return QRCode
	default:
		return strings.ReplaceAll(f.String(), "_", "-")
	}
}
