package scan

import (
	"context"

	"github.com/wozniakbe/nutriscan/internal/barcode"
	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// Decoder extracts barcodes from image bytes.
type Decoder interface {
	Decode(data []byte) ([]barcode.Barcode, error)
}

// Evaluation is the outcome of comparing a record with thresholds.
type Evaluation struct {
	Passed     bool                 `json:"passed"`
	Mismatches []string             `json:"mismatches"`
	Thresholds nutrition.Thresholds `json:"thresholds"`
}

// Report is everything produced by one scan.
type Report struct {
	Barcodes []barcode.Barcode `json:"barcodes"`
	Result
	Evaluation *Evaluation `json:"evaluation,omitempty"`
}

// Pipeline runs decode → resolve → evaluate for one image.
type Pipeline struct {
	decoder  Decoder
	resolver *Resolver
}

// NewPipeline creates a Pipeline.
func NewPipeline(decoder Decoder, resolver *Resolver) *Pipeline {
	return &Pipeline{decoder: decoder, resolver: resolver}
}

// Scan decodes img, resolves the barcodes it holds and, when a record is
// found, evaluates it against th. The only error returned is a decode
// failure (barcode.ErrDecodeFailed); every lookup failure ends in a Report
// with no record.
func (p *Pipeline) Scan(ctx context.Context, img []byte, th nutrition.Thresholds) (Report, error) {
	codes, err := p.decoder.Decode(img)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Barcodes: codes}
	if len(codes) == 0 {
		return rep, nil
	}

	rep.Result = p.resolver.Resolve(ctx, codes)
	if rep.Found() {
		rep.Evaluation = Evaluate(rep.Record, th)
	}
	return rep, nil
}

// Evaluate wraps nutrition.Evaluate for a resolved record.
func Evaluate(rec *nutrition.Record, th nutrition.Thresholds) *Evaluation {
	passed, mismatches := nutrition.Evaluate(rec, th)
	return &Evaluation{Passed: passed, Mismatches: mismatches, Thresholds: th}
}
