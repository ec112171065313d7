// Package scan resolves decoded barcodes to nutrition records and evaluates
// them against a user's thresholds.
package scan

import (
	"context"
	"log/slog"

	"github.com/wozniakbe/nutriscan/internal/barcode"
	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// RecordCache is the barcode → record cache consulted before any remote call.
type RecordCache interface {
	Get(code string) (nutrition.Record, bool)
	Put(ctx context.Context, code string, rec nutrition.Record) error
}

// Fetcher looks up a barcode in a remote food database.
type Fetcher interface {
	Fetch(ctx context.Context, code string) (nutrition.Record, bool)
}

// Source says where a resolved record came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceRemote Source = "remote"
)

// Outcome is what happened to one barcode during resolution.
type Outcome string

const (
	OutcomeCacheHit    Outcome = "cache-hit"
	OutcomeRemoteHit   Outcome = "remote-hit"
	OutcomeNotFound    Outcome = "not-found"
	OutcomeUnsupported Outcome = "unsupported"
)

// Attempt records the outcome for one barcode.
type Attempt struct {
	Barcode barcode.Barcode `json:"barcode"`
	Outcome Outcome         `json:"outcome"`
}

// Result is the outcome of resolving the barcodes of one image. Record is
// nil when nothing resolved. A remote miss and a remote error both show up
// as OutcomeNotFound.
type Result struct {
	Record      *nutrition.Record `json:"record,omitempty"`
	Barcode     *barcode.Barcode  `json:"barcode,omitempty"`
	Source      Source            `json:"source,omitempty"`
	Unsupported []string          `json:"unsupported,omitempty"`
	Attempts    []Attempt         `json:"attempts,omitempty"`
}

// Found reports whether a record was resolved.
func (r Result) Found() bool {
	return r.Record != nil
}

// Resolver turns barcodes into nutrition records.
type Resolver struct {
	cache   RecordCache
	fetcher Fetcher
	logger  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cache RecordCache, fetcher Fetcher, logger *slog.Logger) *Resolver {
	return &Resolver{cache: cache, fetcher: fetcher, logger: logger}
}

// Resolve walks codes in order and returns the first one that resolves.
// PDF417 symbols are skipped without touching the cache or the fetcher.
func (r *Resolver) Resolve(ctx context.Context, codes []barcode.Barcode) Result {
	var res Result
	for _, bc := range codes {
		if bc.Symbology == barcode.PDF417 {
			r.logger.Warn("skipping unsupported PDF417 barcode", "barcode", bc.Payload)
			res.Unsupported = append(res.Unsupported, bc.Payload)
			res.Attempts = append(res.Attempts, Attempt{Barcode: bc, Outcome: OutcomeUnsupported})
			continue
		}

		if rec, ok := r.cache.Get(bc.Payload); ok {
			r.logger.Info("barcode found in cache", "barcode", bc.Payload, "name", rec.Name)
			res.Attempts = append(res.Attempts, Attempt{Barcode: bc, Outcome: OutcomeCacheHit})
			return res.found(bc, rec, SourceCache)
		}

		r.logger.Debug("cache miss", "barcode", bc.Payload)
		if rec, ok := r.fetcher.Fetch(ctx, bc.Payload); ok {
			// The record is persisted even if the caller goes away.
			if err := r.cache.Put(context.WithoutCancel(ctx), bc.Payload, rec); err != nil {
				r.logger.Warn("fetched record not cached", "barcode", bc.Payload, "error", err)
			}
			res.Attempts = append(res.Attempts, Attempt{Barcode: bc, Outcome: OutcomeRemoteHit})
			return res.found(bc, rec, SourceRemote)
		}

		r.logger.Warn("barcode not found in cache or food database", "barcode", bc.Payload)
		res.Attempts = append(res.Attempts, Attempt{Barcode: bc, Outcome: OutcomeNotFound})
	}

	if len(codes) > 0 {
		r.logger.Info("no barcode resolved", "barcodes", len(codes))
	}
	return res
}

// ResolveCode resolves a single payload of unknown symbology.
func (r *Resolver) ResolveCode(ctx context.Context, code string) Result {
	return r.Resolve(ctx, []barcode.Barcode{{Payload: code}})
}

func (r Result) found(bc barcode.Barcode, rec nutrition.Record, src Source) Result {
	r.Record = &rec
	r.Barcode = &bc
	r.Source = src
	return r
}
