package scan

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"

	"github.com/wozniakbe/nutriscan/internal/barcode"
	"github.com/wozniakbe/nutriscan/internal/cache"
	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

type stubFetcher struct {
	records map[string]nutrition.Record
	calls   []string
}

func (s *stubFetcher) Fetch(_ context.Context, code string) (nutrition.Record, bool) {
	s.calls = append(s.calls, code)
	rec, ok := s.records[code]
	return rec, ok
}

type stubDecoder struct {
	codes []barcode.Barcode
	err   error
}

func (s *stubDecoder) Decode([]byte) ([]barcode.Barcode, error) {
	return s.codes, s.err
}

// countingCache wraps a cache.Store, counts lookups and records the
// context state seen by each Put.
type countingCache struct {
	*cache.Store
	gets    []string
	putErrs []error
}

func (c *countingCache) Put(ctx context.Context, code string, rec nutrition.Record) error {
	c.putErrs = append(c.putErrs, ctx.Err())
	return c.Store.Put(ctx, code, rec)
}

func (c *countingCache) Get(code string) (nutrition.Record, bool) {
	c.gets = append(c.gets, code)
	return c.Store.Get(code)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

var cereal = nutrition.Record{Name: "Cereal", Calories: 120, Protein: 3, Fat: 2, Carbs: 20, Sugar: 5, Fiber: 2}

func newFixture(t *testing.T, seed map[string]nutrition.Record, remote map[string]nutrition.Record) (*Resolver, *countingCache, *cache.MemoryBackend, *stubFetcher) {
	t.Helper()
	backend := cache.NewMemoryBackend(seed)
	store, err := cache.Load(context.Background(), backend, testLogger())
	if err != nil {
		t.Fatalf("cache load: %v", err)
	}
	cc := &countingCache{Store: store}
	fetcher := &stubFetcher{records: remote}
	return NewResolver(cc, fetcher, testLogger()), cc, backend, fetcher
}

func ean(code string) barcode.Barcode {
	return barcode.Barcode{Payload: code, Symbology: barcode.EAN13}
}

func TestResolve_CacheHitMakesNoRemoteCall(t *testing.T) {
	r, _, backend, fetcher := newFixture(t, map[string]nutrition.Record{"4006381333931": cereal}, nil)

	res := r.Resolve(context.Background(), []barcode.Barcode{ean("4006381333931")})

	if !res.Found() || *res.Record != cereal {
		t.Fatalf("expected cached cereal, got %+v", res.Record)
	}
	if res.Source != SourceCache {
		t.Fatalf("expected cache source, got %s", res.Source)
	}
	if len(fetcher.calls) != 0 {
		t.Fatalf("expected zero remote calls, got %v", fetcher.calls)
	}
	if backend.Saves != 0 {
		t.Fatalf("cache hit must not persist, saves=%d", backend.Saves)
	}
}

func TestResolve_MissFetchesOnceAndCaches(t *testing.T) {
	r, cc, backend, fetcher := newFixture(t, nil, map[string]nutrition.Record{"4006381333931": cereal})
	ctx := context.Background()

	res := r.Resolve(ctx, []barcode.Barcode{ean("4006381333931")})
	if !res.Found() || res.Source != SourceRemote {
		t.Fatalf("expected remote hit, got %+v", res)
	}
	if len(fetcher.calls) != 1 {
		t.Fatalf("expected exactly one remote call, got %d", len(fetcher.calls))
	}
	if got := backend.Snapshot()["4006381333931"]; got != cereal {
		t.Fatalf("expected record persisted, got %+v", got)
	}

	// A second resolve is served from the cache and leaves the stored value alone.
	res = r.Resolve(ctx, []barcode.Barcode{ean("4006381333931")})
	if res.Source != SourceCache || len(fetcher.calls) != 1 {
		t.Fatalf("expected cache hit on second resolve, source=%s calls=%d", res.Source, len(fetcher.calls))
	}
	reloaded, _ := cache.Load(ctx, backend, testLogger())
	if rec, _ := reloaded.Get("4006381333931"); rec != cereal {
		t.Fatalf("expected unchanged record across loads, got %+v", rec)
	}
	if len(cc.gets) != 2 {
		t.Fatalf("expected two cache lookups, got %d", len(cc.gets))
	}
}

func TestResolve_PDF417NeverQueried(t *testing.T) {
	r, cc, _, fetcher := newFixture(t,
		map[string]nutrition.Record{"PDF-DATA": cereal},
		map[string]nutrition.Record{"PDF-DATA": cereal})

	res := r.Resolve(context.Background(), []barcode.Barcode{{Payload: "PDF-DATA", Symbology: barcode.PDF417}})

	if res.Found() {
		t.Fatal("PDF417 payload must not resolve")
	}
	if !reflect.DeepEqual(res.Unsupported, []string{"PDF-DATA"}) {
		t.Fatalf("expected unsupported payload reported, got %v", res.Unsupported)
	}
	if len(cc.gets) != 0 || len(fetcher.calls) != 0 {
		t.Fatalf("expected no cache or remote access, gets=%v calls=%v", cc.gets, fetcher.calls)
	}
}

func TestResolve_UnknownBarcodeLeavesCacheUnchanged(t *testing.T) {
	r, cc, backend, fetcher := newFixture(t, nil, nil)

	res := r.Resolve(context.Background(), []barcode.Barcode{ean("0000000000000")})

	if res.Found() {
		t.Fatalf("expected absent, got %+v", res.Record)
	}
	if len(fetcher.calls) != 1 {
		t.Fatalf("expected one remote call, got %d", len(fetcher.calls))
	}
	if cc.Len() != 0 || backend.Saves != 0 {
		t.Fatalf("cache must stay unchanged, len=%d saves=%d", cc.Len(), backend.Saves)
	}
	want := []Attempt{{Barcode: ean("0000000000000"), Outcome: OutcomeNotFound}}
	if !reflect.DeepEqual(res.Attempts, want) {
		t.Fatalf("expected %v, got %v", want, res.Attempts)
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	other := nutrition.Record{Name: "Other", Calories: 10}
	r, _, _, fetcher := newFixture(t, nil, map[string]nutrition.Record{"2": cereal, "3": other})

	res := r.Resolve(context.Background(), []barcode.Barcode{
		{Payload: "P", Symbology: barcode.PDF417},
		ean("1"),
		ean("2"),
		ean("3"),
	})

	if !res.Found() || *res.Record != cereal || res.Barcode.Payload != "2" {
		t.Fatalf("expected barcode 2 to win, got %+v", res)
	}
	if !reflect.DeepEqual(fetcher.calls, []string{"1", "2"}) {
		t.Fatalf("expected lookups for 1 and 2 only, got %v", fetcher.calls)
	}
	if len(res.Unsupported) != 1 {
		t.Fatalf("expected one unsupported payload, got %v", res.Unsupported)
	}
}

func TestPipeline_NoBarcodesMakesNoCalls(t *testing.T) {
	r, cc, _, fetcher := newFixture(t, nil, map[string]nutrition.Record{"1": cereal})
	p := NewPipeline(&stubDecoder{codes: []barcode.Barcode{}}, r)

	rep, err := p.Scan(context.Background(), []byte("img"), nutrition.DefaultThresholds)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if rep.Found() || rep.Evaluation != nil {
		t.Fatalf("expected empty report, got %+v", rep)
	}
	if len(cc.gets) != 0 || len(fetcher.calls) != 0 {
		t.Fatal("expected no lookups for an image without barcodes")
	}
}

func TestPipeline_DecodeFailure(t *testing.T) {
	r, _, _, _ := newFixture(t, nil, nil)
	p := NewPipeline(&stubDecoder{err: barcode.ErrDecodeFailed}, r)

	if _, err := p.Scan(context.Background(), nil, nutrition.DefaultThresholds); !errors.Is(err, barcode.ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestPipeline_EvaluatesResolvedRecord(t *testing.T) {
	r, _, _, _ := newFixture(t, map[string]nutrition.Record{"1": cereal}, nil)
	p := NewPipeline(&stubDecoder{codes: []barcode.Barcode{ean("1")}}, r)
	th := nutrition.Thresholds{MaxCalories: 100, MinProtein: 2, MaxFat: 5, MaxCarbs: 90, MaxSugar: 10, MinFiber: 1}

	rep, err := p.Scan(context.Background(), []byte("img"), th)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if rep.Evaluation == nil || rep.Evaluation.Passed {
		t.Fatalf("expected failed evaluation, got %+v", rep.Evaluation)
	}
	if !reflect.DeepEqual(rep.Evaluation.Mismatches, []string{"Calories (120 > 100)"}) {
		t.Fatalf("unexpected mismatches %v", rep.Evaluation.Mismatches)
	}
}

func TestResolve_PersistsAfterCallerCancels(t *testing.T) {
	r, cc, backend, _ := newFixture(t, nil, map[string]nutrition.Record{"4006381333931": cereal})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.Resolve(ctx, []barcode.Barcode{ean("4006381333931")})
	if !res.Found() {
		t.Fatalf("expected remote hit, got %+v", res)
	}
	if len(cc.putErrs) != 1 || cc.putErrs[0] != nil {
		t.Fatalf("expected one Put with a live context, got %v", cc.putErrs)
	}
	if got := backend.Snapshot()["4006381333931"]; got != cereal {
		t.Fatalf("expected record persisted, got %+v", got)
	}
}
