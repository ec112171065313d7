package foodfacts

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

type seenRequest struct {
	path      string
	userAgent string
}

// newTestServer serves body with status for every request and records the
// last request path and user agent.
func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *seenRequest) {
	t.Helper()
	last := &seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.path = r.URL.Path
		last.userAgent = r.UserAgent()
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, last
}

func TestFetch_Found(t *testing.T) {
	srv, last := newTestServer(t, http.StatusOK, `{
		"status": 1,
		"product": {
			"product_name": "Corn Flakes",
			"nutriments": {
				"energy-kcal_100g": 357,
				"fat_100g": 0.9,
				"carbohydrates_100g": 84,
				"proteins_100g": 7,
				"sugars_100g": 8,
				"fiber_100g": 3
			}
		}
	}`)
	c := NewClient(srv.URL, time.Second, "nutriscan-test", testLogger())

	rec, ok := c.Fetch(context.Background(), "5053827154251")
	if !ok {
		t.Fatal("expected product to be found")
	}
	want := nutrition.Record{Name: "Corn Flakes", Calories: 357, Fat: 0.9, Carbs: 84, Protein: 7, Sugar: 8, Fiber: 3}
	if rec != want {
		t.Fatalf("expected %+v, got %+v", want, rec)
	}
	if last.path != "/api/v0/product/5053827154251.json" {
		t.Fatalf("unexpected path %s", last.path)
	}
	if last.userAgent != "nutriscan-test" {
		t.Fatalf("expected user agent header, got %q", last.userAgent)
	}
}

func TestFetch_MissingFieldsDefault(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{
		"status": 1,
		"product": {"nutriments": {"sugars_100g": "4.5", "fat_100g": null}}
	}`)
	c := NewClient(srv.URL, time.Second, "", testLogger())

	rec, ok := c.Fetch(context.Background(), "1")
	if !ok {
		t.Fatal("expected product to be found")
	}
	want := nutrition.Record{Name: UnknownProduct, Sugar: 4.5}
	if rec != want {
		t.Fatalf("expected %+v, got %+v", want, rec)
	}
}

func TestFetch_Absent(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non-200", http.StatusNotFound, `{"status": 1, "product": {"product_name": "x"}}`},
		{"server error", http.StatusInternalServerError, ``},
		{"status zero", http.StatusOK, `{"status": 0, "status_verbose": "product not found"}`},
		{"missing product", http.StatusOK, `{"status": 1}`},
		{"empty product", http.StatusOK, `{"status": 1, "product": {}}`},
		{"malformed json", http.StatusOK, `{"status": 1, "product": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body)
			c := NewClient(srv.URL, time.Second, "", testLogger())

			if rec, ok := c.Fetch(context.Background(), "0000000000000"); ok {
				t.Fatalf("expected absent, got %+v", rec)
			}
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"status": 1, "product": {"product_name": "slow"}}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, 20*time.Millisecond, "", testLogger())

	if _, ok := c.Fetch(context.Background(), "1"); ok {
		t.Fatal("expected timeout to collapse into absent")
	}
}

func TestFetch_Unreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, "", testLogger())

	if _, ok := c.Fetch(context.Background(), "1"); ok {
		t.Fatal("expected connection error to collapse into absent")
	}
}
