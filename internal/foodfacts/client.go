// Package foodfacts looks up products in the Open Food Facts database.
package foodfacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

const (
	// DefaultBaseURL is the public Open Food Facts host.
	DefaultBaseURL = "https://world.openfoodfacts.org"

	// DefaultTimeout bounds a single lookup.
	DefaultTimeout = 5 * time.Second

	// UnknownProduct names products the database returns without a name.
	UnknownProduct = "Unknown Product"

	statusFound = 1
)

// Client fetches nutrition facts by barcode. Every failure mode collapses
// into a "not found" result; details go to the logger.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

// NewClient builds a client for baseURL with the given per-request timeout.
func NewClient(baseURL string, timeout time.Duration, userAgent string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type productResponse struct {
	Status  int             `json:"status"`
	Product json.RawMessage `json:"product"`
}

type product struct {
	ProductName *string `json:"product_name"`
	Nutriments  struct {
		EnergyKcal flexFloat `json:"energy-kcal_100g"`
		Fat        flexFloat `json:"fat_100g"`
		Carbs      flexFloat `json:"carbohydrates_100g"`
		Proteins   flexFloat `json:"proteins_100g"`
		Sugars     flexFloat `json:"sugars_100g"`
		Fiber      flexFloat `json:"fiber_100g"`
	} `json:"nutriments"`
}

// Fetch looks up code. It reports false when the product is unknown, the
// response is malformed, or the request fails.
func (c *Client) Fetch(ctx context.Context, code string) (nutrition.Record, bool) {
	u := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, url.PathEscape(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.logger.Error("food database request build failed", "barcode", code, "error", err)
		return nutrition.Record{}, false
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("food database request failed", "barcode", code, "error", err)
		return nutrition.Record{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("food database returned non-200", "barcode", code, "status", resp.StatusCode)
		return nutrition.Record{}, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("food database response read failed", "barcode", code, "error", err)
		return nutrition.Record{}, false
	}

	rec, ok, err := parse(body)
	if err != nil {
		c.logger.Error("food database response parse failed", "barcode", code, "error", err)
		return nutrition.Record{}, false
	}
	if !ok {
		c.logger.Warn("no product found", "barcode", code)
		return nutrition.Record{}, false
	}

	c.logger.Info("product fetched", "barcode", code, "name", rec.Name)
	return rec, true
}

// parse maps a product response to a Record. ok is false when the response
// does not describe a found product.
func parse(body []byte) (rec nutrition.Record, ok bool, err error) {
	var pr productResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nutrition.Record{}, false, err
	}
	if pr.Status != statusFound || isEmptyObject(pr.Product) {
		return nutrition.Record{}, false, nil
	}

	var p product
	if err := json.Unmarshal(pr.Product, &p); err != nil {
		return nutrition.Record{}, false, err
	}

	name := UnknownProduct
	if p.ProductName != nil && strings.TrimSpace(*p.ProductName) != "" {
		name = *p.ProductName
	}

	n := p.Nutriments
	return nutrition.Record{
		Name:     name,
		Calories: float64(n.EnergyKcal),
		Fat:      float64(n.Fat),
		Carbs:    float64(n.Carbs),
		Protein:  float64(n.Proteins),
		Sugar:    float64(n.Sugars),
		Fiber:    float64(n.Fiber),
	}, true, nil
}

func isEmptyObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return true
	}
	return len(fields) == 0
}

// flexFloat accepts a JSON number or a numeric string. Anything else,
// including null, decodes as 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = flexFloat(v)
		}
	}
	return nil
}
