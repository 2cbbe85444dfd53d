// Package catalog reads products from the content service and degrades to
// cached or built-in data when the service misbehaves.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Fallback sources, also used as metric labels.
const (
	SourceLive     = "live"
	SourceCache    = "cache"
	SourceDefaults = "defaults"
	SourceEmpty    = "empty"
)

// Cache keeps the last good response per query.
type Cache interface {
	CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error
	CacheGet(ctx context.Context, key string) ([]byte, error)
}

// Query selects products. WithDefaults lets the call site accept the built-in
// product set when neither the service nor the cache can answer.
type Query struct {
	Tag          string
	Limit        int
	WithDefaults bool
}

// Result is a product list and where it came from.
type Result struct {
	Products []models.Product `json:"data"`
	Source   string           `json:"source"`
}

// FetchError describes why the live catalog could not be used.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog fetch failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("catalog fetch failed (status %d)", e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

type envelope struct {
	Success bool             `json:"success"`
	Data    []models.Product `json:"data"`
}

// Client talks to GET {base}/api/products.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewClient creates a catalog client. cache may be nil.
func NewClient(baseURL string, timeout time.Duration, cache Cache, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// List never fails. It tries the live service, then the cache, then the
// built-in defaults if q allows them, and finally returns an empty list.
func (c *Client) List(ctx context.Context, q Query) Result {
	ctx, span := util.StartSpan(ctx, "CatalogClient.List",
		attribute.String("tag", q.Tag),
		attribute.Int("limit", q.Limit))
	defer span.End()

	key := cacheKey(q)

	products, err := c.fetch(ctx, q)
	if err == nil {
		c.store(ctx, key, products)
		return Result{Products: products, Source: SourceLive}
	}

	c.logger.Warn("Catalog fetch failed, falling back",
		zap.String("tag", q.Tag),
		zap.Int("limit", q.Limit),
		zap.Error(err))

	if cached, ok := c.cached(ctx, key); ok {
		util.CatalogFallbacksTotal.WithLabelValues(SourceCache).Inc()
		return Result{Products: cached, Source: SourceCache}
	}

	if q.WithDefaults {
		util.CatalogFallbacksTotal.WithLabelValues(SourceDefaults).Inc()
		return Result{Products: Defaults(q.Tag, q.Limit), Source: SourceDefaults}
	}

	util.CatalogFallbacksTotal.WithLabelValues(SourceEmpty).Inc()
	return Result{Products: []models.Product{}, Source: SourceEmpty}
}

func (c *Client) fetch(ctx context.Context, q Query) ([]models.Product, error) {
	params := url.Values{}
	if q.Tag != "" {
		params.Set("tag", q.Tag)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	endpoint := c.baseURL + "/api/products"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Status: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("failed to decode catalog response: %w", err)}
	}
	if !env.Success {
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("catalog reported success=false")}
	}
	if env.Data == nil {
		env.Data = []models.Product{}
	}
	return env.Data, nil
}

func (c *Client) store(ctx context.Context, key string, products []models.Product) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := c.cache.CacheSet(ctx, key, raw, c.cacheTTL); err != nil {
		c.logger.Warn("Failed to cache catalog response", zap.String("key", key), zap.Error(err))
	}
}

func (c *Client) cached(ctx context.Context, key string) ([]models.Product, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, err := c.cache.CacheGet(ctx, key)
	if err != nil {
		return nil, false
	}
	var products []models.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		c.logger.Warn("Discarding unreadable catalog cache entry", zap.String("key", key))
		return nil, false
	}
	return products, true
}

func cacheKey(q Query) string {
	return fmt.Sprintf("catalog:products:tag=%s:limit=%d", q.Tag, q.Limit)
}
