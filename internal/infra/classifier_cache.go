package infra

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

const (
	defaultClassifierCacheSize = 256
	defaultClassifierCacheTTL  = 60 * time.Second
)

// ClassifierCacheConfig configures CachedClassifier.
type ClassifierCacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

// DefaultClassifierCacheConfig returns the default cache bounds.
func DefaultClassifierCacheConfig() ClassifierCacheConfig {
	return ClassifierCacheConfig{
		MaxSize: defaultClassifierCacheSize,
		TTL:     defaultClassifierCacheTTL,
	}
}

type classification struct {
	category domain.Category
	storedAt time.Time
}

// CachedClassifier memoizes a ContentClassifier by page URL.
// Failures are never cached.
type CachedClassifier struct {
	delegate domain.ContentClassifier
	cache    *lru.Cache[string, classification]
	ttl      time.Duration
	now      func() time.Time
}

// NewCachedClassifier wraps delegate. Zero config values fall back to defaults.
func NewCachedClassifier(delegate domain.ContentClassifier, config ClassifierCacheConfig) (*CachedClassifier, error) {
	if config.MaxSize <= 0 {
		config.MaxSize = defaultClassifierCacheSize
	}
	if config.TTL <= 0 {
		config.TTL = defaultClassifierCacheTTL
	}
	cache, err := lru.New[string, classification](config.MaxSize)
	if err != nil {
		return nil, err
	}
	return &CachedClassifier{
		delegate: delegate,
		cache:    cache,
		ttl:      config.TTL,
		now:      time.Now,
	}, nil
}

// Classify returns a cached category younger than the TTL, else asks the delegate.
func (c *CachedClassifier) Classify(ctx context.Context, page domain.PageInfo) (domain.Category, error) {
	if entry, ok := c.cache.Get(page.URL); ok {
		if c.now().Sub(entry.storedAt) < c.ttl {
			return entry.category, nil
		}
		c.cache.Remove(page.URL)
	}

	category, err := c.delegate.Classify(ctx, page)
	if err != nil {
		return "", err
	}
	c.cache.Add(page.URL, classification{category: category, storedAt: c.now()})
	return category, nil
}

// Len returns the number of cached entries, expired ones included.
func (c *CachedClassifier) Len() int {
	return c.cache.Len()
}

// Ensure CachedClassifier implements domain.ContentClassifier.
var _ domain.ContentClassifier = (*CachedClassifier)(nil)
