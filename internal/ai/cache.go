package ai

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/amishk599/searchradar/internal/model"
)

// JudgmentCache holds successful opportunity judgments keyed by normalized
// company name. It is safe for concurrent use.
type JudgmentCache struct {
	lru *expirable.LRU[string, model.OpportunityJudgment]
}

// NewJudgmentCache creates a cache. A zero ttl keeps entries for the lifetime
// of the process; a zero maxEntries leaves the cache unbounded. When full, the
// least recently used entry is evicted.
func NewJudgmentCache(ttl time.Duration, maxEntries int) *JudgmentCache {
	return &JudgmentCache{
		lru: expirable.NewLRU[string, model.OpportunityJudgment](maxEntries, nil, ttl),
	}
}

// CacheKey lower-cases and trims a company name.
func CacheKey(company string) string {
	return strings.ToLower(strings.TrimSpace(company))
}

// Get returns a copy of the cached judgment for company, if present and fresh.
func (c *JudgmentCache) Get(company string) (*model.OpportunityJudgment, bool) {
	j, ok := c.lru.Get(CacheKey(company))
	if !ok {
		return nil, false
	}
	return &j, true
}

// Put stores j for company.
func (c *JudgmentCache) Put(company string, j model.OpportunityJudgment) {
	c.lru.Add(CacheKey(company), j)
}

// Len returns the number of cached judgments.
func (c *JudgmentCache) Len() int {
	return c.lru.Len()
}
