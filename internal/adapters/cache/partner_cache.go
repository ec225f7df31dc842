package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
)

// cacheTTL bounds staleness for entries that miss an invalidation
const cacheTTL = 5 * time.Minute

type entry struct {
	partner  *partner.Partner
	cachedAt time.Time
}

// PartnerCache is a read-through cache over the partner repository.
// Reads hit the cache; every write goes to the store and evicts. The
// PartnerStatusChanged consumer evicts cross-process changes.
type PartnerCache struct {
	inner partner.Repository
	clock shared.Clock

	mu      sync.RWMutex
	entries map[string]entry
}

// NewPartnerCache wraps a partner repository
func NewPartnerCache(inner partner.Repository, clock shared.Clock) *PartnerCache {
	return &PartnerCache{
		inner:   inner,
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// FindByID serves from cache within the TTL, reading through on miss
func (c *PartnerCache) FindByID(ctx context.Context, partnerID string) (*partner.Partner, error) {
	c.mu.RLock()
	e, ok := c.entries[partnerID]
	c.mu.RUnlock()
	if ok && c.clock.Now().Sub(e.cachedAt) < cacheTTL {
		return e.partner, nil
	}

	p, err := c.inner.FindByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[partnerID] = entry{partner: p, cachedAt: c.clock.Now()}
	c.mu.Unlock()
	return p, nil
}

// Save writes through and evicts
func (c *PartnerCache) Save(ctx context.Context, p *partner.Partner) error {
	if err := c.inner.Save(ctx, p); err != nil {
		return err
	}
	c.Invalidate(p.ID)
	return nil
}

// Update writes through and evicts
func (c *PartnerCache) Update(ctx context.Context, p *partner.Partner) error {
	if err := c.inner.Update(ctx, p); err != nil {
		return err
	}
	c.Invalidate(p.ID)
	return nil
}

// FindLinked always reads the store; identity-link queries must not
// miss a partner another process just changed.
func (c *PartnerCache) FindLinked(ctx context.Context, p *partner.Partner) ([]*partner.Partner, error) {
	return c.inner.FindLinked(ctx, p)
}

// Invalidate evicts one partner
func (c *PartnerCache) Invalidate(partnerID string) {
	c.mu.Lock()
	delete(c.entries, partnerID)
	c.mu.Unlock()
}
