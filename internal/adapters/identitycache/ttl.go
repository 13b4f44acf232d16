package identitycache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/Amund211/serverstats/internal/domain"
)

type ttlIdentityCache struct {
	cache *ttlcache.Cache[string, entry]
}

func NewTTLIdentityCache(ttl time.Duration) IdentityCache {
	cache := ttlcache.New[string, entry](
		ttlcache.WithTTL[string, entry](ttl),
		ttlcache.WithDisableTouchOnHit[string, entry](),
	)
	go cache.Start()
	return &ttlIdentityCache{cache: cache}
}

func (c *ttlIdentityCache) GetMany(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, []string) {
	found := make(map[string]domain.ResolvedIdentity, len(steamIDs))
	missing := []string{}
	for _, id := range steamIDs {
		item := c.cache.Get(id)
		if item == nil {
			missing = append(missing, id)
			continue
		}
		if value := item.Value(); value.Resolved {
			found[id] = value.Identity
		}
	}
	return found, missing
}

func (c *ttlIdentityCache) SetMany(ctx context.Context, identities map[string]domain.ResolvedIdentity, unresolved []string) {
	for id, identity := range identities {
		c.cache.Set(id, entry{Identity: identity, Resolved: true}, ttlcache.DefaultTTL)
	}
	for _, id := range unresolved {
		c.cache.Set(id, entry{Resolved: false}, ttlcache.DefaultTTL)
	}
}
