package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/Amund211/serverstats/internal/adapters/identitycache"
	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/drivers"
	"github.com/Amund211/serverstats/internal/logging"
)

type identityProvider interface {
	GetIdentities(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, error)
}

// BuildResolveIdentitiesWithCache serves cached identities and resolves all
// misses with a single provider call
func BuildResolveIdentitiesWithCache(identityCache identitycache.IdentityCache, provider identityProvider) drivers.ResolveIdentities {
	return func(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, error) {
		found, missing := identityCache.GetMany(ctx, steamIDs)

		metrics.identityLookups.Add(ctx, int64(len(steamIDs)))
		if len(missing) == 0 {
			return found, nil
		}
		metrics.identityCacheMiss.Add(ctx, int64(len(missing)))

		resolveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		resolved, err := provider.GetIdentities(resolveCtx, missing)
		if err != nil {
			// NOTE: identityProvider implementations handle their own error reporting
			logging.FromContext(ctx).WarnContext(ctx, "Failed to resolve identities, leaving them unresolved",
				slog.Int("missing", len(missing)),
				slog.String("error", err.Error()),
			)
			return found, nil
		}

		unresolved := []string{}
		for _, id := range missing {
			identity, ok := resolved[id]
			if !ok {
				unresolved = append(unresolved, id)
				continue
			}
			found[id] = identity
		}

		identityCache.SetMany(ctx, resolved, unresolved)

		return found, nil
	}
}
