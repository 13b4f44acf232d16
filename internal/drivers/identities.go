package drivers

import (
	"context"
	"log/slog"
	"slices"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/logging"
)

// resolveBatch resolves all distinct ids of a page in a single call.
// Failures leave the page unenriched.
func resolveBatch(ctx context.Context, resolve ResolveIdentities, steamIDs []string) map[string]domain.ResolvedIdentity {
	unique := make([]string, 0, len(steamIDs))
	for _, id := range steamIDs {
		if id == "" {
			continue
		}
		unique = append(unique, id)
	}
	slices.Sort(unique)
	unique = slices.Compact(unique)

	if len(unique) == 0 || resolve == nil {
		return map[string]domain.ResolvedIdentity{}
	}

	identities, err := resolve(ctx, unique)
	if err != nil {
		// NOTE: Identity resolvers handle their own error reporting
		logging.FromContext(ctx).WarnContext(ctx, "Failed to resolve identities", slog.Int("count", len(unique)), slog.String("error", err.Error()))
		return map[string]domain.ResolvedIdentity{}
	}
	if identities == nil {
		return map[string]domain.ResolvedIdentity{}
	}

	return identities
}
