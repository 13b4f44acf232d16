package identitycache

import (
	"context"

	"github.com/Amund211/serverstats/internal/domain"
)

// IdentityCache stores resolved identities and ids known to be unresolvable
type IdentityCache interface {
	// GetMany returns the cached identities and the ids with no cache entry.
	// Ids cached as unresolvable are in neither.
	GetMany(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, []string)

	// SetMany caches the identities, and the ids in unresolved as unresolvable
	SetMany(ctx context.Context, identities map[string]domain.ResolvedIdentity, unresolved []string)
}

type entry struct {
	Identity domain.ResolvedIdentity `json:"identity"`
	Resolved bool                    `json:"resolved"`
}
