package identityprovider

import (
	"context"

	"github.com/Amund211/serverstats/internal/domain"
)

type IdentityProvider interface {
	// Returns the identities the provider knows of, keyed by SteamID64.
	// Ids missing from the result are unresolved.
	//
	// Returns domain.ErrTemporarilyUnavailable if the provider implementation receives an error believed to be intermittent. The call may be retried later.
	GetIdentities(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, error)
}
