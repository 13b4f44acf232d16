package identityprovider

import (
	"context"
	"fmt"

	"github.com/Amund211/serverstats/internal/domain"
	"github.com/Amund211/serverstats/internal/strutils"
)

type mock struct{}

// NewMock resolves every valid SteamID64 to a made up identity
func NewMock() IdentityProvider {
	return mock{}
}

func (mock) GetIdentities(ctx context.Context, steamIDs []string) (map[string]domain.ResolvedIdentity, error) {
	identities := make(map[string]domain.ResolvedIdentity, len(steamIDs))
	for _, id := range steamIDs {
		if !strutils.IsSteamID64(id) {
			continue
		}
		identities[id] = domain.ResolvedIdentity{
			CanonicalID: id,
			DisplayName: fmt.Sprintf("Player %s", id[len(id)-4:]),
			AvatarURL:   fmt.Sprintf("https://avatars.steamstatic.com/%s_full.jpg", id),
			ProfileURL:  fmt.Sprintf("https://steamcommunity.com/profiles/%s/", id),
		}
	}
	return identities, nil
}
