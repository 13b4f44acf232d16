package domaintest

import (
	"fmt"

	"github.com/Amund211/serverstats/internal/domain"
)

// NewSteamUser is a user with only a Steam link. An empty steamID gives an unlinked user.
func NewSteamUser(userID int, steamID string) domain.User {
	user := domain.User{
		ID:             userID,
		Name:           fmt.Sprintf("user-%d", userID),
		SocialNetworks: []domain.SocialNetwork{},
	}
	if steamID != "" {
		user.SocialNetworks = append(user.SocialNetworks, domain.SocialNetwork{Key: domain.SocialNetworkSteam, Value: steamID})
	}
	return user
}
