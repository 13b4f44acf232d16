package domain

const SocialNetworkSteam = "Steam"

type SocialNetwork struct {
	Key   string
	Value string
}

type User struct {
	ID             int
	Name           string
	SocialNetworks []SocialNetwork
}

// LinkedIdentity returns the value of the first linked social network with the given key
func (u User) LinkedIdentity(network string) (string, bool) {
	for _, social := range u.SocialNetworks {
		if social.Key == network && social.Value != "" {
			return social.Value, true
		}
	}
	return "", false
}
