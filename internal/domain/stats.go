package domain

type BlockDefinition struct {
	Key      string
	LabelRef string
	IconRef  string
}

// ResolvedIdentity is the external platform's view of a player
type ResolvedIdentity struct {
	CanonicalID string
	DisplayName string
	AvatarURL   string
	ProfileURL  string
}

type UserStatsSummary struct {
	Server     Server
	DriverName string
	Blocks     []BlockDefinition
	Metrics    map[string]any
}
