package drivers

import (
	"fmt"
	"strconv"

	"github.com/Amund211/serverstats/internal/domain"
)

const (
	fieldUserURL = "user_url"
	fieldAvatar  = "avatar"
	fieldRank    = "rank"
)

// enricher merges resolved identities and derived links into raw rows
type enricher struct {
	links      Links
	ranksSet   string
	identities map[string]domain.ResolvedIdentity
	idField    string
}

// enrich updates values in place. steamID is the row's SteamID64, or "" if
// the stored id could not be converted.
func (e enricher) enrich(values map[string]any, steamID string) {
	if identity, ok := e.identities[steamID]; ok && steamID != "" {
		values[e.idField] = identity.CanonicalID
		values[fieldAvatar] = identity.AvatarURL
	}

	if rank, ok := values[fieldRank]; ok {
		values[fieldRank] = e.rankValue(rank)
	}

	values[fieldUserURL] = e.links.Profile(fmt.Sprint(values[e.idField]))
}

// rankValue turns numeric ranks into rank asset urls. Named ranks are kept.
func (e enricher) rankValue(rank any) any {
	switch v := rank.(type) {
	case int:
		return e.links.RankAsset(e.ranksSet, v)
	case int64:
		return e.links.RankAsset(e.ranksSet, int(v))
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return v
		}
		return e.links.RankAsset(e.ranksSet, n)
	}
	return rank
}

func normalizeRows(schema domain.SchemaDescriptor, rows []map[string]any) []domain.NormalizedRow {
	normalized := make([]domain.NormalizedRow, len(rows))
	for i, row := range rows {
		normalized[i] = schema.Normalize(row)
	}
	return normalized
}
