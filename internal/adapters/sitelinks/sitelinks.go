package sitelinks

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Amund211/serverstats/internal/config"
)

const steamProfileURL = "https://steamcommunity.com/profiles/"

// Links builds the asset and profile urls of the site the stats are shown on
type Links struct {
	siteURL  string
	assetURL string
}

func New(siteURL, assetURL string) Links {
	siteURL = strings.TrimSuffix(siteURL, "/")
	assetURL = strings.TrimSuffix(assetURL, "/")
	if assetURL == "" {
		assetURL = siteURL
	}
	return Links{siteURL: siteURL, assetURL: assetURL}
}

func FromConfig(conf config.Config) Links {
	return New(conf.SiteURL(), conf.AssetURL())
}

func (l Links) RankAsset(ranksSet string, rank int) string {
	return fmt.Sprintf("%s/assets/ranks/%s/%d.webp", l.assetURL, url.PathEscape(ranksSet), rank)
}

// Profile links to the site's profile search, which falls back to the steam
// community profile if the player has no site account
func (l Links) Profile(steamID string) string {
	query := url.Values{}
	query.Set("else-redirect", steamProfileURL+steamID)
	return fmt.Sprintf("%s/profile/search/%s?%s", l.siteURL, url.PathEscape(steamID), query.Encode())
}
