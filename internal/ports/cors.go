package ports

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/go-chi/cors"
)

// OriginPolicy decides which browser origins may read API responses
type OriginPolicy struct {
	domainSuffixes []string
	exactOrigins   []string
}

// NewOriginPolicy allows https origins on any of domainSuffixes or their
// subdomains, and every origin in exactOrigins regardless of scheme
func NewOriginPolicy(domainSuffixes []string, exactOrigins []string) (*OriginPolicy, error) {
	for _, suffix := range domainSuffixes {
		if strings.HasPrefix(suffix, ".") {
			return nil, fmt.Errorf("domain suffix %s should not start with a dot", suffix)
		}
		if strings.Contains(suffix, "://") {
			return nil, fmt.Errorf("domain suffix %s should not contain a scheme", suffix)
		}
	}

	for _, origin := range exactOrigins {
		parsed, err := url.Parse(origin)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("origin %s should be of the form scheme://host[:port]", origin)
		}
		if parsed.Path != "" || parsed.RawQuery != "" {
			return nil, fmt.Errorf("origin %s should not contain a path", origin)
		}
	}

	return &OriginPolicy{
		domainSuffixes: slices.Clone(domainSuffixes),
		exactOrigins:   slices.Clone(exactOrigins),
	}, nil
}

func (p *OriginPolicy) Allowed(origin string) bool {
	if slices.Contains(p.exactOrigins, origin) {
		return true
	}

	host, ok := strings.CutPrefix(origin, "https://")
	if !ok {
		return false
	}
	for _, suffix := range p.domainSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func BuildCORSMiddleware(policy *OriginPolicy) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return policy.Allowed(origin)
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})
}
