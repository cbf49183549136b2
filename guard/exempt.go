package guard

import (
	"net/url"

	"github.com/rs/zerolog/log"
)

// search engine result hosts are excluded from interception entirely
var searchEngineHosts = []string{
	"google.com",
	"www.google.com",
	"bing.com",
	"www.bing.com",
	"duckduckgo.com",
	"www.duckduckgo.com",
	"search.yahoo.com",
}

// ExemptionFilter recognizes URLs on the fixed search-engine allow list so
// result pages are never classified
type ExemptionFilter struct {
	hosts map[string]bool
}

// NewExemptionFilter with the built-in host list
func NewExemptionFilter() *ExemptionFilter {
	f := &ExemptionFilter{hosts: make(map[string]bool, len(searchEngineHosts))}
	for _, h := range searchEngineHosts {
		f.hosts[h] = true
	}
	return f
}

// IsExempt returns true iff the URL's hostname exactly matches a known
// search engine result host. Parse failures fail toward the next pipeline
// stage, never toward the allow list.
func (f *ExemptionFilter) IsExempt(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		log.Warn().Err(err).Str("url", uri).Msg("failed to parse URL, treating as not exempt")
		return false
	}
	return f.hosts[u.Hostname()]
}
