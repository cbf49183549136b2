package phishguard

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// BaseDomain reduces a hostname to its trust unit: the last two dot
// separated labels. Hostnames with two or fewer labels are returned
// unchanged. Note this is wrong for multi-part public suffixes
// ("example.co.uk" becomes "co.uk"), use RegistrableDomain when the
// strict mode is enabled.
func BaseDomain(hostname string) string {
	parts := strings.Split(hostname, ".")
	if len(parts) <= 2 {
		return hostname
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

// RegistrableDomain resolves hostname against the public suffix list,
// falling back to the two label heuristic when the list can't help
// (unlisted TLDs, bare hosts, IPs).
func RegistrableDomain(hostname string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(strings.TrimSuffix(hostname, "."))
	if err != nil {
		return BaseDomain(hostname)
	}
	return d
}
