package phishguard

import "context"

// DecisionHistory records every classification acted upon
type DecisionHistory interface {
	Append(ctx context.Context, rec *DecisionRecord) error
}

// Settings are the user-controlled switches read at the start of every
// navigation decision
type Settings struct {
	DetectionEnabled bool `json:"detection_enabled"`
	DeveloperMode    bool `json:"developer_mode"`
}

// StateStorer is the persistent source of truth shared by every component.
// It survives process restarts. Trust edits are read-modify-write and a
// concurrent edit can lose an update, callers accept last-writer-wins.
type StateStorer interface {
	Init() error
	Close() error

	Settings() (*Settings, error)
	SetDetectionEnabled(enabled bool) error
	SetDeveloperMode(enabled bool) error

	TrustedDomains() (map[string]bool, error)
	IsTrusted(domain string) (bool, error)
	Trust(domain string) error
	Untrust(domain string) error
	ClearTrusted() error

	BypassURL() (string, error)
	GrantBypass(url string) error
	// ConsumeBypass deletes the token and returns true iff it matched url
	// exactly, otherwise the token is left untouched
	ConsumeBypass(url string) (bool, error)

	Decision() (*DecisionRecord, error)
	SetDecision(rec *DecisionRecord) error

	SitesProtected() (int64, error)
	IncrementSitesProtected() (int64, error)
}
