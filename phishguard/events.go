package phishguard

import "context"

// CommandDispatcher applies inbound commands to guard state
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd Command) error
}

// Command is an inbound request from a UI surface (warning page, popup,
// settings panel) to mutate guard state. The set is closed, handlers must
// switch over every variant.
type Command interface {
	isCommand()
}

// TrustDomainCmd permanently trusts the base domain of URL
type TrustDomainCmd struct {
	URL string
}

// UntrustDomainCmd removes Domain from the trusted set and clears any
// outstanding bypass token
type UntrustDomainCmd struct {
	Domain string
}

// ForceWarningCmd hard-redirects the active tab to the warning surface
type ForceWarningCmd struct{}

// GrantBypassCmd lets exactly one subsequent navigation to URL skip
// classification
type GrantBypassCmd struct {
	URL string
}

// ClearTrustedCmd empties the trusted domain set
type ClearTrustedCmd struct{}

func (TrustDomainCmd) isCommand()   {}
func (UntrustDomainCmd) isCommand() {}
func (ForceWarningCmd) isCommand()  {}
func (GrantBypassCmd) isCommand()   {}
func (ClearTrustedCmd) isCommand()  {}

// Notification is an outbound message delivered to a tab's rendered page
// after it finishes loading. Delivery is best-effort and at most once per
// navigation.
type Notification interface {
	isNotification()
}

// SafeSiteNote tells the page it was classified benign
type SafeSiteNote struct {
	Confidence float64 `json:"confidence"`
}

// TrustedSiteNote tells the page its base domain is user-trusted
type TrustedSiteNote struct {
	Domain string `json:"domain"`
}

func (SafeSiteNote) isNotification()    {}
func (TrustedSiteNote) isNotification() {}
