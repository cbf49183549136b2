package phishguard

import "time"

// Config for phishguard
type Config struct {
	ClassifierURL          string // base URL of the prediction service
	ClassifyTimeoutSeconds int    // 0 means no timeout on classifier calls
	DebuggerHost           string // chromium remote debugger host
	DebuggerPort           string // chromium remote debugger port
	ListenAddr             string // address for the command/state API
	DataPath               string // state store + decision history directory
	WarningURL             string // where blocked tabs are sent
	NewTabURL              string // neutral fallback when a tab has no safe URL yet
	StrictBaseDomain       bool   // resolve trust domains via the public suffix list
	MaxTabEntries          int    // cap on the per-tab fallback table
}

// ClassifyTimeout as a duration, zero when unset
func (c *Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.ClassifyTimeoutSeconds) * time.Second
}

// SetDefaults fills in unset values
func (c *Config) SetDefaults() {
	if c.ClassifierURL == "" {
		c.ClassifierURL = "http://127.0.0.1:8000"
	}
	if c.DebuggerHost == "" {
		c.DebuggerHost = "localhost"
	}
	if c.DebuggerPort == "" {
		c.DebuggerPort = "9222"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8654"
	}
	if c.DataPath == "" {
		c.DataPath = "phishguardtmp"
	}
	if c.WarningURL == "" {
		c.WarningURL = "http://" + c.ListenAddr + "/warning"
	}
	if c.NewTabURL == "" {
		c.NewTabURL = "chrome://newtab/"
	}
	if c.MaxTabEntries == 0 {
		c.MaxTabEntries = 512
	}
}
