package store

import (
	"os"

	badger "github.com/dgraph-io/badger/v2"
	"gitlab.com/phishguard/phishguard"
)

// Persisted state keys. Names match what the extension surfaces read, the
// store has no schema versioning.
const (
	keyDetectionEnabled = "detectionEnabled"
	keyDeveloperMode    = "developerMode"
	keyTrustedDomains   = "trustedDomains"
	keyBypassURL        = "bypassURL"
	keyLastCheckedURL   = "lastCheckedURL"
	keyLastDecision     = "lastDecision"
	keyConfidence       = "confidence"
	keyFallbackURL      = "fallbackURL"
	keyLastCheckedAt    = "lastCheckedAt"
	keyLastDecisionID   = "lastDecisionID"
	keySitesProtected   = "sitesProtectedCount"
)

// StateStore is the badger backed source of truth for guard state
type StateStore struct {
	db       *badger.DB
	filepath string
}

// NewStateStore creates a new persistent state store
func NewStateStore(filepath string) *StateStore {
	return &StateStore{filepath: filepath}
}

// Init the state store
func (s *StateStore) Init() error {
	var err error

	if err = os.MkdirAll(s.filepath, 0677); err != nil {
		return err
	}

	s.db, err = badger.Open(badger.DefaultOptions(s.filepath))
	return err
}

// Close the state store
func (s *StateStore) Close() error {
	return s.db.Close()
}

// Settings returns the user switches, defaulting detection on and
// developer mode off when unset
func (s *StateStore) Settings() (*phishguard.Settings, error) {
	settings := &phishguard.Settings{DetectionEnabled: true}
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := getValue(txn, keyDetectionEnabled, &settings.DetectionEnabled); err != nil {
			return err
		}
		_, err := getValue(txn, keyDeveloperMode, &settings.DeveloperMode)
		return err
	})
	return settings, err
}

// SetDetectionEnabled switch
func (s *StateStore) SetDetectionEnabled(enabled bool) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setValue(txn, keyDetectionEnabled, enabled)
	})
}

// SetDeveloperMode switch
func (s *StateStore) SetDeveloperMode(enabled bool) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setValue(txn, keyDeveloperMode, enabled)
	})
}

// TrustedDomains returns the whole trusted set, empty when never written
func (s *StateStore) TrustedDomains() (map[string]bool, error) {
	domains := make(map[string]bool)
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := getValue(txn, keyTrustedDomains, &domains)
		return err
	})
	return domains, err
}

// IsTrusted checks a single base domain
func (s *StateStore) IsTrusted(domain string) (bool, error) {
	domains, err := s.TrustedDomains()
	if err != nil {
		return false, err
	}
	return domains[domain], nil
}

// Trust adds a base domain to the trusted set
func (s *StateStore) Trust(domain string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		domains := make(map[string]bool)
		if _, err := getValue(txn, keyTrustedDomains, &domains); err != nil {
			return err
		}
		domains[domain] = true
		return setValue(txn, keyTrustedDomains, domains)
	})
}

// Untrust removes a base domain and clears any outstanding bypass token, a
// bypass tied to a now-untrusted domain must not silently succeed
func (s *StateStore) Untrust(domain string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		domains := make(map[string]bool)
		if _, err := getValue(txn, keyTrustedDomains, &domains); err != nil {
			return err
		}
		delete(domains, domain)
		if err := setValue(txn, keyTrustedDomains, domains); err != nil {
			return err
		}
		return deleteKey(txn, keyBypassURL)
	})
}

// ClearTrusted empties the trusted set
func (s *StateStore) ClearTrusted() error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setValue(txn, keyTrustedDomains, map[string]bool{})
	})
}

// BypassURL returns the outstanding token, empty when none
func (s *StateStore) BypassURL() (string, error) {
	var url string
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := getValue(txn, keyBypassURL, &url)
		return err
	})
	return url, err
}

// GrantBypass sets the single-use token
func (s *StateStore) GrantBypass(url string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setValue(txn, keyBypassURL, url)
	})
}

// ConsumeBypass deletes the token iff it textually matches url, a
// non-matching token is left untouched
func (s *StateStore) ConsumeBypass(url string) (bool, error) {
	consumed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		var current string
		found, err := getValue(txn, keyBypassURL, &current)
		if err != nil {
			return err
		}
		if !found || current != url {
			return nil
		}
		consumed = true
		return deleteKey(txn, keyBypassURL)
	})
	return consumed, err
}

// Decision returns the live decision record, nil when nothing has been
// classified yet
func (s *StateStore) Decision() (*phishguard.DecisionRecord, error) {
	rec := &phishguard.DecisionRecord{}
	var decision string
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		if found, err = getValue(txn, keyLastCheckedURL, &rec.URL); err != nil || !found {
			return err
		}
		if _, err = getValue(txn, keyLastDecision, &decision); err != nil {
			return err
		}
		if _, err = getValue(txn, keyConfidence, &rec.Confidence); err != nil {
			return err
		}
		if _, err = getValue(txn, keyFallbackURL, &rec.FallbackURL); err != nil {
			return err
		}
		if _, err = getValue(txn, keyLastDecisionID, &rec.ID); err != nil {
			return err
		}
		_, err = getValue(txn, keyLastCheckedAt, &rec.CheckedAt)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	rec.Decision = phishguard.DecisionFromString(decision)
	return rec, nil
}

// SetDecision overwrites the live decision record. The fallback URL is only
// written for phishing verdicts, a safe verdict leaves the previous fallback
// in place for the warning surface.
func (s *StateStore) SetDecision(rec *phishguard.DecisionRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setValue(txn, keyLastCheckedURL, rec.URL); err != nil {
			return err
		}
		if err := setValue(txn, keyLastDecision, rec.Decision.String()); err != nil {
			return err
		}
		if err := setValue(txn, keyConfidence, rec.Confidence); err != nil {
			return err
		}
		if err := setValue(txn, keyLastDecisionID, rec.ID); err != nil {
			return err
		}
		if err := setValue(txn, keyLastCheckedAt, rec.CheckedAt); err != nil {
			return err
		}
		if rec.FallbackURL != "" {
			return setValue(txn, keyFallbackURL, rec.FallbackURL)
		}
		return nil
	})
}

// SitesProtected counter of phishing navigations blocked
func (s *StateStore) SitesProtected() (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := getValue(txn, keySitesProtected, &count)
		return err
	})
	return count, err
}

// IncrementSitesProtected bumps the counter, read-modify-write
func (s *StateStore) IncrementSitesProtected() (int64, error) {
	var count int64
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := getValue(txn, keySitesProtected, &count); err != nil {
			return err
		}
		count++
		return setValue(txn, keySitesProtected, count)
	})
	return count, err
}

var _ phishguard.StateStorer = (*StateStore)(nil)
