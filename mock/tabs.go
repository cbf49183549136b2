package mock

import (
	"context"
	"sync"

	"gitlab.com/phishguard/phishguard"
)

// Tabs mocks the tab controller, recording redirects and delivered
// notifications per tab
type Tabs struct {
	RedirectFn     func(ctx context.Context, tabID int64, url string) error
	RedirectCalled bool

	NotifyFn     func(ctx context.Context, tabID int64, n phishguard.Notification) error
	NotifyCalled bool

	ActiveTabFn     func() (int64, error)
	ActiveTabCalled bool

	mu        sync.Mutex
	redirects map[int64][]string
	notes     map[int64][]phishguard.Notification
}

// Redirect a tab
func (t *Tabs) Redirect(ctx context.Context, tabID int64, url string) error {
	t.RedirectCalled = true
	return t.RedirectFn(ctx, tabID, url)
}

// Notify a tab's page
func (t *Tabs) Notify(ctx context.Context, tabID int64, n phishguard.Notification) error {
	t.NotifyCalled = true
	return t.NotifyFn(ctx, tabID, n)
}

// ActiveTab id
func (t *Tabs) ActiveTab() (int64, error) {
	t.ActiveTabCalled = true
	return t.ActiveTabFn()
}

// Redirects recorded for a tab
func (t *Tabs) Redirects(tabID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.redirects[tabID]...)
}

// Notes delivered to a tab
func (t *Tabs) Notes(tabID int64) []phishguard.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]phishguard.Notification(nil), t.notes[tabID]...)
}

// MakeMockTabs records every redirect and notification and reports tab 1 as
// active
func MakeMockTabs() *Tabs {
	t := &Tabs{
		redirects: make(map[int64][]string),
		notes:     make(map[int64][]phishguard.Notification),
	}
	t.RedirectFn = func(ctx context.Context, tabID int64, url string) error {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.redirects[tabID] = append(t.redirects[tabID], url)
		return nil
	}
	t.NotifyFn = func(ctx context.Context, tabID int64, n phishguard.Notification) error {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.notes[tabID] = append(t.notes[tabID], n)
		return nil
	}
	t.ActiveTabFn = func() (int64, error) {
		return 1, nil
	}
	return t
}
