package phishguard

import "context"

// TabEventType of tab lifecycle events fed into the engine
type TabEventType int8

const (
	// TabNavigating a navigation began in the tab
	TabNavigating TabEventType = iota + 1
	// TabLoaded the tab finished loading its document
	TabLoaded
	// TabRemoved the tab was closed
	TabRemoved
	// TabActivated the tab became the active tab
	TabActivated
)

// TabEvent details
type TabEvent struct {
	Type       TabEventType
	TabID      int64
	Navigation *NavigationEvent // set for TabNavigating
}

// TabController drives tabs in the instrumented browser
type TabController interface {
	// Redirect hard-rewrites the tab's location, replacing the pending
	// navigation
	Redirect(ctx context.Context, tabID int64, url string) error
	// Notify delivers an in-page notification, best-effort: a missing
	// receiver is not an error
	Notify(ctx context.Context, tabID int64, n Notification) error
	// ActiveTab returns the id of the currently focused tab
	ActiveTab() (int64, error)
}
