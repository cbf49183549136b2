package browser

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/wirepair/gcd"
	"github.com/wirepair/gcd/gcdapi"

	"gitlab.com/phishguard/phishguard"
)

// ErrTabNotFound the tab is gone or was never attached
var ErrTabNotFound = errors.New("tab not found")

// tabHandle pairs our tab id with the devtools target
type tabHandle struct {
	id     int64
	target *gcd.ChromeTarget
}

// Chrome attaches to a running chromium instance over the devtools protocol
// and translates its page events into engine tab events. It also implements
// the TabController used by the engine to redirect tabs and deliver
// notifications.
type Chrome struct {
	g      *gcd.Gcd
	host   string
	port   string
	events chan *phishguard.TabEvent
	exitCh chan struct{}

	mu     sync.Mutex
	tabs   map[string]*tabHandle // devtools target id -> handle
	active int64
}

// NewChrome driver for the debugger at host:port
func NewChrome(host, port string) *Chrome {
	return &Chrome{
		host:   host,
		port:   port,
		events: make(chan *phishguard.TabEvent, 64),
		exitCh: make(chan struct{}),
		tabs:   make(map[string]*tabHandle),
	}
}

// Init connects to the browser and starts watching for tabs
func (c *Chrome) Init() error {
	c.g = gcd.NewChromeDebugger()
	if err := c.g.ConnectToInstance(c.host, c.port); err != nil {
		return errors.Wrap(err, "connect to browser instance")
	}
	if err := c.refreshTargets(); err != nil {
		return errors.Wrap(err, "enumerate tabs")
	}
	go c.watchTargets()
	return nil
}

// Events feeding the engine
func (c *Chrome) Events() <-chan *phishguard.TabEvent {
	return c.events
}

// Close stops watching and drops all tab handles
func (c *Chrome) Close() error {
	close(c.exitCh)
	return nil
}

// watchTargets polls the instance for opened and closed tabs
func (c *Chrome) watchTargets() {
	ticker := time.NewTicker(time.Second * 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.exitCh:
			return
		case <-ticker.C:
			if err := c.refreshTargets(); err != nil {
				log.Warn().Err(err).Msg("failed to refresh tab list")
			}
		}
	}
}

func (c *Chrome) refreshTargets() error {
	targets, err := c.g.GetTargets()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool, len(targets))
	for i, t := range targets {
		if t.Target.Type != "page" {
			continue
		}
		seen[t.Target.Id] = true
		// the instance reports targets most-recently-used first
		if i == 0 {
			if h, ok := c.tabs[t.Target.Id]; ok {
				c.active = h.id
			}
		}
		if _, ok := c.tabs[t.Target.Id]; ok {
			continue
		}
		c.attach(t)
	}

	for id, h := range c.tabs {
		if seen[id] {
			continue
		}
		delete(c.tabs, id)
		c.emit(&phishguard.TabEvent{Type: phishguard.TabRemoved, TabID: h.id})
	}
	return nil
}

// attach subscribes page lifecycle events on a newly discovered tab, caller
// holds the lock
func (c *Chrome) attach(target *gcd.ChromeTarget) {
	h := &tabHandle{id: phishguard.NextTabID(), target: target}
	c.tabs[target.Target.Id] = h
	if c.active == 0 {
		c.active = h.id
	}

	target.Page.Enable()
	target.Inspector.Enable()

	tabID := h.id
	target.Subscribe("Page.frameNavigated", func(t *gcd.ChromeTarget, payload []byte) {
		header := &gcdapi.PageFrameNavigatedEvent{}
		if err := json.Unmarshal(payload, header); err != nil {
			return
		}
		frame := header.Params.Frame
		if frame == nil {
			return
		}
		// only the main frame maps to frame id 0, the engine ignores the rest
		var frameID int64
		if frame.ParentId != "" {
			frameID = 1
		}
		c.emit(&phishguard.TabEvent{
			Type:  phishguard.TabNavigating,
			TabID: tabID,
			Navigation: &phishguard.NavigationEvent{
				TabID:   tabID,
				FrameID: frameID,
				URL:     frame.Url,
			},
		})
	})

	target.Subscribe("Page.loadEventFired", func(t *gcd.ChromeTarget, payload []byte) {
		c.emit(&phishguard.TabEvent{Type: phishguard.TabLoaded, TabID: tabID})
	})

	target.Subscribe("Inspector.detached", func(t *gcd.ChromeTarget, payload []byte) {
		c.removeTab(target.Target.Id, tabID)
	})
	target.Subscribe("Inspector.targetCrashed", func(t *gcd.ChromeTarget, payload []byte) {
		c.removeTab(target.Target.Id, tabID)
	})

	log.Debug().Int64("tab_id", tabID).Str("target", target.Target.Id).Msg("tab attached")
}

func (c *Chrome) removeTab(targetID string, tabID int64) {
	c.mu.Lock()
	delete(c.tabs, targetID)
	c.mu.Unlock()
	c.emit(&phishguard.TabEvent{Type: phishguard.TabRemoved, TabID: tabID})
}

func (c *Chrome) emit(evt *phishguard.TabEvent) {
	select {
	case c.events <- evt:
	case <-c.exitCh:
	}
}

func (c *Chrome) handle(tabID int64) (*tabHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.tabs {
		if h.id == tabID {
			return h, nil
		}
	}
	return nil, ErrTabNotFound
}

// Redirect hard-rewrites the tab's location, the browser's navigation state
// ends up on the new URL, not the one it replaced
func (c *Chrome) Redirect(ctx context.Context, tabID int64, url string) error {
	h, err := c.handle(tabID)
	if err != nil {
		return err
	}

	navParams := &gcdapi.PageNavigateParams{Url: url, TransitionType: "typed"}
	_, _, errText, err := h.target.Page.NavigateWithParams(navParams)
	if err != nil {
		return errors.Wrap(err, "navigate tab")
	}
	if errText != "" {
		return errors.Errorf("navigate tab: %s", errText)
	}
	return nil
}

// Notify posts the notification into the page as a window message. Pages
// without a listener simply ignore it, that is not an error.
func (c *Chrome) Notify(ctx context.Context, tabID int64, n phishguard.Notification) error {
	h, err := c.handle(tabID)
	if err != nil {
		return err
	}

	payload, err := notificationPayload(n)
	if err != nil {
		return err
	}

	params := &gcdapi.RuntimeEvaluateParams{
		Expression:    "window.postMessage(" + payload + ", \"*\")",
		ObjectGroup:   "phishguard",
		Silent:        true,
		ReturnByValue: true,
		Timeout:       1000,
	}
	_, exp, err := h.target.Runtime.EvaluateWithParams(params)
	if err != nil {
		return errors.Wrap(err, "deliver notification")
	}
	if exp != nil {
		log.Debug().Int64("tab_id", tabID).Msg("page rejected notification")
	}
	return nil
}

// ActiveTab returns the id of the currently focused tab
func (c *Chrome) ActiveTab() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == 0 {
		return 0, ErrTabNotFound
	}
	return c.active, nil
}

var _ phishguard.TabController = (*Chrome)(nil)

// notificationPayload encodes the wire form a page receives, the message
// type strings are what content surfaces match on
func notificationPayload(n phishguard.Notification) (string, error) {
	var msg interface{}
	switch v := n.(type) {
	case phishguard.SafeSiteNote:
		msg = struct {
			Source     string  `json:"source"`
			Type       string  `json:"type"`
			Confidence float64 `json:"confidence"`
		}{"phishguard", "SAFE_SITE", v.Confidence}
	case phishguard.TrustedSiteNote:
		msg = struct {
			Source string `json:"source"`
			Type   string `json:"type"`
			Domain string `json:"domain"`
		}{"phishguard", "TRUSTED_SITE_POPUP", v.Domain}
	default:
		return "", errors.Errorf("unknown notification %T", n)
	}

	bytez, err := json.Marshal(msg)
	if err != nil {
		return "", errors.Wrap(err, "encode notification")
	}
	return string(bytez), nil
}
