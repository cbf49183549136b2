package guard

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"gitlab.com/phishguard/phishguard"
)

// Subscription is a cancellable one-shot handle for a pending per-tab
// notification
type Subscription struct {
	n     *Notifier
	tabID int64
	seq   uint64
}

// Cancel drops the pending notification unless it was already delivered or
// replaced
func (s *Subscription) Cancel() {
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if cur, ok := s.n.pending[s.tabID]; ok && cur.seq == s.seq {
		delete(s.n.pending, s.tabID)
	}
}

type pendingNote struct {
	seq  uint64
	note phishguard.Notification
}

// Notifier delivers at most one in-page notification per navigation, only
// after the destination tab finishes loading. A new navigation on the same
// tab supersedes any pending subscription so a stale notification can never
// be attributed to the wrong page.
type Notifier struct {
	mu      sync.Mutex
	tabs    phishguard.TabController
	seqs    map[int64]uint64
	pending map[int64]*pendingNote
}

// NewNotifier using tabs for delivery
func NewNotifier(tabs phishguard.TabController) *Notifier {
	return &Notifier{
		tabs:    tabs,
		seqs:    make(map[int64]uint64),
		pending: make(map[int64]*pendingNote),
	}
}

// Begin marks a new navigation on the tab and supersedes any pending
// subscription from an earlier one. The returned sequence must be passed to
// Expect; navigations on the same tab interleave at classifier I/O, the
// sequence keeps a slow earlier navigation from registering over a newer one.
func (n *Notifier) Begin(tabID int64) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seqs[tabID]++
	delete(n.pending, tabID)
	return n.seqs[tabID]
}

// Expect registers the one-shot notification for the navigation identified
// by seq. Returns nil when a later navigation already began on the tab, the
// caller's outcome is stale and nothing is registered.
func (n *Notifier) Expect(tabID int64, seq uint64, note phishguard.Notification) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.seqs[tabID] != seq {
		log.Debug().Int64("tab_id", tabID).Msg("notification superseded before registration")
		return nil
	}
	n.pending[tabID] = &pendingNote{seq: seq, note: note}
	return &Subscription{n: n, tabID: tabID, seq: seq}
}

// TabLoaded fires the pending subscription for the tab, if any. Delivery is
// best-effort, a page without a receiver drops the message silently.
func (n *Notifier) TabLoaded(ctx context.Context, tabID int64) {
	n.mu.Lock()
	sub, ok := n.pending[tabID]
	if ok {
		delete(n.pending, tabID)
	}
	n.mu.Unlock()
	if !ok {
		return
	}

	if err := n.tabs.Notify(ctx, tabID, sub.note); err != nil {
		log.Debug().Err(err).Int64("tab_id", tabID).Msg("notification dropped")
	}
}

// TabRemoved forgets any state for a closed tab
func (n *Notifier) TabRemoved(tabID int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.pending, tabID)
	delete(n.seqs, tabID)
}

// HasPending reports whether the tab has an undelivered notification
func (n *Notifier) HasPending(tabID int64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.pending[tabID]
	return ok
}
