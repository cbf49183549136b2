package mock

import (
	"context"
	"sync"

	"gitlab.com/phishguard/phishguard"
)

// History mocks the decision history sink
type History struct {
	AppendFn     func(ctx context.Context, rec *phishguard.DecisionRecord) error
	AppendCalled bool

	mu      sync.Mutex
	records []*phishguard.DecisionRecord
}

// Append a record
func (h *History) Append(ctx context.Context, rec *phishguard.DecisionRecord) error {
	h.AppendCalled = true
	return h.AppendFn(ctx, rec)
}

// Records appended so far
func (h *History) Records() []*phishguard.DecisionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*phishguard.DecisionRecord(nil), h.records...)
}

// MakeMockHistory keeps appended records in memory
func MakeMockHistory() *History {
	h := &History{}
	h.AppendFn = func(ctx context.Context, rec *phishguard.DecisionRecord) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.records = append(h.records, rec)
		return nil
	}
	return h
}
