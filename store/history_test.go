package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"gitlab.com/phishguard/phishguard"
	"gitlab.com/phishguard/store"
)

func TestHistoryAppendRecent(t *testing.T) {
	ctx := context.Background()
	path := "testdata/history"
	os.RemoveAll(path)

	h := store.NewHistory(path)
	if err := h.Init(); err != nil {
		t.Fatalf("error init history: %s\n", err)
	}
	defer h.Close()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		decision := phishguard.DecisionSafe
		if i%2 == 1 {
			decision = phishguard.DecisionPhishing
		}
		rec := &phishguard.DecisionRecord{
			ID:         fmt.Sprintf("00000000-0000-4000-8000-00000000000%d", i),
			URL:        fmt.Sprintf("http://example.com/%d", i),
			Decision:   decision,
			Confidence: float64(i) / 10,
			CheckedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := h.Append(ctx, rec); err != nil {
			t.Fatalf("error appending record: %s\n", err)
		}
	}

	records, err := h.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("error reading recent: %s\n", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records got %d\n", len(records))
	}
	if records[0].URL != "http://example.com/4" {
		t.Fatalf("expected newest record first got %s\n", records[0].URL)
	}
	if records[0].Decision != phishguard.DecisionSafe {
		t.Fatalf("decision did not round trip")
	}

	phishing, err := h.CountByDecision(ctx, phishguard.DecisionPhishing)
	if err != nil {
		t.Fatalf("error counting: %s\n", err)
	}
	if phishing != 2 {
		t.Fatalf("expected 2 phishing records got %d\n", phishing)
	}
}

func TestHistoryEmpty(t *testing.T) {
	ctx := context.Background()
	path := "testdata/historyempty"
	os.RemoveAll(path)

	h := store.NewHistory(path)
	if err := h.Init(); err != nil {
		t.Fatalf("error init history: %s\n", err)
	}
	defer h.Close()

	records, err := h.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("error reading recent: %s\n", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records got %d\n", len(records))
	}
}
