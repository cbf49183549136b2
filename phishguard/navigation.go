package phishguard

import (
	"time"
)

// Decision is the verdict acted upon for a checked navigation
type Decision int8

const (
	// DecisionSafe the classifier considers the destination benign
	DecisionSafe Decision = iota + 1
	// DecisionPhishing the classifier considers the destination a phishing site
	DecisionPhishing
)

func (d Decision) String() string {
	switch d {
	case DecisionSafe:
		return "safe"
	case DecisionPhishing:
		return "phishing"
	}
	return "unknown"
}

// DecisionFromString parses a persisted decision value
func DecisionFromString(s string) Decision {
	switch s {
	case "safe":
		return DecisionSafe
	case "phishing":
		return DecisionPhishing
	}
	return 0
}

// NavigationEvent is a single top-level navigation attempt observed in a tab
type NavigationEvent struct {
	TabID   int64  `json:"tab_id"`
	FrameID int64  `json:"frame_id"`
	URL     string `json:"url"`
}

// IsTopLevel returns true when the event is for the main frame, sub frames
// are never intercepted
func (n *NavigationEvent) IsTopLevel() bool {
	return n.FrameID == 0
}

// Verdict returned by the remote classifier for a single URL
type Verdict struct {
	Prediction  bool    `json:"prediction"`
	Probability float64 `json:"probability"`
}

// Decision maps the raw prediction to a Decision value
func (v *Verdict) Decision() Decision {
	if v.Prediction {
		return DecisionPhishing
	}
	return DecisionSafe
}

// SafetyConfidence inverts the raw probability, the model reports its
// confidence that the site is *not* benign
func (v *Verdict) SafetyConfidence() float64 {
	return 1 - v.Probability
}

// DecisionRecord is the outcome of the most recent classification acted upon,
// read by the warning surface and popups. Exactly one live record exists,
// each classified navigation overwrites it.
type DecisionRecord struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Decision    Decision  `json:"decision"`
	Confidence  float64   `json:"confidence"`
	FallbackURL string    `json:"fallback_url,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}
