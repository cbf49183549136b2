package phishguard

import "context"

// Feedback labels for the model feedback endpoint
const (
	LabelPhishing   = "phishing"
	LabelLegitimate = "legitimate"
)

// Feedback is a user correction sent back to the model service, developer
// mode only
type Feedback struct {
	URL             string  `json:"url"`
	ModelPrediction string  `json:"model_prediction"`
	UserLabel       string  `json:"user_label"`
	Confidence      float64 `json:"confidence"`
}

// Classifier calls the remote prediction service
type Classifier interface {
	Classify(ctx context.Context, url string) (*Verdict, error)
	// SendFeedback is fire-and-forget, callers may discard the error
	SendFeedback(ctx context.Context, fb *Feedback) error
}
