package mock

import (
	"context"

	"gitlab.com/phishguard/phishguard"
)

// Classifier mocks the remote prediction service
type Classifier struct {
	ClassifyFn     func(ctx context.Context, url string) (*phishguard.Verdict, error)
	ClassifyCalled bool
	ClassifyCount  int

	SendFeedbackFn     func(ctx context.Context, fb *phishguard.Feedback) error
	SendFeedbackCalled bool
}

// Classify a url
func (c *Classifier) Classify(ctx context.Context, url string) (*phishguard.Verdict, error) {
	c.ClassifyCalled = true
	c.ClassifyCount++
	return c.ClassifyFn(ctx, url)
}

// SendFeedback to the service
func (c *Classifier) SendFeedback(ctx context.Context, fb *phishguard.Feedback) error {
	c.SendFeedbackCalled = true
	return c.SendFeedbackFn(ctx, fb)
}

// MakeMockClassifier returns safe verdicts with 0.1 probability and accepts
// all feedback
func MakeMockClassifier() *Classifier {
	c := &Classifier{}
	c.ClassifyFn = func(ctx context.Context, url string) (*phishguard.Verdict, error) {
		return &phishguard.Verdict{Prediction: false, Probability: 0.1}, nil
	}
	c.SendFeedbackFn = func(ctx context.Context, fb *phishguard.Feedback) error {
		return nil
	}
	return c
}
