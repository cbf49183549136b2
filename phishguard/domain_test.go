package phishguard_test

import (
	"testing"

	"gitlab.com/phishguard/phishguard"
)

func TestBaseDomain(t *testing.T) {
	var inputs = []struct {
		in       string
		expected string
	}{
		{"example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"a.b.example.com", "example.com"},
		{"localhost", "localhost"},
		{"example.co.uk", "co.uk"}, // known two-label limitation
		{"deep.sub.example.co.uk", "co.uk"},
	}
	for _, in := range inputs {
		ret := phishguard.BaseDomain(in.in)
		if ret != in.expected {
			t.Fatalf("%s did not match %s for %s\n", ret, in.expected, in.in)
		}
	}
}

func TestRegistrableDomain(t *testing.T) {
	var inputs = []struct {
		in       string
		expected string
	}{
		{"www.example.com", "example.com"},
		{"deep.sub.example.co.uk", "example.co.uk"},
		{"example.co.uk", "example.co.uk"},
	}
	for _, in := range inputs {
		ret := phishguard.RegistrableDomain(in.in)
		if ret != in.expected {
			t.Fatalf("%s did not match %s for %s\n", ret, in.expected, in.in)
		}
	}
}

func TestVerdictDecision(t *testing.T) {
	v := &phishguard.Verdict{Prediction: true, Probability: 0.93}
	if v.Decision() != phishguard.DecisionPhishing {
		t.Fatalf("expected phishing decision")
	}

	v = &phishguard.Verdict{Prediction: false, Probability: 0.1}
	if v.Decision() != phishguard.DecisionSafe {
		t.Fatalf("expected safe decision")
	}
	if v.SafetyConfidence() != 0.9 {
		t.Fatalf("expected 0.9 safety confidence got %f", v.SafetyConfidence())
	}
}

func TestDecisionFromString(t *testing.T) {
	if phishguard.DecisionFromString("safe") != phishguard.DecisionSafe {
		t.Fatalf("safe did not round trip")
	}
	if phishguard.DecisionFromString("phishing") != phishguard.DecisionPhishing {
		t.Fatalf("phishing did not round trip")
	}
	if phishguard.DecisionFromString("bogus") != 0 {
		t.Fatalf("expected zero decision for bogus input")
	}
}
