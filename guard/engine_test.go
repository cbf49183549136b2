package guard_test

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"gitlab.com/phishguard/guard"
	"gitlab.com/phishguard/mock"
	"gitlab.com/phishguard/phishguard"
	"gitlab.com/phishguard/store"
)

type engineDeps struct {
	cfg        *phishguard.Config
	state      *store.StateStore
	history    *mock.History
	classifier *mock.Classifier
	tabs       *mock.Tabs
}

func testEngine(t *testing.T, path string) (*guard.Engine, *engineDeps) {
	os.RemoveAll(path)
	s := store.NewStateStore(path)
	if err := s.Init(); err != nil {
		t.Fatalf("error init state store: %s\n", err)
	}

	cfg := &phishguard.Config{}
	cfg.SetDefaults()

	d := &engineDeps{
		cfg:        cfg,
		state:      s,
		history:    mock.MakeMockHistory(),
		classifier: mock.MakeMockClassifier(),
		tabs:       mock.MakeMockTabs(),
	}
	return guard.New(cfg, s, d.history, d.classifier, d.tabs), d
}

func nav(tabID int64, url string) *phishguard.NavigationEvent {
	return &phishguard.NavigationEvent{TabID: tabID, FrameID: 0, URL: url}
}

func TestTrustedDomainSkipsClassifier(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/trusted")
	defer d.state.Close()

	if err := d.state.Trust("example.com"); err != nil {
		t.Fatalf("error trusting domain: %s\n", err)
	}

	e.OnNavigation(ctx, nav(1, "https://accounts.example.com/login"))
	if d.classifier.ClassifyCalled {
		t.Fatalf("classifier should not be called for a trusted domain")
	}

	// the popup only fires once the page is done loading
	if len(d.tabs.Notes(1)) != 0 {
		t.Fatalf("notification delivered before load completed")
	}
	e.Notifier().TabLoaded(ctx, 1)
	notes := d.tabs.Notes(1)
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification got %d\n", len(notes))
	}
	note, ok := notes[0].(phishguard.TrustedSiteNote)
	if !ok {
		t.Fatalf("expected trusted site note got %T\n", notes[0])
	}
	if note.Domain != "example.com" {
		t.Fatalf("expected example.com got %s\n", note.Domain)
	}
}

func TestBypassConsumedExactlyOnce(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/bypass")
	defer d.state.Close()

	target := "http://phish.example.net/login"
	if err := d.state.GrantBypass(target); err != nil {
		t.Fatalf("error granting bypass: %s\n", err)
	}

	e.OnNavigation(ctx, nav(1, target))
	if d.classifier.ClassifyCalled {
		t.Fatalf("bypassed navigation should not be classified")
	}

	// second navigation to the same URL, the token is spent
	e.OnNavigation(ctx, nav(1, target))
	if !d.classifier.ClassifyCalled {
		t.Fatalf("second navigation should be classified")
	}
}

func TestBypassRequiresExactMatch(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/bypassexact")
	defer d.state.Close()

	if err := d.state.GrantBypass("http://phish.example.net/login"); err != nil {
		t.Fatalf("error granting bypass: %s\n", err)
	}

	e.OnNavigation(ctx, nav(1, "http://phish.example.net/login?x=1"))
	if !d.classifier.ClassifyCalled {
		t.Fatalf("non-matching URL should be classified")
	}
	url, err := d.state.BypassURL()
	if err != nil {
		t.Fatalf("error reading bypass url: %s\n", err)
	}
	if url == "" {
		t.Fatalf("non-matching navigation must leave the token in place")
	}
}

func TestPhishingRedirectsToWarning(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/phishing")
	defer d.state.Close()

	// a safe navigation first so the tab has a fallback target
	e.OnNavigation(ctx, nav(1, "https://safe.example.com/"))

	d.classifier.ClassifyFn = func(ctx context.Context, url string) (*phishguard.Verdict, error) {
		return &phishguard.Verdict{Prediction: true, Probability: 0.93}, nil
	}
	e.OnNavigation(ctx, nav(1, "http://phish.example.net/login"))

	redirects := d.tabs.Redirects(1)
	if len(redirects) != 1 {
		t.Fatalf("expected 1 redirect got %d\n", len(redirects))
	}
	if redirects[0] != d.cfg.WarningURL {
		t.Fatalf("expected redirect to %s got %s\n", d.cfg.WarningURL, redirects[0])
	}

	rec, err := d.state.Decision()
	if err != nil {
		t.Fatalf("error reading decision: %s\n", err)
	}
	if rec == nil || rec.Decision != phishguard.DecisionPhishing {
		t.Fatalf("expected live phishing decision got %+v\n", rec)
	}
	if rec.FallbackURL != "https://safe.example.com/" {
		t.Fatalf("expected fallback to last safe URL got %s\n", rec.FallbackURL)
	}

	count, err := d.state.SitesProtected()
	if err != nil {
		t.Fatalf("error reading counter: %s\n", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 site protected got %d\n", count)
	}
	if len(d.history.Records()) != 2 {
		t.Fatalf("expected 2 history records got %d\n", len(d.history.Records()))
	}

	// loading the warning page must not fire a stale safe notification
	e.Notifier().TabLoaded(ctx, 1)
	if len(d.tabs.Notes(1)) != 0 {
		t.Fatalf("no notification should follow a blocked navigation")
	}
}

func TestPhishingWithoutFallbackUsesNewTab(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/nofallback")
	defer d.state.Close()

	d.classifier.ClassifyFn = func(ctx context.Context, url string) (*phishguard.Verdict, error) {
		return &phishguard.Verdict{Prediction: true, Probability: 0.8}, nil
	}
	e.OnNavigation(ctx, nav(7, "http://phish.example.net/"))

	rec, err := d.state.Decision()
	if err != nil {
		t.Fatalf("error reading decision: %s\n", err)
	}
	if rec.FallbackURL != d.cfg.NewTabURL {
		t.Fatalf("expected new tab fallback got %s\n", rec.FallbackURL)
	}
}

func TestSafeNotificationAfterLoad(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/safe")
	defer d.state.Close()

	e.OnNavigation(ctx, nav(1, "https://safe.example.com/"))
	if len(d.tabs.Notes(1)) != 0 {
		t.Fatalf("notification delivered before load completed")
	}

	e.Notifier().TabLoaded(ctx, 1)
	notes := d.tabs.Notes(1)
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification got %d\n", len(notes))
	}
	note, ok := notes[0].(phishguard.SafeSiteNote)
	if !ok {
		t.Fatalf("expected safe site note got %T\n", notes[0])
	}
	if note.Confidence != 0.1 {
		t.Fatalf("expected 0.1 confidence got %f\n", note.Confidence)
	}

	// one-shot: a second load of the same page stays quiet
	e.Notifier().TabLoaded(ctx, 1)
	if len(d.tabs.Notes(1)) != 1 {
		t.Fatalf("notification fired more than once")
	}
}

func TestDetectionDisabled(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/disabled")
	defer d.state.Close()

	if err := d.state.SetDetectionEnabled(false); err != nil {
		t.Fatalf("error disabling detection: %s\n", err)
	}
	e.OnNavigation(ctx, nav(1, "http://phish.example.net/"))
	if d.classifier.ClassifyCalled {
		t.Fatalf("classifier called while detection disabled")
	}
	if d.tabs.RedirectCalled {
		t.Fatalf("redirect issued while detection disabled")
	}
}

func TestSchemeAndFrameGates(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/gates")
	defer d.state.Close()

	var inputs = []*phishguard.NavigationEvent{
		{TabID: 1, FrameID: 0, URL: "chrome://newtab/"},
		{TabID: 1, FrameID: 0, URL: "ftp://files.example.com/"},
		{TabID: 1, FrameID: 0, URL: "about:blank"},
		{TabID: 1, FrameID: 3, URL: "http://phish.example.net/frame"},
	}
	for _, in := range inputs {
		e.OnNavigation(ctx, in)
		if d.classifier.ClassifyCalled {
			t.Fatalf("%s should not be classified\n", in.URL)
		}
	}
}

func TestSearchEngineExempt(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/exempt")
	defer d.state.Close()

	e.OnNavigation(ctx, nav(1, "https://www.google.com/search?q=bank+login"))
	if d.classifier.ClassifyCalled {
		t.Fatalf("search result page should not be classified")
	}
}

func TestClassifierFailureAllowsNavigation(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/failopen")
	defer d.state.Close()

	d.classifier.ClassifyFn = func(ctx context.Context, url string) (*phishguard.Verdict, error) {
		return nil, errors.New("connection refused")
	}
	e.OnNavigation(ctx, nav(1, "http://phish.example.net/"))

	if d.tabs.RedirectCalled {
		t.Fatalf("redirect issued on classifier failure")
	}
	rec, err := d.state.Decision()
	if err != nil {
		t.Fatalf("error reading decision: %s\n", err)
	}
	if rec != nil {
		t.Fatalf("no decision should be recorded on classifier failure")
	}
}

func TestDispatchTrustDomain(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/dispatchtrust")
	defer d.state.Close()

	var inputs = []struct {
		in       string
		expected string
	}{
		{"https://www.example.com/path", "example.com"},
		{"sub.other.org", "other.org"},
	}
	for _, in := range inputs {
		if err := e.Dispatch(ctx, phishguard.TrustDomainCmd{URL: in.in}); err != nil {
			t.Fatalf("error dispatching trust: %s\n", err)
		}
		trusted, err := d.state.IsTrusted(in.expected)
		if err != nil {
			t.Fatalf("error checking trust: %s\n", err)
		}
		if !trusted {
			t.Fatalf("expected %s trusted after trusting %s\n", in.expected, in.in)
		}
	}

	if err := e.Dispatch(ctx, phishguard.UntrustDomainCmd{Domain: "example.com"}); err != nil {
		t.Fatalf("error dispatching untrust: %s\n", err)
	}
	trusted, err := d.state.IsTrusted("example.com")
	if err != nil {
		t.Fatalf("error checking trust: %s\n", err)
	}
	if trusted {
		t.Fatalf("example.com still trusted after untrust")
	}

	if err := e.Dispatch(ctx, phishguard.ClearTrustedCmd{}); err != nil {
		t.Fatalf("error dispatching clear: %s\n", err)
	}
	domains, err := d.state.TrustedDomains()
	if err != nil {
		t.Fatalf("error reading trusted domains: %s\n", err)
	}
	if len(domains) != 0 {
		t.Fatalf("expected empty trusted set got %d entries\n", len(domains))
	}
}

func TestDispatchForceWarning(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/dispatchforce")
	defer d.state.Close()

	if err := e.Dispatch(ctx, phishguard.ForceWarningCmd{}); err != nil {
		t.Fatalf("error dispatching force warning: %s\n", err)
	}
	redirects := d.tabs.Redirects(1)
	if len(redirects) != 1 || redirects[0] != d.cfg.WarningURL {
		t.Fatalf("expected warning redirect on active tab got %v\n", redirects)
	}
}

func TestFeedbackOnOverride(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/feedback")
	defer d.state.Close()

	if err := d.state.SetDeveloperMode(true); err != nil {
		t.Fatalf("error enabling developer mode: %s\n", err)
	}

	// live safe verdict, forcing the warning overrides it
	e.OnNavigation(ctx, nav(1, "https://safe.example.com/"))

	var got *phishguard.Feedback
	d.classifier.SendFeedbackFn = func(ctx context.Context, fb *phishguard.Feedback) error {
		got = fb
		return nil
	}
	if err := e.Dispatch(ctx, phishguard.ForceWarningCmd{}); err != nil {
		t.Fatalf("error dispatching force warning: %s\n", err)
	}
	if got == nil {
		t.Fatalf("expected feedback to be sent")
	}
	if got.ModelPrediction != phishguard.LabelLegitimate || got.UserLabel != phishguard.LabelPhishing {
		t.Fatalf("unexpected feedback labels %s/%s\n", got.ModelPrediction, got.UserLabel)
	}
	if got.URL != "https://safe.example.com/" {
		t.Fatalf("expected feedback for live record URL got %s\n", got.URL)
	}
}

func TestNoFeedbackWithoutDeveloperMode(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/nofeedback")
	defer d.state.Close()

	e.OnNavigation(ctx, nav(1, "https://safe.example.com/"))
	if err := e.Dispatch(ctx, phishguard.ForceWarningCmd{}); err != nil {
		t.Fatalf("error dispatching force warning: %s\n", err)
	}
	if d.classifier.SendFeedbackCalled {
		t.Fatalf("feedback sent without developer mode")
	}
}

func TestTabRemovedEvictsState(t *testing.T) {
	ctx := context.Background()
	e, d := testEngine(t, "testdata/tabremove")
	defer d.state.Close()

	e.OnNavigation(ctx, nav(1, "https://safe.example.com/"))
	if _, ok := e.Fallbacks().Get(1); !ok {
		t.Fatalf("expected fallback entry for tab")
	}

	e.OnTabEvent(ctx, &phishguard.TabEvent{Type: phishguard.TabRemoved, TabID: 1})
	if _, ok := e.Fallbacks().Get(1); ok {
		t.Fatalf("fallback entry survived tab removal")
	}
	e.Notifier().TabLoaded(ctx, 1)
	if len(d.tabs.Notes(1)) != 0 {
		t.Fatalf("notification fired for removed tab")
	}
}
