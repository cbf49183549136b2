package guard

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"

	"gitlab.com/phishguard/phishguard"
)

// Engine is the per-navigation decision core: exemption filter, trust
// evaluation, bypass consumption, remote classification and the resulting
// redirect or notification
type Engine struct {
	cfg        *phishguard.Config
	state      phishguard.StateStorer
	history    phishguard.DecisionHistory
	classifier phishguard.Classifier
	tabs       phishguard.TabController
	exempt     *ExemptionFilter
	notifier   *Notifier
	fallbacks  *FallbackTable
}

// New engine
func New(cfg *phishguard.Config, state phishguard.StateStorer, history phishguard.DecisionHistory,
	classifier phishguard.Classifier, tabs phishguard.TabController) *Engine {
	return &Engine{
		cfg:        cfg,
		state:      state,
		history:    history,
		classifier: classifier,
		tabs:       tabs,
		exempt:     NewExemptionFilter(),
		notifier:   NewNotifier(tabs),
		fallbacks:  NewFallbackTable(cfg.MaxTabEntries),
	}
}

// Notifier for wiring load-complete events in tests
func (e *Engine) Notifier() *Notifier {
	return e.notifier
}

// Fallbacks table
func (e *Engine) Fallbacks() *FallbackTable {
	return e.fallbacks
}

// Run consumes tab events until ctx is done or the channel closes.
// Navigation decisions run concurrently, they block on classifier I/O,
// lifecycle events are handled in arrival order.
func (e *Engine) Run(ctx context.Context, events <-chan *phishguard.TabEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if evt.Type == phishguard.TabNavigating {
				go e.OnTabEvent(ctx, evt)
				continue
			}
			e.OnTabEvent(ctx, evt)
		}
	}
}

// OnTabEvent routes a single tab lifecycle event
func (e *Engine) OnTabEvent(ctx context.Context, evt *phishguard.TabEvent) {
	switch evt.Type {
	case phishguard.TabNavigating:
		e.OnNavigation(ctx, evt.Navigation)
	case phishguard.TabLoaded:
		e.notifier.TabLoaded(ctx, evt.TabID)
	case phishguard.TabRemoved:
		e.notifier.TabRemoved(evt.TabID)
		e.fallbacks.Remove(evt.TabID)
	case phishguard.TabActivated:
		// active tab is tracked by the controller
	}
}

// OnNavigation runs the decision pipeline for one top-level navigation.
// Every failure degrades to allowing the navigation.
func (e *Engine) OnNavigation(ctx context.Context, nav *phishguard.NavigationEvent) {
	if nav == nil || !nav.IsTopLevel() {
		return
	}

	settings, err := e.state.Settings()
	if err != nil {
		log.Warn().Err(err).Msg("failed to read settings, allowing navigation")
		return
	}
	if !settings.DetectionEnabled {
		return
	}

	u, err := url.Parse(nav.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return
	}

	if e.exempt.IsExempt(nav.URL) {
		return
	}

	// supersedes any pending notification from an earlier navigation on
	// this tab
	seq := e.notifier.Begin(nav.TabID)

	domain := e.baseDomain(u.Hostname())
	trusted, err := e.state.IsTrusted(domain)
	if err != nil {
		// fail to classification, not to trust
		log.Warn().Err(err).Str("domain", domain).Msg("trust lookup failed")
		trusted = false
	}
	if trusted {
		e.notifier.Expect(nav.TabID, seq, phishguard.TrustedSiteNote{Domain: domain})
		return
	}

	consumed, err := e.state.ConsumeBypass(nav.URL)
	if err != nil {
		log.Warn().Err(err).Msg("bypass check failed")
	}
	if consumed {
		// the warning page just re-entered this URL, let it load once with
		// no banner so we don't redirect in a loop
		log.Info().Str("url", nav.URL).Msg("bypass token consumed")
		return
	}

	verdict, err := e.classifier.Classify(ctx, nav.URL)
	if err != nil {
		// fail open: classifier downtime means silent pass-through
		log.Warn().Err(err).Str("url", nav.URL).Msg("classifier unavailable, allowing navigation")
		return
	}

	if verdict.Decision() == phishguard.DecisionPhishing {
		e.blockNavigation(ctx, nav, verdict)
		return
	}
	e.recordSafe(ctx, nav, verdict, seq)
}

func (e *Engine) blockNavigation(ctx context.Context, nav *phishguard.NavigationEvent, verdict *phishguard.Verdict) {
	fallback, ok := e.fallbacks.Get(nav.TabID)
	if !ok {
		fallback = e.cfg.NewTabURL
	}

	rec := &phishguard.DecisionRecord{
		ID:          uuid.NewV4().String(),
		URL:         nav.URL,
		Decision:    phishguard.DecisionPhishing,
		Confidence:  verdict.Probability,
		FallbackURL: fallback,
		CheckedAt:   time.Now(),
	}
	if err := e.state.SetDecision(rec); err != nil {
		log.Error().Err(err).Msg("failed to persist phishing decision")
	}
	if _, err := e.state.IncrementSitesProtected(); err != nil {
		log.Warn().Err(err).Msg("failed to bump protected counter")
	}
	if err := e.history.Append(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("failed to append decision history")
	}

	if err := e.tabs.Redirect(ctx, nav.TabID, e.cfg.WarningURL); err != nil {
		log.Error().Err(err).Int64("tab_id", nav.TabID).Msg("failed to redirect to warning page")
		return
	}
	log.Info().Str("url", nav.URL).Float64("confidence", verdict.Probability).Msg("navigation blocked")
}

func (e *Engine) recordSafe(ctx context.Context, nav *phishguard.NavigationEvent, verdict *phishguard.Verdict, seq uint64) {
	e.fallbacks.Set(nav.TabID, nav.URL)

	rec := &phishguard.DecisionRecord{
		ID:         uuid.NewV4().String(),
		URL:        nav.URL,
		Decision:   phishguard.DecisionSafe,
		Confidence: verdict.Probability,
		CheckedAt:  time.Now(),
	}
	if err := e.state.SetDecision(rec); err != nil {
		log.Error().Err(err).Msg("failed to persist safe decision")
	}
	if err := e.history.Append(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("failed to append decision history")
	}

	e.notifier.Expect(nav.TabID, seq, phishguard.SafeSiteNote{Confidence: verdict.Probability})
}

// Dispatch applies an inbound command from a UI surface. The command set is
// closed, every variant is handled here.
func (e *Engine) Dispatch(ctx context.Context, cmd phishguard.Command) error {
	switch c := cmd.(type) {
	case phishguard.TrustDomainCmd:
		domain, err := e.trustUnit(c.URL)
		if err != nil {
			return err
		}
		if err := e.state.Trust(domain); err != nil {
			return err
		}
		log.Info().Str("domain", domain).Msg("domain trusted")
		e.feedbackOnOverride(ctx, phishguard.LabelPhishing, phishguard.LabelLegitimate)
		return nil

	case phishguard.UntrustDomainCmd:
		log.Info().Str("domain", c.Domain).Msg("domain untrusted")
		return e.state.Untrust(c.Domain)

	case phishguard.ForceWarningCmd:
		tabID, err := e.tabs.ActiveTab()
		if err != nil {
			return errors.Wrap(err, "no active tab")
		}
		e.feedbackOnOverride(ctx, phishguard.LabelLegitimate, phishguard.LabelPhishing)
		return e.tabs.Redirect(ctx, tabID, e.cfg.WarningURL)

	case phishguard.GrantBypassCmd:
		log.Info().Str("url", c.URL).Msg("one-time bypass granted")
		return e.state.GrantBypass(c.URL)

	case phishguard.ClearTrustedCmd:
		return e.state.ClearTrusted()
	}
	return errors.Errorf("unknown command %T", cmd)
}

// feedbackOnOverride reports a user correction of the live verdict back to
// the model service. Developer mode only, fire-and-forget.
func (e *Engine) feedbackOnOverride(ctx context.Context, modelPrediction, userLabel string) {
	settings, err := e.state.Settings()
	if err != nil || !settings.DeveloperMode {
		return
	}
	rec, err := e.state.Decision()
	if err != nil || rec == nil {
		return
	}
	// only report when the live verdict is the one being overridden
	if modelPrediction == phishguard.LabelPhishing && rec.Decision != phishguard.DecisionPhishing {
		return
	}
	if modelPrediction == phishguard.LabelLegitimate && rec.Decision != phishguard.DecisionSafe {
		return
	}

	fb := &phishguard.Feedback{
		URL:             rec.URL,
		ModelPrediction: modelPrediction,
		UserLabel:       userLabel,
		Confidence:      rec.Confidence,
	}
	if err := e.classifier.SendFeedback(ctx, fb); err != nil {
		log.Warn().Err(err).Str("url", fb.URL).Msg("feedback send failed")
	}
}

// trustUnit extracts the trust domain from raw user input, bare domains are
// accepted the way the panel accepts them
func (e *Engine) trustUnit(raw string) (string, error) {
	input := raw
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", errors.Wrap(err, "parse trust input")
	}
	host := u.Hostname()
	if host == "" {
		return "", errors.Errorf("no hostname in %q", raw)
	}
	return e.baseDomain(host), nil
}

func (e *Engine) baseDomain(hostname string) string {
	if e.cfg.StrictBaseDomain {
		return phishguard.RegistrableDomain(hostname)
	}
	return phishguard.BaseDomain(hostname)
}
