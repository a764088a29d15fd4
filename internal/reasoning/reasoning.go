// Package reasoning explains drift: given a drift summary it produces a
// cause label, confidence, alert text, and corrective actions. A remote
// model does the explaining when available; a deterministic rule classifier
// always stands behind it so the tick loop never blocks on the network.
package reasoning

import (
	"context"
	"time"

	"github.com/rinkside/standwatch/internal/logger"
	"github.com/rinkside/standwatch/internal/models"
)

// DriftSummary is the classifier input: one stand's drift shape at the
// moment an alert fires, plus whatever overrides the session knows about.
type DriftSummary struct {
	Stand           string        `json:"stand"`
	Window          int           `json:"window"`
	WindowLabel     string        `json:"window_label"`
	ForecastQty     float64       `json:"forecast_qty"`
	ActualQty       float64       `json:"actual_qty"`
	VolumeDrift     float64       `json:"volume_drift"`
	MixDrift        float64       `json:"mix_drift"`
	MixKnown        bool          `json:"mix_known"`
	TimingDrift     float64       `json:"timing_drift"`
	CumulativeDrift float64       `json:"cumulative_drift"`
	Status          models.Status `json:"status"`
	Trend           models.Trend  `json:"trend"`
	KnownOverrides  []string      `json:"known_overrides,omitempty"`
}

// Result is the classifier output, identical in shape for the remote model
// and the rule fallback so downstream consumers never special-case either.
type Result struct {
	Cause      models.Cause    `json:"cause"`
	Confidence float64         `json:"confidence"`
	AlertText  string          `json:"alert_text"`
	Actions    []models.Action `json:"actions"`
}

// Classifier explains one drift summary.
type Classifier interface {
	Classify(ctx context.Context, s DriftSummary) (Result, error)
}

// Adapter fronts an optional remote classifier with the rule fallback. The
// remote call runs under a bounded timeout; on timeout, error, or skip, the
// rules answer instead. Classification failures never fail a session.
type Adapter struct {
	remote  Classifier
	rules   *RuleClassifier
	timeout time.Duration
	skip    bool
	log     *logger.Logger
}

// NewAdapter builds the adapter. Remote may be nil; skip forces rules-only.
func NewAdapter(remote Classifier, timeout time.Duration, skip bool) *Adapter {
	return &Adapter{
		remote:  remote,
		rules:   NewRuleClassifier(),
		timeout: timeout,
		skip:    skip,
		log:     logger.With("reasoning"),
	}
}

// Classify never returns an error: the rule classifier is total.
func (a *Adapter) Classify(ctx context.Context, s DriftSummary) Result {
	if a.skip || a.remote == nil {
		return a.rules.classify(s)
	}
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	result, err := a.remote.Classify(callCtx, s)
	if err != nil {
		a.log.Warn("remote classification failed for %s window %d, using rules: %v", s.Stand, s.Window, err)
		return a.rules.classify(s)
	}
	return result
}
