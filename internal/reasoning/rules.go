package reasoning

import (
	"context"
	"fmt"
	"math"

	"github.com/rinkside/standwatch/internal/models"
	"github.com/rinkside/standwatch/internal/prep"
)

// Drift-shape thresholds for the rule heuristics.
const (
	outageActualFloor = 0.05 // actual below 5% of forecast reads as an outage
	spikeThreshold    = 0.50 // single-stand volume surge
	noiseBand         = models.GreenThreshold
	mixShiftThreshold = 0.25
)

// RuleClassifier maps drift shapes to causes deterministically. It is the
// always-available fallback behind the remote model and the only classifier
// in skip_ai runs.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify implements Classifier. It cannot fail.
func (r *RuleClassifier) Classify(_ context.Context, s DriftSummary) (Result, error) {
	return r.classify(s), nil
}

func (r *RuleClassifier) classify(s DriftSummary) Result {
	hasOverride := func(typ string) bool {
		for _, o := range s.KnownOverrides {
			if o == typ {
				return true
			}
		}
		return false
	}

	switch {
	case s.ForecastQty > 0 && s.ActualQty < s.ForecastQty*outageActualFloor:
		// Near-zero sales against live forecast: the stand is dark.
		return Result{
			Cause:      models.CauseStandOutage,
			Confidence: 0.9,
			AlertText: fmt.Sprintf("%s has near-zero sales in %s against a forecast of %.0f. Stand likely offline; redirect traffic and shift staff.",
				s.Stand, s.WindowLabel, s.ForecastQty),
			Actions: []models.Action{
				{Stand: s.Stand, Action: "stop_prep"},
				{Stand: s.Stand, Action: "redistribute", QuantityChangePct: -100},
			},
		}

	case hasOverride("stand_outage") && s.VolumeDrift > spikeThreshold:
		// A known outage elsewhere is pushing this stand's volume up.
		return Result{
			Cause:      models.CauseRedistribution,
			Confidence: 0.85,
			AlertText: fmt.Sprintf("%s running %.0f%% over forecast in %s while another stand is down. Absorbed demand; scale prep up.",
				s.Stand, s.VolumeDrift*100, s.WindowLabel),
			Actions: []models.Action{prep.ScaleUp(s.Stand, "")},
		}

	case s.VolumeDrift > spikeThreshold && (hasOverride("demand_spike") || hasOverride("global_volume")):
		// The surge matches an active demand override; keep prep in step.
		return Result{
			Cause:      models.CauseDemandSpike,
			Confidence: 0.85,
			AlertText: fmt.Sprintf("%s running %.0f%% over forecast in %s under an active demand surge. Scale prep to match.",
				s.Stand, s.VolumeDrift*100, s.WindowLabel),
			Actions: []models.Action{prep.ScaleUp(s.Stand, "")},
		}

	case math.Abs(s.CumulativeDrift) <= noiseBand && math.Abs(s.VolumeDrift) <= 2*noiseBand:
		return Result{
			Cause:      models.CauseNoise,
			Confidence: 0.8,
			AlertText: fmt.Sprintf("%s drift in %s is within the normal noise band (%.0f%% cumulative). No action needed.",
				s.Stand, s.WindowLabel, s.CumulativeDrift*100),
			Actions: []models.Action{{Stand: s.Stand, Action: "hold"}},
		}

	case s.MixKnown && s.MixDrift > mixShiftThreshold && s.VolumeDrift > 0:
		// Category mix moved with volume up: weather-driven demand shift.
		return Result{
			Cause:      models.CauseWeather,
			Confidence: 0.6,
			AlertText: fmt.Sprintf("%s item mix shifted %.0fpp in %s with volume running %.0f%% hot. Looks weather-driven; rebalance cold vs hot stock.",
				s.Stand, s.MixDrift*100, s.WindowLabel, s.VolumeDrift*100),
			Actions: []models.Action{
				{Stand: s.Stand, Action: "increase_prep", QuantityChangePct: 15},
			},
		}

	case s.VolumeDrift > spikeThreshold && len(s.KnownOverrides) == 0:
		// Sudden single-stand surge with nothing known to explain it.
		return Result{
			Cause:      models.CauseUntaggedPromo,
			Confidence: 0.7,
			AlertText: fmt.Sprintf("%s surged %.0f%% over forecast in %s with no known cause. Looks like an untagged promo; scale prep and confirm with marketing.",
				s.Stand, s.VolumeDrift*100, s.WindowLabel),
			Actions: []models.Action{prep.ScaleUp(s.Stand, "")},
		}

	case s.CumulativeDrift < -models.GreenThreshold:
		return Result{
			Cause:      models.CauseUnknown,
			Confidence: 0.5,
			AlertText: fmt.Sprintf("%s tracking %.0f%% under forecast through %s. Slow demand; trim short-life prep to limit waste.",
				s.Stand, s.CumulativeDrift*100, s.WindowLabel),
			Actions: []models.Action{
				{Stand: s.Stand, Action: "decrease_prep", QuantityChangePct: -15},
			},
		}

	default:
		return Result{
			Cause:      models.CauseUnknown,
			Confidence: 0.4,
			AlertText: fmt.Sprintf("%s drifting %.0f%% from forecast in %s; no matching pattern. Watch the next few windows.",
				s.Stand, s.CumulativeDrift*100, s.WindowLabel),
			Actions: []models.Action{{Stand: s.Stand, Action: "hold"}},
		}
	}
}
