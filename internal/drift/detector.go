// Package drift maintains running forecast-vs-actual state per stand and
// classifies deviation severity along volume, mix, and timing dimensions.
package drift

import (
	"fmt"
	"math"

	"github.com/rinkside/standwatch/internal/models"
)

// Epsilon floors divisions by near-zero forecasts so ratios stay finite.
const Epsilon = 1e-6

// Severity weights. Volume drives stockout and waste most directly, so it
// dominates; mix drops out of the denominator when no breakdown is available.
const (
	volumeWeight = 1.0
	mixWeight    = 0.5
	timingWeight = 0.5
)

type standState struct {
	cumActual   float64
	cumForecast float64
	records     []models.DriftRecord
}

// Detector owns the append-only per-stand drift sequences for one session.
// Not safe for concurrent use; the orchestrator calls it from its one loop.
type Detector struct {
	table      *models.ForecastTable
	lookback   int
	hysteresis float64

	states map[string]*standState

	venueCumActual   float64
	venueCumForecast float64
	windowsProcessed int
	windowsWithDrift int
}

// NewDetector builds a detector over one session's baseline. Lookback is the
// trend comparison distance in windows; hysteresis is the dead band around
// no-change.
func NewDetector(table *models.ForecastTable, lookback int, hysteresis float64) *Detector {
	states := make(map[string]*standState, len(table.Stands))
	for _, stand := range table.Stands {
		states[stand] = &standState{}
	}
	return &Detector{
		table:      table,
		lookback:   lookback,
		hysteresis: hysteresis,
		states:     states,
	}
}

// Observe folds one stand's window observation into the running state and
// returns the resulting drift record. Observations must arrive in strictly
// increasing window order per stand with no gaps; anything else is an error,
// since a skipped window would corrupt the append-only sequence.
func (d *Detector) Observe(obs models.ActualObservation) (models.DriftRecord, error) {
	st, ok := d.states[obs.Stand]
	if !ok {
		return models.DriftRecord{}, fmt.Errorf("unknown stand %q", obs.Stand)
	}
	if obs.Window != len(st.records) {
		return models.DriftRecord{}, fmt.Errorf("stand %q: observation for window %d, expected %d",
			obs.Stand, obs.Window, len(st.records))
	}
	if obs.Qty < 0 {
		return models.DriftRecord{}, fmt.Errorf("stand %q window %d: negative actual %.2f",
			obs.Stand, obs.Window, obs.Qty)
	}

	forecastQty := d.table.StandWindowQty(obs.Stand, obs.Window)

	rec := models.DriftRecord{
		Stand:       obs.Stand,
		Window:      obs.Window,
		ForecastQty: forecastQty,
		ActualQty:   obs.Qty,
	}

	noDemand := forecastQty == 0 && obs.Qty == 0
	if !noDemand {
		rec.DriftPct = (obs.Qty - forecastQty) / math.Max(forecastQty, Epsilon)
	}
	rec.VolumeDrift = rec.DriftPct

	if len(obs.Categories) > 0 {
		if shares := d.table.CategoryShares(obs.Stand, obs.Window); len(shares) > 0 {
			rec.MixDrift = mixDeviation(shares, obs.Categories, obs.Qty)
			rec.MixKnown = true
		}
	}

	st.cumActual += obs.Qty
	st.cumForecast += forecastQty
	rec.CumActual = st.cumActual
	rec.CumForecast = st.cumForecast
	if st.cumForecast == 0 && st.cumActual == 0 {
		rec.CumulativeDrift = 0
	} else {
		rec.CumulativeDrift = st.cumActual/math.Max(st.cumForecast, Epsilon) - 1
	}

	standTotal := d.table.StandTotal(obs.Stand)
	rec.TimingDrift = (st.cumActual - st.cumForecast) / math.Max(standTotal, Epsilon)

	rec.Severity = severity(rec.VolumeDrift, rec.MixDrift, rec.TimingDrift, rec.MixKnown)

	if noDemand {
		rec.Status = models.StatusGreen
	} else {
		rec.Status = models.ClassifyStatus(rec.CumulativeDrift)
	}
	rec.Trend = d.trend(st, rec.CumulativeDrift)

	st.records = append(st.records, rec)
	return rec, nil
}

// trend compares the current cumulative drift magnitude against the value
// lookback windows prior. Early windows with no deep enough history are
// stable by definition.
func (d *Detector) trend(st *standState, cumulativeDrift float64) models.Trend {
	if len(st.records) < d.lookback {
		return models.TrendStable
	}
	prior := math.Abs(st.records[len(st.records)-d.lookback].CumulativeDrift)
	delta := math.Abs(cumulativeDrift) - prior
	switch {
	case delta < -d.hysteresis:
		return models.TrendImproving
	case delta > d.hysteresis:
		return models.TrendWorsening
	default:
		return models.TrendStable
	}
}

// mixDeviation sums absolute share differences between forecast and actual
// category splits over the union of categories.
func mixDeviation(forecastShares map[string]float64, actualByCategory map[string]float64, actualTotal float64) float64 {
	if actualTotal <= 0 {
		return 0
	}
	var dev float64
	seen := make(map[string]bool, len(forecastShares))
	for cat, fShare := range forecastShares {
		aShare := actualByCategory[cat] / actualTotal
		dev += math.Abs(fShare - aShare)
		seen[cat] = true
	}
	for cat, qty := range actualByCategory {
		if !seen[cat] {
			dev += qty / actualTotal
		}
	}
	return dev
}

// severity is the weighted average of absolute drift magnitudes. Used only
// to rank causes, never to override the status thresholds.
func severity(volume, mix, timing float64, mixKnown bool) float64 {
	num := volumeWeight*math.Abs(volume) + timingWeight*math.Abs(timing)
	den := volumeWeight + timingWeight
	if mixKnown {
		num += mixWeight * math.Abs(mix)
		den += mixWeight
	}
	return num / den
}

// CompleteWindow finalizes one fully observed window: updates venue running
// totals and returns the venue-level aggregates for the window update event.
// Call exactly once per window, after every stand has been observed.
func (d *Detector) CompleteWindow(window int) (actualQty, forecastQty, driftPct, cumulativeDrift float64) {
	var anyOffGreen bool
	for _, stand := range d.table.Stands {
		st := d.states[stand]
		if window < len(st.records) {
			rec := st.records[window]
			actualQty += rec.ActualQty
			if rec.Status != models.StatusGreen {
				anyOffGreen = true
			}
		}
	}
	forecastQty = d.table.WindowTotal(window)

	d.venueCumActual += actualQty
	d.venueCumForecast += forecastQty
	d.windowsProcessed++
	if anyOffGreen {
		d.windowsWithDrift++
	}

	if forecastQty > 0 || actualQty > 0 {
		driftPct = (actualQty - forecastQty) / math.Max(forecastQty, Epsilon)
	}
	if d.venueCumForecast > 0 || d.venueCumActual > 0 {
		cumulativeDrift = d.venueCumActual/math.Max(d.venueCumForecast, Epsilon) - 1
	}
	return actualQty, forecastQty, driftPct, cumulativeDrift
}

// Latest returns the most recent record for a stand.
func (d *Detector) Latest(stand string) (models.DriftRecord, bool) {
	st, ok := d.states[stand]
	if !ok || len(st.records) == 0 {
		return models.DriftRecord{}, false
	}
	return st.records[len(st.records)-1], true
}

// Records returns the full append-only sequence for a stand.
func (d *Detector) Records(stand string) []models.DriftRecord {
	st, ok := d.states[stand]
	if !ok {
		return nil
	}
	out := make([]models.DriftRecord, len(st.records))
	copy(out, st.records)
	return out
}

// Stands returns the stand names the detector tracks, in layout order.
func (d *Detector) Stands() []string {
	return d.table.Stands
}

// Summary rolls up the session's drift totals for the post-game report.
func (d *Detector) Summary() models.Summary {
	var cumulative float64
	if d.venueCumForecast > 0 || d.venueCumActual > 0 {
		cumulative = d.venueCumActual/math.Max(d.venueCumForecast, Epsilon) - 1
	}
	return models.Summary{
		TotalForecast:    d.venueCumForecast,
		TotalActual:      d.venueCumActual,
		CumulativeDrift:  cumulative,
		WindowsProcessed: d.windowsProcessed,
		WindowsWithDrift: d.windowsWithDrift,
	}
}
