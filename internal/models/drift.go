package models

import "time"

// Status is the traffic-light state derived from cumulative drift magnitude.
type Status string

const (
	StatusGreen  Status = "green"
	StatusYellow Status = "yellow"
	StatusRed    Status = "red"
)

// Cumulative drift thresholds. Status is driven by cumulative drift rather
// than the per-window value to avoid flapping on single-window noise.
const (
	GreenThreshold  = 0.15
	YellowThreshold = 0.30
)

// ClassifyStatus maps an absolute drift magnitude to a traffic-light status.
func ClassifyStatus(drift float64) Status {
	abs := drift
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs <= GreenThreshold:
		return StatusGreen
	case abs <= YellowThreshold:
		return StatusYellow
	default:
		return StatusRed
	}
}

// Severity orders statuses for worst-of aggregation: red > yellow > green.
func (s Status) Severity() int {
	switch s {
	case StatusRed:
		return 2
	case StatusYellow:
		return 1
	default:
		return 0
	}
}

// Trend describes how a stand's cumulative drift magnitude is moving over a
// short lookback window.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
)

// DriftRecord is one stand's drift state for one processed window. Records
// form an append-only per-stand sequence; a record is never mutated after it
// is appended.
type DriftRecord struct {
	Stand       string  `json:"stand"`
	Window      int     `json:"window"`
	ForecastQty float64 `json:"forecast_qty"`
	ActualQty   float64 `json:"actual_qty"`

	DriftPct    float64 `json:"drift_pct"`
	VolumeDrift float64 `json:"volume_drift"`
	MixDrift    float64 `json:"mix_drift"`
	TimingDrift float64 `json:"timing_drift"`
	MixKnown    bool    `json:"mix_known"`
	Severity    float64 `json:"severity"`

	CumulativeDrift float64 `json:"cumulative_drift"`
	CumActual       float64 `json:"cum_actual"`
	CumForecast     float64 `json:"cum_forecast"`

	Status Status `json:"status"`
	Trend  Trend  `json:"trend"`
}

// Cause is the fixed taxonomy of drift explanations.
type Cause string

const (
	CauseUntaggedPromo  Cause = "untagged_promo"
	CauseStandOutage    Cause = "stand_outage"
	CauseDemandSpike    Cause = "demand_spike"
	CauseWeather        Cause = "weather"
	CauseRedistribution Cause = "redistribution"
	CauseNoise          Cause = "noise"
	CauseUnknown        Cause = "unknown"
)

// Action is one corrective prep adjustment recommended to the shift manager.
type Action struct {
	Stand             string  `json:"stand"`
	Action            string  `json:"action"` // increase_prep, decrease_prep, redistribute, hold
	Item              string  `json:"item,omitempty"`
	QuantityChangePct float64 `json:"quantity_change_pct"` // whole percent, e.g. 15 for +15%
}

// Alert is emitted when a stand's status escalates or stays red past the
// debounce window. Immutable once created.
type Alert struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Stand      string    `json:"stand"`
	Window     int       `json:"window"`
	Cause      Cause     `json:"cause"`
	Confidence float64   `json:"confidence"`
	AlertText  string    `json:"alert_text"`
	Actions    []Action  `json:"actions"`
	CreatedAt  time.Time `json:"created_at"`
}
