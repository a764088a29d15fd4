package models

import "time"

// EventType tags the closed set of session stream events.
type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventWindowUpdate    EventType = "window_update"
	EventOverrideApplied EventType = "override_applied"
	EventSessionError    EventType = "session_error"
	EventSessionComplete EventType = "session_complete"
)

// StandStatus is the per-stand traffic-light view rendered for transport.
// DriftPct is the current window's drift; CumulativeDrift is the running
// signed deviation the light itself is keyed on.
type StandStatus struct {
	Stand           string  `json:"stand"`
	Status          Status  `json:"status"`
	DriftPct        float64 `json:"drift_pct"`
	CumulativeDrift float64 `json:"cumulative_drift"`
	ForecastQty     float64 `json:"forecast_qty"`
	ActualQty       float64 `json:"actual_qty"`
	Trend           Trend   `json:"trend"`
}

// BaselineSummary condenses the forecast table for the session_started event.
type BaselineSummary struct {
	TotalForecastQty float64   `json:"total_forecast_qty"`
	Stands           int       `json:"stands"`
	Windows          int       `json:"windows"`
	Archetype        Archetype `json:"archetype"`
	PrepActions      int       `json:"prep_actions"`
}

// SessionStarted is the first event of every session.
type SessionStarted struct {
	Game     Game            `json:"game"`
	Scenario string          `json:"scenario"`
	Speed    float64         `json:"speed"`
	Baseline BaselineSummary `json:"baseline_summary"`
}

// WindowUpdate carries one processed window: venue aggregates, the per-stand
// statuses, and at most one alert raised this window. Consumers may rely on
// strictly increasing WindowIndex with no gaps.
type WindowUpdate struct {
	Window          TimeWindow    `json:"window"`
	WindowIndex     int           `json:"window_index"`
	TotalWindows    int           `json:"total_windows"`
	ActualQty       float64       `json:"actual_qty"`
	ForecastQty     float64       `json:"forecast_qty"`
	DriftPct        float64       `json:"drift_pct"`
	CumulativeDrift float64       `json:"cumulative_drift"`
	VenueStatus     Status        `json:"venue_status"`
	Stands          []StandStatus `json:"stand_statuses"`
	Alert           *Alert        `json:"alert,omitempty"`
}

// OverrideApplied records that an injected perturbation took effect.
type OverrideApplied struct {
	Type            string  `json:"type"`
	Stand           string  `json:"stand,omitempty"`
	Item            string  `json:"item,omitempty"`
	Factor          float64 `json:"factor,omitempty"`
	FromWindow      int     `json:"from_window"`
	ToWindow        int     `json:"to_window"`
	AppliedAtWindow int     `json:"applied_at_window"`
}

// SessionError reports the failing component and reason for an errored run.
type SessionError struct {
	Component string `json:"component"`
	Message   string `json:"message"`
}

// Summary is the post-game rollup emitted with session_complete.
type Summary struct {
	TotalForecast    float64       `json:"total_forecast"`
	TotalActual      float64       `json:"total_actual"`
	CumulativeDrift  float64       `json:"cumulative_drift"`
	WindowsProcessed int           `json:"windows_processed"`
	WindowsWithDrift int           `json:"windows_with_drift"`
	TotalAlerts      int           `json:"total_alerts"`
	AlertsByCause    map[Cause]int `json:"alerts_by_cause,omitempty"`
	Stopped          bool          `json:"stopped"`
	Report           string        `json:"report,omitempty"`
}

// SessionComplete is the terminal event of a completed or stopped session.
type SessionComplete struct {
	Summary Summary `json:"summary"`
	Alerts  []Alert `json:"alerts"`
}

// Event is the tagged variant produced by the session orchestrator. Exactly
// one payload field is set, matching Type. Events are delivered in order on
// a single channel per session.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Time      time.Time `json:"time"`

	Started  *SessionStarted  `json:"session_started,omitempty"`
	Window   *WindowUpdate    `json:"window_update,omitempty"`
	Override *OverrideApplied `json:"override_applied,omitempty"`
	Error    *SessionError    `json:"session_error,omitempty"`
	Complete *SessionComplete `json:"session_complete,omitempty"`
}
