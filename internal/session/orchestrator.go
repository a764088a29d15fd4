package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rinkside/standwatch/internal/config"
	"github.com/rinkside/standwatch/internal/drift"
	"github.com/rinkside/standwatch/internal/logger"
	"github.com/rinkside/standwatch/internal/models"
	"github.com/rinkside/standwatch/internal/prep"
	"github.com/rinkside/standwatch/internal/reasoning"
	"github.com/rinkside/standwatch/internal/scenario"
	"github.com/rinkside/standwatch/internal/storage"
	"github.com/rinkside/standwatch/internal/trafficlight"
)

// State is the session lifecycle state. Completed, stopped, and errored are
// terminal.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateErrored   State = "errored"
)

// ErrAlreadyRunning rejects a duplicate start while a session is live. The
// existing session continues untouched.
var ErrAlreadyRunning = errors.New("session already running")

// Session is one replay run: idle until Run, then running until its windows
// are exhausted, it is stopped, or a tick fails. All mutation happens on the
// run goroutine; control calls only flip flags or delegate to components
// that synchronize themselves.
type Session struct {
	ID string

	cfg      config.SessionConfig
	table    *models.ForecastTable
	engine   *scenario.Engine
	detector *drift.Detector
	adapter  *reasoning.Adapter
	debounce *reasoning.Debouncer
	clock    *Clock
	recorder storage.Recorder
	log      *logger.Logger

	events   chan models.Event
	stopCh   chan struct{}
	stopOnce sync.Once

	mu         sync.Mutex
	state      State
	seq        int
	prevStatus map[string]models.Status
	alerts     []models.Alert
}

// New assembles a session in the idle state.
func New(cfg config.SessionConfig, table *models.ForecastTable, engine *scenario.Engine,
	adapter *reasoning.Adapter, recorder storage.Recorder, speed float64) *Session {
	if recorder == nil {
		recorder = storage.Noop{}
	}
	return &Session{
		ID:         uuid.New().String(),
		cfg:        cfg,
		table:      table,
		engine:     engine,
		detector:   drift.NewDetector(table, cfg.TrendLookback, cfg.TrendHysteresis),
		adapter:    adapter,
		debounce:   reasoning.NewDebouncer(cfg.DebounceWindows),
		clock:      NewClock(cfg.WindowMinutes, speed, cfg.MinSpeed, cfg.MaxSpeed),
		recorder:   recorder,
		log:        logger.With("session"),
		events:     make(chan models.Event, cfg.EventBuffer),
		stopCh:     make(chan struct{}),
		state:      StateIdle,
		prevStatus: make(map[string]models.Status),
	}
}

// Events returns the ordered event stream. The channel is closed after the
// terminal event.
func (s *Session) Events() <-chan models.Event {
	return s.events
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// alive reports whether the session is still pre-terminal: idle sessions are
// considered alive from the moment they are handed to the manager.
func (s *Session) alive() bool {
	switch s.State() {
	case StateIdle, StateRunning:
		return true
	}
	return false
}

// Scenario returns the session's scenario key.
func (s *Session) Scenario() scenario.Kind {
	return s.engine.Kind()
}

// SetSpeed adjusts replay speed, effective at the next tick boundary, and
// returns the clamped value.
func (s *Session) SetSpeed(v float64) float64 {
	return s.clock.SetSpeed(v)
}

// Inject queues an override for the next tick. Malformed overrides are
// rejected synchronously without touching session state.
func (s *Session) Inject(o scenario.Override) error {
	return s.engine.Inject(o)
}

// Stop requests termination. The run loop finishes its current tick, emits
// the terminal summary, and transitions to stopped. Safe to call at any
// point in the lifecycle, any number of times.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Alerts returns a snapshot of the alerts raised so far.
func (s *Session) Alerts() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

func (s *Session) emit(typ models.EventType, fill func(*models.Event)) {
	s.mu.Lock()
	seq := s.seq
	s.seq++
	s.mu.Unlock()

	ev := models.Event{
		Type:      typ,
		SessionID: s.ID,
		Seq:       seq,
		Time:      time.Now(),
	}
	fill(&ev)
	s.events <- ev
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run executes the replay to a terminal state. It blocks; callers launch it
// on its own goroutine. The events channel is closed on return.
func (s *Session) Run(ctx context.Context) {
	defer close(s.events)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-runCtx.Done():
		}
	}()

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.mu.Unlock()

	game := s.table.Game
	if err := s.recorder.StartSession(s.ID, game, string(s.engine.Kind())); err != nil {
		s.log.Warn("failed to record session start: %v", err)
	}

	prepActions := prep.Plan(s.table)
	s.emit(models.EventSessionStarted, func(ev *models.Event) {
		ev.Started = &models.SessionStarted{
			Game:     *game,
			Scenario: string(s.engine.Kind()),
			Speed:    s.clock.Speed(),
			Baseline: models.BaselineSummary{
				TotalForecastQty: s.table.Total(),
				Stands:           len(s.table.Stands),
				Windows:          len(s.table.Windows),
				Archetype:        game.Archetype,
				PrepActions:      len(prepActions),
			},
		}
	})
	s.log.Info("session %s started: %s vs %s, scenario=%s, %d windows",
		s.ID, game.Date.Format("2006-01-02"), game.Opponent, s.engine.Kind(), len(s.table.Windows))

	for _, window := range s.table.Windows {
		if err := s.clock.Wait(runCtx); err != nil {
			s.finish(true)
			return
		}
		if err := s.tick(runCtx, window); err != nil {
			s.fail("drift_detector", err)
			return
		}
	}
	s.finish(false)
}

// tick processes one window: activate pending overrides, observe every
// stand, classify any alerts, and emit the window update.
func (s *Session) tick(ctx context.Context, window models.TimeWindow) error {
	for _, o := range s.engine.Activate(window.Index) {
		s.emit(models.EventOverrideApplied, func(ev *models.Event) {
			ev.Override = &models.OverrideApplied{
				Type:            o.Type,
				Stand:           o.Stand,
				Item:            o.Item,
				Factor:          o.Factor,
				FromWindow:      o.FromWindow,
				ToWindow:        o.ToWindow,
				AppliedAtWindow: window.Index,
			}
		})
		s.log.Info("override %s applied at window %d", o.Type, window.Index)
	}

	records := make([]models.DriftRecord, 0, len(s.detector.Stands()))
	var windowAlert *models.Alert
	for _, stand := range s.detector.Stands() {
		obs := s.engine.ActualFor(stand, window.Index)
		rec, err := s.detector.Observe(obs)
		if err != nil {
			return fmt.Errorf("window %d: %w", window.Index, err)
		}
		records = append(records, rec)
		if err := s.recorder.RecordDrift(s.ID, rec); err != nil {
			s.log.Warn("failed to record drift for %s window %d: %v", stand, window.Index, err)
		}

		prev, ok := s.prevStatus[stand]
		if !ok {
			prev = models.StatusGreen
		}
		if s.debounce.ShouldAlert(stand, window.Index, prev, rec.Status) {
			alert := s.raiseAlert(ctx, window, rec)
			if windowAlert == nil || alert.Confidence > windowAlert.Confidence {
				windowAlert = &alert
			}
		}
		s.prevStatus[stand] = rec.Status
	}

	actualQty, forecastQty, driftPct, cumulative := s.detector.CompleteWindow(window.Index)
	statuses := trafficlight.ReduceAll(records)

	s.emit(models.EventWindowUpdate, func(ev *models.Event) {
		ev.Window = &models.WindowUpdate{
			Window:          window,
			WindowIndex:     window.Index,
			TotalWindows:    len(s.table.Windows),
			ActualQty:       actualQty,
			ForecastQty:     forecastQty,
			DriftPct:        driftPct,
			CumulativeDrift: cumulative,
			VenueStatus:     trafficlight.VenueStatus(statuses),
			Stands:          statuses,
			Alert:           windowAlert,
		}
	})
	return nil
}

// raiseAlert classifies the drift and records the alert. Classification
// cannot fail the session: the rule fallback is total.
func (s *Session) raiseAlert(ctx context.Context, window models.TimeWindow, rec models.DriftRecord) models.Alert {
	result := s.adapter.Classify(ctx, reasoning.DriftSummary{
		Stand:           rec.Stand,
		Window:          window.Index,
		WindowLabel:     window.Label,
		ForecastQty:     rec.ForecastQty,
		ActualQty:       rec.ActualQty,
		VolumeDrift:     rec.VolumeDrift,
		MixDrift:        rec.MixDrift,
		MixKnown:        rec.MixKnown,
		TimingDrift:     rec.TimingDrift,
		CumulativeDrift: rec.CumulativeDrift,
		Status:          rec.Status,
		Trend:           rec.Trend,
		KnownOverrides:  s.engine.ActiveTypesFor(rec.Stand, window.Index),
	})

	alert := models.Alert{
		ID:         uuid.New().String(),
		SessionID:  s.ID,
		Stand:      rec.Stand,
		Window:     window.Index,
		Cause:      result.Cause,
		Confidence: result.Confidence,
		AlertText:  result.AlertText,
		Actions:    result.Actions,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()

	if err := s.recorder.RecordAlert(alert); err != nil {
		s.log.Warn("failed to record alert %s: %v", alert.ID, err)
	}
	s.log.Info("alert for %s at window %d: %s (%.0f%% confidence)",
		rec.Stand, window.Index, result.Cause, result.Confidence*100)
	return alert
}

// finish emits the terminal summary for a completed or stopped run.
func (s *Session) finish(stopped bool) {
	summary := s.detector.Summary()
	summary.Stopped = stopped

	s.mu.Lock()
	alerts := make([]models.Alert, len(s.alerts))
	copy(alerts, s.alerts)
	s.mu.Unlock()

	summary.TotalAlerts = len(alerts)
	if len(alerts) > 0 {
		summary.AlertsByCause = make(map[models.Cause]int)
		for _, a := range alerts {
			summary.AlertsByCause[a.Cause]++
		}
	}
	summary.Report = buildReport(summary)

	state := StateCompleted
	if stopped {
		state = StateStopped
	}
	s.setState(state)

	s.emit(models.EventSessionComplete, func(ev *models.Event) {
		ev.Complete = &models.SessionComplete{Summary: summary, Alerts: alerts}
	})
	if err := s.recorder.FinishSession(s.ID, string(state), summary); err != nil {
		s.log.Warn("failed to record session finish: %v", err)
	}
	s.log.Info("session %s %s: %d windows, cumulative drift %+.1f%%, %d alerts",
		s.ID, state, summary.WindowsProcessed, summary.CumulativeDrift*100, summary.TotalAlerts)
}

// fail emits a structured session_error and transitions to errored. A tick
// failure is terminal: skipping a window would leave a gap in the drift
// sequence.
func (s *Session) fail(component string, err error) {
	s.setState(StateErrored)
	s.emit(models.EventSessionError, func(ev *models.Event) {
		ev.Error = &models.SessionError{
			Component: component,
			Message:   err.Error(),
		}
	})
	if rerr := s.recorder.FinishSession(s.ID, string(StateErrored), s.detector.Summary()); rerr != nil {
		s.log.Warn("failed to record errored session: %v", rerr)
	}
	s.log.Error("session %s errored in %s: %v", s.ID, component, err)
}

// buildReport renders the one-paragraph post-game summary.
func buildReport(s models.Summary) string {
	verdict := "Forecast held"
	switch {
	case s.CumulativeDrift > models.YellowThreshold || s.CumulativeDrift < -models.YellowThreshold:
		verdict = "Forecast missed badly"
	case s.CumulativeDrift > models.GreenThreshold || s.CumulativeDrift < -models.GreenThreshold:
		verdict = "Forecast strained"
	}
	return fmt.Sprintf("%s: %.0f sold vs %.0f forecast (%+.1f%%) across %d windows; %d windows showed drift, %d alerts raised.",
		verdict, s.TotalActual, s.TotalForecast, s.CumulativeDrift*100,
		s.WindowsProcessed, s.WindowsWithDrift, s.TotalAlerts)
}
