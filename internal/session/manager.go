package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rinkside/standwatch/internal/config"
	"github.com/rinkside/standwatch/internal/forecast"
	"github.com/rinkside/standwatch/internal/logger"
	"github.com/rinkside/standwatch/internal/models"
	"github.com/rinkside/standwatch/internal/reasoning"
	"github.com/rinkside/standwatch/internal/scenario"
	"github.com/rinkside/standwatch/internal/storage"
)

// ErrNoSession rejects control messages when nothing is running.
var ErrNoSession = errors.New("no session running")

// StartRequest carries the inbound start control message.
type StartRequest struct {
	Scenario     string
	Speed        float64
	SkipAI       bool
	Opponent     string
	Date         time.Time
	Attendance   int
	PuckDropHour int
	Playoff      bool
	Promo        bool
	PromoType    string
	TempMean     float64
}

// EventHandler consumes session events in stream order.
type EventHandler func(models.Event)

// Manager owns at most one live session and fans its event stream out to the
// registered handlers.
type Manager struct {
	cfg      *config.Config
	provider forecast.Provider
	recorder storage.Recorder
	remote   reasoning.Classifier
	log      *logger.Logger

	mu       sync.Mutex
	handlers []EventHandler
	current  *Session
}

// NewManager wires the session factory. Remote may be nil; sessions then
// classify with rules only.
func NewManager(cfg *config.Config, provider forecast.Provider, recorder storage.Recorder, remote reasoning.Classifier) *Manager {
	return &Manager{
		cfg:      cfg,
		provider: provider,
		recorder: recorder,
		remote:   remote,
		log:      logger.With("manager"),
	}
}

// Subscribe registers an event handler. Handlers must be registered before
// the first start; they run on the fan-out goroutine in stream order.
func (m *Manager) Subscribe(h EventHandler) {
	m.mu.Lock()
	m.handlers = append(m.handlers, h)
	m.mu.Unlock()
}

// Start validates the request, loads the baseline forecast, and launches the
// session. Fails with scenario.ErrInvalidScenario, forecast.ErrUnavailable,
// or ErrAlreadyRunning without disturbing any live session.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Session, error) {
	kind, err := scenario.ParseKind(req.Scenario)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.current != nil && m.current.alive() {
		m.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	m.mu.Unlock()

	game := m.buildGame(req)
	if err := game.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", scenario.ErrInvalidScenario, err)
	}

	windows := models.GameWindows(m.cfg.Session.WindowMinutes)
	table, err := m.provider.GetForecast(ctx, game, windows)
	if err != nil {
		return nil, err
	}

	engine, err := scenario.NewEngine(kind, table, m.cfg.Session.NoisePct)
	if err != nil {
		return nil, err
	}

	adapter := reasoning.NewAdapter(m.remote, m.cfg.Reasoning.Timeout, req.SkipAI || m.cfg.Session.SkipAI)

	speed := req.Speed
	if speed == 0 {
		speed = m.cfg.Session.DefaultSpeed
	}

	sess := New(m.cfg.Session, table, engine, adapter, m.recorder, speed)

	m.mu.Lock()
	if m.current != nil && m.current.alive() {
		m.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	m.current = sess
	handlers := make([]EventHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	if len(handlers) > 0 {
		go func() {
			for ev := range sess.Events() {
				for _, h := range handlers {
					h(ev)
				}
			}
		}()
	}
	go sess.Run(ctx)

	m.log.Info("started session %s (scenario=%s, speed=%.0fx)", sess.ID, kind, speed)
	return sess, nil
}

func (m *Manager) buildGame(req StartRequest) *models.Game {
	date := req.Date
	if date.IsZero() {
		date = time.Now()
	}
	day := date.Weekday().String()[:3]
	game := &models.Game{
		ID:           uuid.New().String(),
		Opponent:     req.Opponent,
		Date:         date,
		DayOfWeek:    day,
		PuckDropHour: req.PuckDropHour,
		Attendance:   req.Attendance,
		Playoff:      req.Playoff,
		Promo:        req.Promo,
		PromoType:    req.PromoType,
		TempMean:     req.TempMean,
	}
	game.Archetype = models.DeriveArchetype(game.Attendance, game.PuckDropHour, game.Playoff, game.TempMean, game.DayOfWeek)
	return game
}

// Current returns the live session, if any.
func (m *Manager) Current() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, false
	}
	return m.current, true
}

// Stop terminates the live session.
func (m *Manager) Stop() error {
	sess, ok := m.running()
	if !ok {
		return ErrNoSession
	}
	sess.Stop()
	return nil
}

// SetSpeed adjusts the live session's replay speed and returns the clamped
// effective value.
func (m *Manager) SetSpeed(v float64) (float64, error) {
	sess, ok := m.running()
	if !ok {
		return 0, ErrNoSession
	}
	return sess.SetSpeed(v), nil
}

// Inject forwards an override to the live session.
func (m *Manager) Inject(o scenario.Override) error {
	sess, ok := m.running()
	if !ok {
		return ErrNoSession
	}
	return sess.Inject(o)
}

func (m *Manager) running() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || !m.current.alive() {
		return nil, false
	}
	return m.current, true
}
