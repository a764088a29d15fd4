package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/rinkside/standwatch/internal/config"
	"github.com/rinkside/standwatch/internal/session"
)

type fakeStarter struct {
	requests []session.StartRequest
	err      error
}

func (f *fakeStarter) Start(_ context.Context, req session.StartRequest) (*session.Session, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &session.Session{}, nil
}

func TestRegister(t *testing.T) {
	s := New(context.Background(), &fakeStarter{})
	entries := []config.ScheduledSession{
		{Cron: "0 18 * * 5", Scenario: "normal", Opponent: "Kamloops"},
		{Cron: "30 18 * * 6", Scenario: "playoff", Opponent: "Kelowna"},
	}
	if err := s.Register(entries); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := len(s.cron.Entries()); got != 2 {
		t.Errorf("registered %d entries, want 2", got)
	}
}

func TestRegister_BadExpression(t *testing.T) {
	s := New(context.Background(), &fakeStarter{})
	err := s.Register([]config.ScheduledSession{{Cron: "not a cron", Scenario: "normal"}})
	if err == nil {
		t.Fatal("expected error for malformed cron expression")
	}
}

func TestJobBuildsRequest(t *testing.T) {
	starter := &fakeStarter{}
	s := New(context.Background(), starter)
	entry := config.ScheduledSession{
		Cron:         "0 18 * * 5",
		Scenario:     "weather_surprise",
		Opponent:     "Portland",
		Attendance:   5200,
		PuckDropHour: 19,
		Playoff:      true,
		TempMean:     -2,
		Speed:        120,
	}

	s.jobFor(entry)()

	if len(starter.requests) != 1 {
		t.Fatalf("starter called %d times, want 1", len(starter.requests))
	}
	req := starter.requests[0]
	if req.Scenario != "weather_surprise" || req.Opponent != "Portland" {
		t.Errorf("unexpected request %+v", req)
	}
	if req.Attendance != 5200 || req.PuckDropHour != 19 || !req.Playoff {
		t.Errorf("game fields not carried over: %+v", req)
	}
	if req.Speed != 120 || req.TempMean != -2 {
		t.Errorf("speed/temp not carried over: %+v", req)
	}
	if req.Date.IsZero() {
		t.Error("scheduled requests should stamp the current date")
	}
}

func TestJobLogsStartFailure(t *testing.T) {
	starter := &fakeStarter{err: errors.New("busy")}
	s := New(context.Background(), starter)

	// Must not panic or retry when the manager rejects the start.
	s.jobFor(config.ScheduledSession{Scenario: "normal"})()

	if len(starter.requests) != 1 {
		t.Fatalf("starter called %d times, want 1", len(starter.requests))
	}
}
