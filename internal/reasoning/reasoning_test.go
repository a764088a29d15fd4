package reasoning

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rinkside/standwatch/internal/models"
)

func summary(mutate func(*DriftSummary)) DriftSummary {
	s := DriftSummary{
		Stand:           "Island Canteen",
		Window:          12,
		WindowLabel:     "INT1 T+22",
		ForecastQty:     100,
		ActualQty:       110,
		VolumeDrift:     0.10,
		CumulativeDrift: 0.08,
		Status:          models.StatusGreen,
		Trend:           models.TrendStable,
	}
	if mutate != nil {
		mutate(&s)
	}
	return s
}

func TestRules_StandOutage(t *testing.T) {
	r := NewRuleClassifier()
	res, err := r.Classify(context.Background(), summary(func(s *DriftSummary) {
		s.ActualQty = 2
		s.VolumeDrift = -0.98
		s.CumulativeDrift = -0.6
		s.Status = models.StatusRed
	}))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Cause != models.CauseStandOutage {
		t.Errorf("cause = %q, want stand_outage", res.Cause)
	}
	if res.Confidence < 0.8 {
		t.Errorf("outage confidence %.2f too low", res.Confidence)
	}
	if len(res.Actions) == 0 || res.Actions[0].Action != "stop_prep" {
		t.Errorf("outage should lead with stop_prep, got %+v", res.Actions)
	}
}

func TestRules_SpikeWithKnownOverride(t *testing.T) {
	r := NewRuleClassifier()
	for _, override := range []string{"demand_spike", "global_volume"} {
		res, err := r.Classify(context.Background(), summary(func(s *DriftSummary) {
			s.ActualQty = 200
			s.VolumeDrift = 1.0
			s.CumulativeDrift = 0.8
			s.Status = models.StatusRed
			s.KnownOverrides = []string{override}
		}))
		if err != nil {
			t.Fatalf("Classify(%s): %v", override, err)
		}
		if res.Cause != models.CauseDemandSpike {
			t.Errorf("%s: cause = %q, want demand_spike", override, res.Cause)
		}
		if res.Confidence < 0.8 {
			t.Errorf("%s: confidence %.2f too low for an explained surge", override, res.Confidence)
		}
		if len(res.Actions) != 1 || res.Actions[0].Action != "scale_up_prep" {
			t.Errorf("%s: expected a scale_up_prep action, got %+v", override, res.Actions)
		}
	}
}

func TestRules_SpikeWithoutOverrideIsUntaggedPromo(t *testing.T) {
	r := NewRuleClassifier()
	res, _ := r.Classify(context.Background(), summary(func(s *DriftSummary) {
		s.ActualQty = 250
		s.VolumeDrift = 1.5
		s.CumulativeDrift = 0.9
		s.Status = models.StatusRed
	}))
	if res.Cause != models.CauseUntaggedPromo {
		t.Errorf("cause = %q, want untagged_promo", res.Cause)
	}
	if len(res.Actions) == 0 {
		t.Error("expected a corrective action")
	}
}

func TestRules_SpikeDuringOutageIsRedistribution(t *testing.T) {
	r := NewRuleClassifier()
	res, _ := r.Classify(context.Background(), summary(func(s *DriftSummary) {
		s.ActualQty = 200
		s.VolumeDrift = 1.0
		s.CumulativeDrift = 0.6
		s.Status = models.StatusRed
		s.KnownOverrides = []string{"stand_outage"}
	}))
	if res.Cause != models.CauseRedistribution {
		t.Errorf("cause = %q, want redistribution", res.Cause)
	}
}

func TestRules_SmallDriftIsNoise(t *testing.T) {
	r := NewRuleClassifier()
	res, _ := r.Classify(context.Background(), summary(nil))
	if res.Cause != models.CauseNoise {
		t.Errorf("cause = %q, want noise", res.Cause)
	}
}

func TestRules_MixShiftIsWeather(t *testing.T) {
	r := NewRuleClassifier()
	res, _ := r.Classify(context.Background(), summary(func(s *DriftSummary) {
		s.MixKnown = true
		s.MixDrift = 0.4
		s.VolumeDrift = 0.3
		s.CumulativeDrift = 0.25
		s.Status = models.StatusYellow
	}))
	if res.Cause != models.CauseWeather {
		t.Errorf("cause = %q, want weather", res.Cause)
	}
}

func TestAdapter_FallsBackWhenRemoteUnreachable(t *testing.T) {
	remote := NewRemoteClassifier("http://127.0.0.1:1/unreachable", "key", "model", time.Second)
	adapter := NewAdapter(remote, 200*time.Millisecond, false)
	res := adapter.Classify(context.Background(), summary(nil))
	if res.Cause != models.CauseNoise {
		t.Errorf("fallback cause = %q, want rule result", res.Cause)
	}
}

func TestAdapter_SkipNeverCallsRemote(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	remote := NewRemoteClassifier(srv.URL, "key", "model", time.Second)
	adapter := NewAdapter(remote, time.Second, true)
	adapter.Classify(context.Background(), summary(nil))
	if called {
		t.Error("skip_ai must not touch the remote classifier")
	}
}

func TestRemote_ParsesFencedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"` +
			"```json\\n{\\\"cause\\\":\\\"weather\\\",\\\"confidence\\\":0.8,\\\"alert_text\\\":\\\"warm day\\\",\\\"actions\\\":[]}\\n```" +
			`"}]}`))
	}))
	defer srv.Close()

	remote := NewRemoteClassifier(srv.URL, "key", "model", time.Second)
	res, err := remote.Classify(context.Background(), summary(nil))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Cause != models.CauseWeather || res.Confidence != 0.8 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRemote_RejectsBadCause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"cause\":\"gremlins\",\"confidence\":0.9}"}]}`))
	}))
	defer srv.Close()

	remote := NewRemoteClassifier(srv.URL, "key", "model", time.Second)
	if _, err := remote.Classify(context.Background(), summary(nil)); err == nil {
		t.Error("expected error for unknown cause")
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(5)

	if !d.ShouldAlert("A", 3, models.StatusGreen, models.StatusYellow) {
		t.Error("green to yellow should alert")
	}
	if d.ShouldAlert("A", 4, models.StatusYellow, models.StatusYellow) {
		t.Error("sustained yellow must not re-alert")
	}
	if !d.ShouldAlert("A", 5, models.StatusYellow, models.StatusRed) {
		t.Error("yellow to red should alert")
	}
	// Sustained red stays quiet until the debounce window elapses.
	for w := 6; w <= 9; w++ {
		if d.ShouldAlert("A", w, models.StatusRed, models.StatusRed) {
			t.Errorf("window %d: red re-alerted inside debounce window", w)
		}
	}
	if !d.ShouldAlert("A", 10, models.StatusRed, models.StatusRed) {
		t.Error("sustained red should re-alert after the debounce window")
	}

	// Stands debounce independently.
	if !d.ShouldAlert("B", 10, models.StatusGreen, models.StatusRed) {
		t.Error("another stand's escalation should alert")
	}
}
