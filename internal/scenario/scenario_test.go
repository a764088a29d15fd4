package scenario

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rinkside/standwatch/internal/forecast"
	"github.com/rinkside/standwatch/internal/models"
)

func testTable(t *testing.T) *models.ForecastTable {
	t.Helper()
	game := &models.Game{
		ID:           "game-7",
		Opponent:     "Seattle",
		Date:         time.Date(2026, 2, 6, 19, 0, 0, 0, time.UTC),
		DayOfWeek:    "Fri",
		PuckDropHour: 19,
		Attendance:   4500,
		Archetype:    models.ArchetypeMixed,
		TempMean:     8.0,
	}
	p := forecast.NewProfileProvider(4500, 0.80, 1.20)
	table, err := p.GetForecast(context.Background(), game, models.GameWindows(2))
	if err != nil {
		t.Fatalf("GetForecast: %v", err)
	}
	return table
}

func newEngine(t *testing.T, kind Kind, noisePct float64) *Engine {
	t.Helper()
	e, err := NewEngine(kind, testTable(t), noisePct)
	if err != nil {
		t.Fatalf("NewEngine(%s): %v", kind, err)
	}
	return e
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		if _, err := ParseKind(string(k)); err != nil {
			t.Errorf("ParseKind(%q): %v", k, err)
		}
	}
	if _, err := ParseKind("overtime_chaos"); !errors.Is(err, ErrInvalidScenario) {
		t.Errorf("expected ErrInvalidScenario, got %v", err)
	}
}

func TestCustomKindHasNoBaseOverrides(t *testing.T) {
	e := newEngine(t, KindCustom, 0)
	e.Activate(0)
	if got := e.ActiveOverrides(); len(got) != 0 {
		t.Errorf("custom scenario activated %d built-in overrides, want 0", len(got))
	}
}

func TestActualFor_Deterministic(t *testing.T) {
	a := newEngine(t, KindNormal, 0.08)
	b := newEngine(t, KindNormal, 0.08)
	for _, stand := range forecast.Stands() {
		for window := 0; window < 10; window++ {
			got := a.ActualFor(stand, window)
			want := b.ActualFor(stand, window)
			if got.Qty != want.Qty {
				t.Fatalf("replay not reproducible: %s window %d: %.6f vs %.6f", stand, window, got.Qty, want.Qty)
			}
		}
	}
}

func TestActualFor_NoiseBounded(t *testing.T) {
	e := newEngine(t, KindNormal, 0.08)
	table := e.table
	for _, stand := range forecast.Stands() {
		for window := 0; window < len(table.Windows); window++ {
			fc := table.StandWindowQty(stand, window)
			if fc == 0 {
				continue
			}
			actual := e.ActualFor(stand, window).Qty
			ratio := actual / fc
			if ratio < 0.92-1e-9 || ratio > 1.08+1e-9 {
				t.Fatalf("%s window %d: actual/forecast = %.4f outside noise band", stand, window, ratio)
			}
		}
	}
}

func TestInject_DemandSpike(t *testing.T) {
	e := newEngine(t, KindNormal, 0) // no noise: isolate the spike
	if err := e.Inject(Override{
		Type: TypeDemandSpike, Stand: "ReMax Fan Deck", Factor: 2.0,
		FromWindow: 5, ToWindow: -1,
	}); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	activated := e.Activate(5)
	if len(activated) != 1 {
		t.Fatalf("activated %d overrides, want 1", len(activated))
	}

	fc := e.table.StandWindowQty("ReMax Fan Deck", 6)
	actual := e.ActualFor("ReMax Fan Deck", 6).Qty
	if math.Abs(actual/fc-2.0) > 1e-9 {
		t.Errorf("spiked actual/forecast = %.4f, want 2.0", actual/fc)
	}

	// Before the activation window the spike has no effect.
	before := e.ActualFor("ReMax Fan Deck", 3).Qty
	if math.Abs(before/e.table.StandWindowQty("ReMax Fan Deck", 3)-1.0) > 1e-9 {
		t.Error("spike leaked into windows before its start")
	}
}

func TestInject_StandOutageZeroes(t *testing.T) {
	e := newEngine(t, KindNormal, 0.08)
	if err := e.Inject(Override{
		Type: TypeStandOutage, Stand: "Island Slice",
		FromWindow: 10, ToWindow: 20,
	}); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	e.Activate(10)

	if got := e.ActualFor("Island Slice", 15).Qty; got != 0 {
		t.Errorf("outage window should produce zero actuals, got %.2f", got)
	}
	if got := e.ActualFor("Island Slice", 21).Qty; got == 0 {
		t.Error("stand should come back after the outage window")
	}
}

func TestInject_NeverRetroactive(t *testing.T) {
	e := newEngine(t, KindNormal, 0)
	if err := e.Inject(Override{
		Type: TypeGlobalVolume, Factor: 0.5, FromWindow: 2, ToWindow: -1,
	}); err != nil {
		t.Fatalf("Inject: %v", err)
	}
	activated := e.Activate(8)
	if len(activated) != 1 || activated[0].FromWindow != 8 {
		t.Fatalf("override start should clamp to current window 8, got %+v", activated)
	}
}

func TestInject_Malformed(t *testing.T) {
	e := newEngine(t, KindNormal, 0.08)
	tests := []Override{
		{Type: "teleport", Factor: 2},
		{Type: TypeDemandSpike, Factor: 2},                                // missing stand
		{Type: TypeDemandSpike, Stand: "TacoTacoTaco", Factor: -1},        // bad factor
		{Type: TypeStandOutage},                                           // missing stand
		{Type: TypeGlobalVolume, Factor: 0.5, FromWindow: 9, ToWindow: 3}, // inverted range
	}
	for _, o := range tests {
		if err := e.Inject(o); !errors.Is(err, ErrInvalidScenario) {
			t.Errorf("Inject(%+v): expected ErrInvalidScenario, got %v", o, err)
		}
	}
	if got := e.Activate(0); len(got) != 0 {
		t.Errorf("rejected overrides must not queue, got %d", len(got))
	}
}

func TestScenario_StandRedistribution(t *testing.T) {
	e := newEngine(t, KindStandRedistribution, 0)
	outageWindow := windowIndexAt(e.table.Windows, 30)
	if got := e.ActualFor("Island Canteen", outageWindow).Qty; got != 0 {
		t.Errorf("Island Canteen should be dark at minute 30, got %.2f", got)
	}
	spikeWindow := windowIndexAt(e.table.Windows, 40)
	fc := e.table.StandWindowQty("TacoTacoTaco", spikeWindow)
	actual := e.ActualFor("TacoTacoTaco", spikeWindow).Qty
	if math.Abs(actual/fc-1.8) > 1e-9 {
		t.Errorf("absorbing stand ratio = %.4f, want 1.8", actual/fc)
	}
}

func TestScenario_GlobalVolumePreservesMix(t *testing.T) {
	e := newEngine(t, KindPlayoff, 0)
	window := windowIndexAt(e.table.Windows, 10)
	for _, stand := range forecast.Stands() {
		obs := e.ActualFor(stand, window)
		if obs.Qty == 0 {
			continue
		}
		shares := e.table.CategoryShares(stand, window)
		for cat, forecastShare := range shares {
			actualShare := obs.Categories[cat] / obs.Qty
			if math.Abs(actualShare-forecastShare) > 1e-9 {
				t.Errorf("%s category %q share drifted: %.4f vs %.4f", stand, cat, actualShare, forecastShare)
			}
		}
	}
}

func TestScenario_UntaggedPromo(t *testing.T) {
	e := newEngine(t, KindUntaggedPromo, 0)
	preWindow := windowIndexAt(e.table.Windows, 0)
	promoWindow := windowIndexAt(e.table.Windows, 24)

	pre := e.ActualFor("Island Canteen", preWindow)
	if pre.Qty == 0 || math.Abs(pre.Qty/e.table.StandWindowQty("Island Canteen", preWindow)-1.0) > 1e-9 {
		t.Error("promo uplift should not apply before the first intermission")
	}

	during := e.ActualFor("Island Canteen", promoWindow)
	fcDogs := 0.0
	for _, entry := range e.table.Entries {
		if entry.Stand == "Island Canteen" && entry.Window == promoWindow && entry.Item == "Hot Dog" {
			fcDogs += entry.Qty
		}
	}
	if fcDogs == 0 {
		t.Fatal("fixture should forecast hot dogs in the promo window")
	}
	if math.Abs(during.Items["Hot Dog"]/fcDogs-2.5) > 1e-9 {
		t.Errorf("hot dog uplift = %.4f, want 2.5", during.Items["Hot Dog"]/fcDogs)
	}
}
