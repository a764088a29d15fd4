package trafficlight

import (
	"testing"

	"github.com/rinkside/standwatch/internal/models"
)

func rec(stand string, status models.Status) models.DriftRecord {
	return models.DriftRecord{
		Stand:           stand,
		Status:          status,
		Trend:           models.TrendStable,
		DriftPct:        0.25,
		CumulativeDrift: 0.1,
		ForecastQty:     100,
		ActualQty:       110,
	}
}

func TestReduce(t *testing.T) {
	s := Reduce(rec("Island Slice", models.StatusYellow))
	if s.Stand != "Island Slice" || s.Status != models.StatusYellow {
		t.Errorf("unexpected reduction: %+v", s)
	}
	if s.ForecastQty != 100 || s.ActualQty != 110 {
		t.Errorf("quantities not carried through: %+v", s)
	}
	// The window drift and the running drift are distinct fields and must
	// not be conflated.
	if s.DriftPct != 0.25 {
		t.Errorf("DriftPct = %v, want the per-window value 0.25", s.DriftPct)
	}
	if s.CumulativeDrift != 0.1 {
		t.Errorf("CumulativeDrift = %v, want 0.1", s.CumulativeDrift)
	}
}

func TestReduceAll_WorstFirst(t *testing.T) {
	statuses := ReduceAll([]models.DriftRecord{
		rec("A", models.StatusGreen),
		rec("B", models.StatusRed),
		rec("C", models.StatusYellow),
		rec("D", models.StatusGreen),
	})
	got := make([]models.Status, len(statuses))
	for i, s := range statuses {
		got[i] = s.Status
	}
	want := []models.Status{models.StatusRed, models.StatusYellow, models.StatusGreen, models.StatusGreen}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
	// Ties keep input order.
	if statuses[2].Stand != "A" || statuses[3].Stand != "D" {
		t.Errorf("stable sort violated: %+v", statuses)
	}
}

func TestVenueStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []models.Status
		want     models.Status
	}{
		{"empty is green", nil, models.StatusGreen},
		{"all green", []models.Status{models.StatusGreen, models.StatusGreen}, models.StatusGreen},
		{"one yellow", []models.Status{models.StatusGreen, models.StatusYellow}, models.StatusYellow},
		{"red dominates", []models.Status{models.StatusYellow, models.StatusRed, models.StatusGreen}, models.StatusRed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]models.StandStatus, len(tt.statuses))
			for i, s := range tt.statuses {
				in[i] = models.StandStatus{Status: s}
			}
			if got := VenueStatus(in); got != tt.want {
				t.Errorf("VenueStatus = %q, want %q", got, tt.want)
			}
		})
	}
}
