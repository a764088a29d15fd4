package models

import (
	"testing"
	"time"
)

func TestGameWindows_OrderedNoGaps(t *testing.T) {
	windows := GameWindows(2)
	if len(windows) != 78 {
		t.Fatalf("expected 78 windows at 2-minute granularity, got %d", len(windows))
	}
	for i, w := range windows {
		if w.Index != i {
			t.Errorf("window %d has index %d", i, w.Index)
		}
		if i > 0 && w.Offset != windows[i-1].Offset+2 {
			t.Errorf("gap between windows %d and %d: offsets %d, %d", i-1, i, windows[i-1].Offset, w.Offset)
		}
	}
	if windows[0].Offset != -60 {
		t.Errorf("first window should start at -60, got %d", windows[0].Offset)
	}
	if last := windows[len(windows)-1]; last.Offset != 94 {
		t.Errorf("last window should start at 94, got %d", last.Offset)
	}
}

func TestPhaseAt(t *testing.T) {
	tests := []struct {
		offset int
		phase  Phase
	}{
		{-60, PhasePreGame},
		{-2, PhasePreGame},
		{0, PhaseP1},
		{19, PhaseP1},
		{20, PhaseINT1},
		{37, PhaseINT1},
		{38, PhaseP2},
		{58, PhaseINT2},
		{76, PhaseP3},
		{94, PhaseP3},
	}
	for _, tt := range tests {
		if got := PhaseAt(tt.offset); got != tt.phase {
			t.Errorf("PhaseAt(%d) = %s, want %s", tt.offset, got, tt.phase)
		}
	}
}

func TestClassifyStatus_Thresholds(t *testing.T) {
	tests := []struct {
		drift float64
		want  Status
	}{
		{0, StatusGreen},
		{0.15, StatusGreen},
		{-0.15, StatusGreen},
		{0.1501, StatusYellow},
		{0.30, StatusYellow},
		{-0.30, StatusYellow},
		{0.3001, StatusRed},
		{-0.95, StatusRed},
		{2.5, StatusRed},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.drift); got != tt.want {
			t.Errorf("ClassifyStatus(%.4f) = %s, want %s", tt.drift, got, tt.want)
		}
	}
}

func TestDeriveArchetype(t *testing.T) {
	tests := []struct {
		name       string
		attendance int
		hour       int
		playoff    bool
		temp       float64
		day        string
		want       Archetype
	}{
		{"playoff always beer crowd", 2000, 14, true, 10, "Sun", ArchetypeBeerCrowd},
		{"big friday night", 4000, 19, false, 10, "Fri", ArchetypeBeerCrowd},
		{"matinee", 4000, 14, false, 10, "Sat", ArchetypeFamily},
		{"cold sunday evening", 3000, 18, false, 1, "Sun", ArchetypeFamily},
		{"weeknight", 3000, 19, false, 8, "Wed", ArchetypeMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveArchetype(tt.attendance, tt.hour, tt.playoff, tt.temp, tt.day)
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGame_Validate(t *testing.T) {
	valid := Game{
		ID:           "game-1",
		Opponent:     "Kamloops",
		Date:         time.Now(),
		PuckDropHour: 19,
		Attendance:   4200,
		Archetype:    ArchetypeMixed,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid game rejected: %v", err)
	}

	bad := valid
	bad.Attendance = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero attendance")
	}

	bad = valid
	bad.Archetype = "rowdy"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown archetype")
	}
}

func TestForecastEntry_Validate(t *testing.T) {
	good := ForecastEntry{Stand: "Main Canteen", Item: "Hot Dog", Category: "Food", Window: 0, Qty: 10, Low: 8, High: 12}
	if err := good.Validate(); err != nil {
		t.Errorf("valid entry rejected: %v", err)
	}
	bad := good
	bad.Low = 11
	if err := bad.Validate(); err == nil {
		t.Error("expected error when low > qty")
	}
	bad = good
	bad.High = 9
	if err := bad.Validate(); err == nil {
		t.Error("expected error when qty > high")
	}
}

func TestForecastTable_Aggregates(t *testing.T) {
	windows := GameWindows(2)
	game := &Game{ID: "g1", Attendance: 4000, PuckDropHour: 19, Archetype: ArchetypeMixed}
	entries := []ForecastEntry{
		{Stand: "A", Item: "Draught Beer", Category: "Beer", Window: 0, Qty: 30, Low: 24, High: 36},
		{Stand: "A", Item: "Hot Dog", Category: "Food", Window: 0, Qty: 10, Low: 8, High: 12},
		{Stand: "A", Item: "Draught Beer", Category: "Beer", Window: 1, Qty: 20, Low: 16, High: 24},
		{Stand: "B", Item: "Pizza Slice", Category: "Food", Window: 0, Qty: 15, Low: 12, High: 18},
	}
	table, err := NewForecastTable(game, windows, entries)
	if err != nil {
		t.Fatalf("NewForecastTable: %v", err)
	}
	if got := table.StandWindowQty("A", 0); got != 40 {
		t.Errorf("StandWindowQty(A,0) = %.1f, want 40", got)
	}
	if got := table.StandTotal("A"); got != 60 {
		t.Errorf("StandTotal(A) = %.1f, want 60", got)
	}
	if got := table.WindowTotal(0); got != 55 {
		t.Errorf("WindowTotal(0) = %.1f, want 55", got)
	}
	if got := table.Total(); got != 75 {
		t.Errorf("Total() = %.1f, want 75", got)
	}
	shares := table.CategoryShares("A", 0)
	if shares == nil {
		t.Fatal("expected category shares for (A, 0)")
	}
	if diff := shares["Beer"] - 0.75; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Beer share = %.3f, want 0.75", shares["Beer"])
	}
	if len(table.Stands) != 2 {
		t.Errorf("expected 2 stands, got %d", len(table.Stands))
	}
}

func TestForecastTable_Empty(t *testing.T) {
	if _, err := NewForecastTable(&Game{ID: "g"}, GameWindows(2), nil); err == nil {
		t.Error("expected error for empty forecast")
	}
}
