package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rinkside/standwatch/internal/models"
)

func testGame(t *testing.T) *models.Game {
	t.Helper()
	return &models.Game{
		ID:           "game-1",
		Opponent:     "Kelowna",
		Date:         time.Date(2026, 1, 16, 19, 0, 0, 0, time.UTC),
		DayOfWeek:    "Fri",
		PuckDropHour: 19,
		Attendance:   4500,
		Archetype:    models.ArchetypeMixed,
		TempMean:     8.0,
	}
}

func testProvider() *ProfileProvider {
	return NewProfileProvider(4500, 0.80, 1.20)
}

func TestBeerTempFactor(t *testing.T) {
	tests := []struct {
		temp float64
		want float64
	}{
		{8.0, 1.0},
		{18.0, 1.3},
		{-2.0, 0.7},
		{-20.0, 0.7}, // clamped low
		{40.0, 1.5},  // clamped high
	}
	for _, tt := range tests {
		got := BeerTempFactor(tt.temp)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BeerTempFactor(%.1f) = %.3f, want %.3f", tt.temp, got, tt.want)
		}
	}
}

func TestHotDrinkTempFactor(t *testing.T) {
	tests := []struct {
		temp float64
		want float64
	}{
		{8.0, 1.0},
		{-2.0, 1.3},
		{18.0, 0.7},
		{-20.0, 1.3}, // clamped high
		{40.0, 0.5},  // clamped low
	}
	for _, tt := range tests {
		got := HotDrinkTempFactor(tt.temp)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("HotDrinkTempFactor(%.1f) = %.3f, want %.3f", tt.temp, got, tt.want)
		}
	}
}

func TestGetForecast_ColdNightShiftsDrinkMix(t *testing.T) {
	windows := models.GameWindows(2)
	warm := testGame(t)
	warm.TempMean = 18.0
	cold := testGame(t)
	cold.TempMean = -2.0

	warmTable, err := testProvider().GetForecast(context.Background(), warm, windows)
	if err != nil {
		t.Fatalf("GetForecast warm: %v", err)
	}
	coldTable, err := testProvider().GetForecast(context.Background(), cold, windows)
	if err != nil {
		t.Fatalf("GetForecast cold: %v", err)
	}

	itemTotal := func(table *models.ForecastTable, item string) float64 {
		var sum float64
		for _, e := range table.Entries {
			if e.Item == item {
				sum += e.Qty
			}
		}
		return sum
	}
	if hw, hc := itemTotal(warmTable, "Hot Drinks"), itemTotal(coldTable, "Hot Drinks"); hw >= hc {
		t.Errorf("hot drinks: warm %.1f should be below cold %.1f", hw, hc)
	}
	if bw, bc := itemTotal(warmTable, "Draught Beer"), itemTotal(coldTable, "Draught Beer"); bw <= bc {
		t.Errorf("draught beer: warm %.1f should be above cold %.1f", bw, bc)
	}
}

func TestGetForecast_Basic(t *testing.T) {
	windows := models.GameWindows(2)
	table, err := testProvider().GetForecast(context.Background(), testGame(t), windows)
	if err != nil {
		t.Fatalf("GetForecast: %v", err)
	}
	if table.Total() <= 0 {
		t.Error("forecast total should be positive")
	}
	if len(table.Stands) != len(Stands()) {
		t.Errorf("got %d stands, want %d", len(table.Stands), len(Stands()))
	}
	for _, stand := range Stands() {
		if table.StandTotal(stand) <= 0 {
			t.Errorf("stand %q has no forecast volume", stand)
		}
	}
}

func TestGetForecast_AttendanceScaling(t *testing.T) {
	windows := models.GameWindows(2)
	p := testProvider()

	small := testGame(t)
	small.Attendance = 3000
	big := testGame(t)
	big.Attendance = 6000

	smallTable, err := p.GetForecast(context.Background(), small, windows)
	if err != nil {
		t.Fatalf("GetForecast small: %v", err)
	}
	bigTable, err := p.GetForecast(context.Background(), big, windows)
	if err != nil {
		t.Fatalf("GetForecast big: %v", err)
	}
	ratio := bigTable.Total() / smallTable.Total()
	if math.Abs(ratio-2.0) > 1e-6 {
		t.Errorf("doubling attendance should double the forecast, got ratio %.4f", ratio)
	}
}

func TestGetForecast_PlayoffUplift(t *testing.T) {
	windows := models.GameWindows(2)
	p := testProvider()

	regular := testGame(t)
	playoff := testGame(t)
	playoff.Playoff = true
	playoff.Archetype = regular.Archetype // pin archetype so only the uplift differs

	regTable, err := p.GetForecast(context.Background(), regular, windows)
	if err != nil {
		t.Fatalf("GetForecast regular: %v", err)
	}
	poTable, err := p.GetForecast(context.Background(), playoff, windows)
	if err != nil {
		t.Fatalf("GetForecast playoff: %v", err)
	}
	ratio := poTable.Total() / regTable.Total()
	if math.Abs(ratio-playoffFactor) > 1e-6 {
		t.Errorf("playoff uplift ratio = %.4f, want %.2f", ratio, playoffFactor)
	}
}

func TestGetForecast_TaggedPromoRaisesPromoItem(t *testing.T) {
	windows := models.GameWindows(2)
	p := testProvider()

	plain := testGame(t)
	promo := testGame(t)
	promo.Promo = true
	promo.PromoType = PromoHotDog

	plainTable, err := p.GetForecast(context.Background(), plain, windows)
	if err != nil {
		t.Fatalf("GetForecast plain: %v", err)
	}
	promoTable, err := p.GetForecast(context.Background(), promo, windows)
	if err != nil {
		t.Fatalf("GetForecast promo: %v", err)
	}

	sumItem := func(tbl *models.ForecastTable, item string) float64 {
		var total float64
		for _, e := range tbl.Entries {
			if e.Item == item {
				total += e.Qty
			}
		}
		return total
	}
	dogRatio := sumItem(promoTable, "Hot Dog") / sumItem(plainTable, "Hot Dog")
	if math.Abs(dogRatio-promoFactor) > 1e-6 {
		t.Errorf("promo item uplift = %.4f, want %.2f", dogRatio, promoFactor)
	}
	beerRatio := sumItem(promoTable, "Draught Beer") / sumItem(plainTable, "Draught Beer")
	if math.Abs(beerRatio-1.0) > 1e-6 {
		t.Errorf("non-promo item should be unchanged, got ratio %.4f", beerRatio)
	}
}

func TestGetForecast_RangeBounds(t *testing.T) {
	windows := models.GameWindows(2)
	table, err := testProvider().GetForecast(context.Background(), testGame(t), windows)
	if err != nil {
		t.Fatalf("GetForecast: %v", err)
	}
	for _, e := range table.Entries {
		if e.Low > e.Qty || e.Qty > e.High {
			t.Fatalf("entry %s/%s window %d violates low <= qty <= high", e.Stand, e.Item, e.Window)
		}
	}
}

func TestGetForecast_InvalidGame(t *testing.T) {
	windows := models.GameWindows(2)
	game := testGame(t)
	game.Attendance = 0
	_, err := testProvider().GetForecast(context.Background(), game, windows)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Err: ErrUnavailable}
	if _, err := mock.GetForecast(context.Background(), nil, nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
