// Package forecast produces baseline per-stand, per-item, per-window demand
// tables for a game.
package forecast

import (
	"context"
	"errors"
	"fmt"

	"github.com/rinkside/standwatch/internal/models"
)

// ErrUnavailable indicates the provider could not produce a forecast for the
// requested game. Sessions must not start without a baseline.
var ErrUnavailable = errors.New("forecast unavailable")

// Provider builds the baseline forecast table for a game. The table is
// produced once per session and treated as read-only afterward.
type Provider interface {
	GetForecast(ctx context.Context, game *models.Game, windows []models.TimeWindow) (*models.ForecastTable, error)
}

// ProfileProvider synthesizes forecasts from historical per-stand demand
// profiles, shaped by crowd archetype and scaled by game conditions.
type ProfileProvider struct {
	ReferenceAttendance float64
	LowBand             float64
	HighBand            float64
}

// NewProfileProvider returns a provider using the given scaling parameters.
func NewProfileProvider(referenceAttendance, lowBand, highBand float64) *ProfileProvider {
	return &ProfileProvider{
		ReferenceAttendance: referenceAttendance,
		LowBand:             lowBand,
		HighBand:            highBand,
	}
}

// GetForecast builds the full baseline table for one game.
//
// Per-window quantity for each (stand, item) is the item's per-game rate at
// reference attendance, distributed across phases by the archetype's demand
// curve, then scaled by attendance, playoff intensity, promo uplift for the
// promoted item, and (for beer) the temperature factor.
func (p *ProfileProvider) GetForecast(ctx context.Context, game *models.Game, windows []models.TimeWindow) (*models.ForecastTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if game == nil {
		return nil, fmt.Errorf("%w: nil game", ErrUnavailable)
	}
	if err := game.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: no time windows", ErrUnavailable)
	}

	archetype := game.Archetype
	if archetype == "" {
		archetype = models.DeriveArchetype(game.Attendance, game.PuckDropHour, game.Playoff, game.TempMean, game.DayOfWeek)
	}
	curve, ok := phaseCurves[archetype]
	if !ok {
		return nil, fmt.Errorf("%w: no demand curve for archetype %q", ErrUnavailable, archetype)
	}

	windowsPerPhase := make(map[models.Phase]int)
	for _, w := range windows {
		windowsPerPhase[w.Phase]++
	}

	attendanceScale := float64(game.Attendance) / p.ReferenceAttendance
	tempFactor := BeerTempFactor(game.TempMean)

	var entries []models.ForecastEntry
	for _, sp := range standProfiles {
		for _, ip := range sp.items {
			rate := ip.gameRate * attendanceScale
			if game.Playoff {
				rate *= playoffFactor
			}
			if game.Promo && game.PromoType == ip.promoKey && ip.promoKey != "" {
				rate *= promoFactor
			}
			if ip.category == CategoryBeer {
				rate *= tempFactor
			}
			if ip.hotServe {
				rate *= HotDrinkTempFactor(game.TempMean)
			}
			for _, w := range windows {
				share := curve[w.Phase]
				n := windowsPerPhase[w.Phase]
				if share <= 0 || n == 0 {
					continue
				}
				qty := rate * share / float64(n)
				entries = append(entries, models.ForecastEntry{
					Stand:    sp.name,
					Item:     ip.name,
					Category: ip.category,
					Window:   w.Index,
					Qty:      qty,
					Low:      qty * p.LowBand,
					High:     qty * p.HighBand,
				})
			}
		}
	}

	table, err := models.NewForecastTable(game, windows, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return table, nil
}

// BeerTempFactor scales beer demand with mean temperature. Demand rises
// about 3% per degree above 8°C and falls below it, clamped so extreme
// readings never swing the forecast more than ±50%/−30%.
func BeerTempFactor(tempMean float64) float64 {
	f := 1.0 + 0.03*(tempMean-8.0)
	if f < 0.7 {
		return 0.7
	}
	if f > 1.5 {
		return 1.5
	}
	return f
}

// HotDrinkTempFactor is the inverse curve for hot-serve drinks. Cold nights
// push demand up, warm nights suppress it.
func HotDrinkTempFactor(tempMean float64) float64 {
	f := 1.0 - 0.03*(tempMean-8.0)
	if f < 0.5 {
		return 0.5
	}
	if f > 1.3 {
		return 1.3
	}
	return f
}

// MockProvider returns a canned table or error. Test fixture.
type MockProvider struct {
	Table *models.ForecastTable
	Err   error
}

func (m *MockProvider) GetForecast(ctx context.Context, game *models.Game, windows []models.TimeWindow) (*models.ForecastTable, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Table == nil {
		return nil, ErrUnavailable
	}
	return m.Table, nil
}
