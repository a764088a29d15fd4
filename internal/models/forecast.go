package models

import (
	"errors"
	"fmt"
)

// ForecastEntry is the baseline demand estimate for one (stand, item, window)
// cell, with a low/high range around the point estimate.
type ForecastEntry struct {
	Stand    string  `json:"stand"`
	Item     string  `json:"item"`
	Category string  `json:"category"`
	Window   int     `json:"window"` // window index
	Qty      float64 `json:"forecast_qty"`
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
}

// Validate checks entry range constraints.
func (e *ForecastEntry) Validate() error {
	if e.Stand == "" {
		return errors.New("forecast entry stand must not be empty")
	}
	if e.Item == "" {
		return errors.New("forecast entry item must not be empty")
	}
	if e.Qty < 0 {
		return errors.New("forecast qty must not be negative")
	}
	if e.Low > e.Qty || e.Qty > e.High {
		return fmt.Errorf("forecast range must satisfy low <= qty <= high (got %.1f <= %.1f <= %.1f)",
			e.Low, e.Qty, e.High)
	}
	return nil
}

type standWindowKey struct {
	stand  string
	window int
}

// ForecastTable is the full baseline forecast for one game. Produced once at
// session start and read-only during replay; aggregate lookups are
// precomputed at construction time so per-tick reads are map hits.
type ForecastTable struct {
	Game    *Game
	Windows []TimeWindow
	Stands  []string
	Entries []ForecastEntry

	standWindow    map[standWindowKey]float64
	standTotal     map[string]float64
	windowTotal    map[int]float64
	categoryShares map[standWindowKey]map[string]float64
	total          float64
}

// NewForecastTable validates the entries and builds the aggregate indexes.
func NewForecastTable(game *Game, windows []TimeWindow, entries []ForecastEntry) (*ForecastTable, error) {
	if len(entries) == 0 {
		return nil, errors.New("forecast has no entries")
	}
	t := &ForecastTable{
		Game:           game,
		Windows:        windows,
		Entries:        entries,
		standWindow:    make(map[standWindowKey]float64),
		standTotal:     make(map[string]float64),
		windowTotal:    make(map[int]float64),
		categoryShares: make(map[standWindowKey]map[string]float64),
	}
	seen := make(map[string]bool)
	for i := range entries {
		e := &entries[i]
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Window < 0 || e.Window >= len(windows) {
			return nil, fmt.Errorf("entry %d: window index %d out of range", i, e.Window)
		}
		key := standWindowKey{e.Stand, e.Window}
		t.standWindow[key] += e.Qty
		t.standTotal[e.Stand] += e.Qty
		t.windowTotal[e.Window] += e.Qty
		t.total += e.Qty
		if t.categoryShares[key] == nil {
			t.categoryShares[key] = make(map[string]float64)
		}
		t.categoryShares[key][e.Category] += e.Qty
		if !seen[e.Stand] {
			seen[e.Stand] = true
			t.Stands = append(t.Stands, e.Stand)
		}
	}
	// Normalize category quantities into shares.
	for key, cats := range t.categoryShares {
		total := t.standWindow[key]
		if total <= 0 {
			continue
		}
		for c := range cats {
			cats[c] /= total
		}
	}
	return t, nil
}

// StandWindowQty returns the forecast quantity for one stand in one window.
func (t *ForecastTable) StandWindowQty(stand string, window int) float64 {
	return t.standWindow[standWindowKey{stand, window}]
}

// StandTotal returns the whole-game forecast total for a stand.
func (t *ForecastTable) StandTotal(stand string) float64 {
	return t.standTotal[stand]
}

// WindowTotal returns the venue-wide forecast total for one window.
func (t *ForecastTable) WindowTotal(window int) float64 {
	return t.windowTotal[window]
}

// Total returns the whole-game venue-wide forecast total.
func (t *ForecastTable) Total() float64 {
	return t.total
}

// CategoryShares returns the forecast item-category share split for one stand
// in one window, or nil when the cell has no forecast volume.
func (t *ForecastTable) CategoryShares(stand string, window int) map[string]float64 {
	return t.categoryShares[standWindowKey{stand, window}]
}

// ActualObservation is the realized sales for one stand in one window.
// Observations are append-only: one per stand per tick, never revised.
type ActualObservation struct {
	Stand      string             `json:"stand"`
	Window     int                `json:"window"`
	Qty        float64            `json:"actual_qty"`
	Items      map[string]float64 `json:"items,omitempty"`
	Categories map[string]float64 `json:"categories,omitempty"`
}
