// Package scenario turns a baseline forecast into a synthetic ground-truth
// sales stream for replay, by layering deterministic perturbations and
// reproducible noise on top of the forecast.
package scenario

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/rinkside/standwatch/internal/models"
)

// ErrInvalidScenario covers unknown scenario keys and malformed overrides.
// Both are rejected synchronously without touching session state.
var ErrInvalidScenario = errors.New("invalid scenario")

// Kind names a pre-built scenario.
type Kind string

const (
	KindNormal              Kind = "normal"
	KindUntaggedPromo       Kind = "untagged_promo"
	KindStandRedistribution Kind = "stand_redistribution"
	KindWeatherSurprise     Kind = "weather_surprise"
	KindPlayoff             Kind = "playoff"
	KindCustom              Kind = "custom"
)

// ParseKind validates a scenario key.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindNormal, KindUntaggedPromo, KindStandRedistribution, KindWeatherSurprise, KindPlayoff, KindCustom:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown scenario %q", ErrInvalidScenario, s)
}

// Descriptions for scenario listings.
var descriptions = map[Kind]string{
	KindNormal:              "Standard mixed-crowd game. Forecast should track actuals with minor drift.",
	KindUntaggedPromo:       "Promo night the system was never told about. Hot dog demand spikes mid-game.",
	KindStandRedistribution: "Island Canteen goes down during INT1. Other stands absorb the demand.",
	KindWeatherSurprise:     "Unseasonably warm day. Beer outruns a cold-weather forecast.",
	KindPlayoff:             "Playoff intensity. Venue-wide volume runs hot against a regular-season baseline.",
	KindCustom:              "No baked-in perturbations. Drive the game entirely with injected overrides.",
}

// Describe returns the human-readable summary for a scenario key.
func Describe(k Kind) string { return descriptions[k] }

// Kinds returns all known scenario keys.
func Kinds() []Kind {
	return []Kind{KindNormal, KindUntaggedPromo, KindStandRedistribution, KindWeatherSurprise, KindPlayoff, KindCustom}
}

// Override types accepted from inbound control messages.
const (
	TypeStandOutage  = "stand_outage"
	TypeDemandSpike  = "demand_spike"
	TypeGlobalVolume = "global_volume"

	// Internal types used by pre-built scenarios, not injectable.
	typeItemFactor     = "item_factor"
	typeCategoryFactor = "category_factor"
)

// Override is a multiplicative (or zeroing) adjustment to actual demand,
// active over a window range. FromWindow/ToWindow are window indices;
// ToWindow < 0 means open-ended.
type Override struct {
	Type       string  `json:"type"`
	Stand      string  `json:"stand,omitempty"`
	Item       string  `json:"item,omitempty"`
	Category   string  `json:"category,omitempty"`
	Factor     float64 `json:"factor,omitempty"`
	FromWindow int     `json:"from_window"`
	ToWindow   int     `json:"to_window"`
}

// Validate checks an injectable override. Scenario-internal types are
// rejected here; only the public control-message types pass.
func (o *Override) Validate() error {
	switch o.Type {
	case TypeStandOutage:
		if o.Stand == "" {
			return fmt.Errorf("%w: stand_outage requires a stand", ErrInvalidScenario)
		}
	case TypeDemandSpike:
		if o.Stand == "" {
			return fmt.Errorf("%w: demand_spike requires a stand", ErrInvalidScenario)
		}
		if o.Factor <= 0 {
			return fmt.Errorf("%w: demand_spike requires a positive factor", ErrInvalidScenario)
		}
	case TypeGlobalVolume:
		if o.Factor <= 0 {
			return fmt.Errorf("%w: global_volume requires a positive factor", ErrInvalidScenario)
		}
	default:
		return fmt.Errorf("%w: unknown override type %q", ErrInvalidScenario, o.Type)
	}
	if o.ToWindow >= 0 && o.ToWindow < o.FromWindow {
		return fmt.Errorf("%w: override end window %d precedes start window %d", ErrInvalidScenario, o.ToWindow, o.FromWindow)
	}
	return nil
}

// matches reports whether the override applies to the given cell.
func (o *Override) matches(stand, item, category string, window int) bool {
	if window < o.FromWindow {
		return false
	}
	if o.ToWindow >= 0 && window > o.ToWindow {
		return false
	}
	if o.Stand != "" && o.Stand != stand {
		return false
	}
	if o.Item != "" && o.Item != item {
		return false
	}
	if o.Category != "" && o.Category != category {
		return false
	}
	return true
}

// Engine produces per-tick actual observations from the baseline forecast.
// Safe for one producer goroutine plus concurrent Inject callers.
type Engine struct {
	kind     Kind
	table    *models.ForecastTable
	noisePct float64

	mu      sync.Mutex
	active  []Override
	pending []Override
}

// NewEngine builds the engine for one session, seeding the scenario's own
// perturbations as already-active overrides.
func NewEngine(kind Kind, table *models.ForecastTable, noisePct float64) (*Engine, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("%w: no baseline forecast", ErrInvalidScenario)
	}
	e := &Engine{
		kind:     kind,
		table:    table,
		noisePct: noisePct,
	}
	e.active = baseOverrides(kind, table)
	return e, nil
}

// Kind returns the engine's scenario key.
func (e *Engine) Kind() Kind { return e.kind }

// windowIndexAt returns the index of the window containing the given minute
// offset, or the last window if the offset is past the end.
func windowIndexAt(windows []models.TimeWindow, offset int) int {
	idx := len(windows) - 1
	for i := len(windows) - 1; i >= 0; i-- {
		if windows[i].Offset <= offset {
			return i
		}
		idx = i
	}
	return idx
}

// baseOverrides builds a scenario's built-in perturbations, expressed against
// the session's window sequence.
func baseOverrides(kind Kind, table *models.ForecastTable) []Override {
	w := table.Windows
	switch kind {
	case KindUntaggedPromo:
		// Promo uplift on the promoted item from first intermission on.
		return []Override{{
			Type: typeItemFactor, Item: "Hot Dog", Factor: 2.5,
			FromWindow: windowIndexAt(w, 20), ToWindow: -1,
		}}
	case KindStandRedistribution:
		// One stand dark through INT1 and P2; a neighbor absorbs the rush.
		return []Override{
			{
				Type: TypeStandOutage, Stand: "Island Canteen",
				FromWindow: windowIndexAt(w, 20), ToWindow: windowIndexAt(w, 50),
			},
			{
				Type: TypeDemandSpike, Stand: "TacoTacoTaco", Factor: 1.8,
				FromWindow: windowIndexAt(w, 20), ToWindow: -1,
			},
		}
	case KindWeatherSurprise:
		// Warm evening against a cold-weather baseline.
		return []Override{
			{Type: typeCategoryFactor, Category: "Beer", Factor: 1.3, FromWindow: 0, ToWindow: -1},
			{Type: typeItemFactor, Item: "Hot Drinks", Factor: 0.75, FromWindow: 0, ToWindow: -1},
		}
	case KindPlayoff:
		return []Override{{Type: TypeGlobalVolume, Factor: 1.15, FromWindow: 0, ToWindow: -1}}
	}
	return nil
}

// Inject validates an override and queues it for activation at the next tick.
// Overrides never apply retroactively to windows already processed.
func (e *Engine) Inject(o Override) error {
	if err := o.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.pending = append(e.pending, o)
	e.mu.Unlock()
	return nil
}

// Activate drains the pending queue at the start of a tick, clamping each
// override's start to the current window, and returns what was activated.
func (e *Engine) Activate(currentWindow int) []Override {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return nil
	}
	activated := make([]Override, 0, len(e.pending))
	for _, o := range e.pending {
		if o.FromWindow < currentWindow {
			o.FromWindow = currentWindow
		}
		e.active = append(e.active, o)
		activated = append(activated, o)
	}
	e.pending = nil
	return activated
}

// ActiveTypesFor lists the override types currently affecting a stand in a
// window. Scenario-internal perturbations are excluded: the session only
// "knows" what was injected or declared, mirroring how an operator would
// reason about an unexplained spike.
func (e *Engine) ActiveTypesFor(stand string, window int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var types []string
	for i := range e.active {
		o := &e.active[i]
		if o.Type != TypeStandOutage && o.Type != TypeDemandSpike && o.Type != TypeGlobalVolume {
			continue
		}
		// An outage elsewhere is still known context for this stand.
		if o.Type == TypeStandOutage || o.matches(stand, "", "", window) {
			if window >= o.FromWindow && (o.ToWindow < 0 || window <= o.ToWindow) {
				types = append(types, o.Type)
			}
		}
	}
	return types
}

// ActiveOverrides returns a snapshot of the currently active overrides.
func (e *Engine) ActiveOverrides() []Override {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Override, len(e.active))
	copy(out, e.active)
	return out
}

// multiplier resolves the combined adjustment for one forecast cell. An
// outage zeroes the cell regardless of other overrides.
func (e *Engine) multiplier(stand, item, category string, window int) float64 {
	m := 1.0
	for i := range e.active {
		o := &e.active[i]
		if !o.matches(stand, item, category, window) {
			continue
		}
		if o.Type == TypeStandOutage {
			return 0
		}
		m *= o.Factor
	}
	return m
}

// ActualFor computes the realized sales for one stand in one window:
// forecast × scenario multipliers × reproducible noise. The noise factor is
// shared across all of the stand's items in the window so pure volume
// adjustments never disturb the item mix.
func (e *Engine) ActualFor(stand string, window int) models.ActualObservation {
	e.mu.Lock()
	defer e.mu.Unlock()

	noise := noiseFactor(e.table.Game.ID, stand, window, e.noisePct)
	obs := models.ActualObservation{
		Stand:      stand,
		Window:     window,
		Items:      make(map[string]float64),
		Categories: make(map[string]float64),
	}
	for _, entry := range e.table.Entries {
		if entry.Stand != stand || entry.Window != window {
			continue
		}
		qty := entry.Qty * e.multiplier(stand, entry.Item, entry.Category, window) * noise
		if qty <= 0 {
			continue
		}
		obs.Qty += qty
		obs.Items[entry.Item] += qty
		obs.Categories[entry.Category] += qty
	}
	if len(obs.Items) == 0 {
		obs.Items = nil
		obs.Categories = nil
	}
	return obs
}

// noiseFactor returns a multiplier in [1−pct, 1+pct], deterministic in
// (gameID, stand, window) so repeated replays are reproducible.
func noiseFactor(gameID, stand string, window int, pct float64) float64 {
	if pct <= 0 {
		return 1.0
	}
	h := fnv.New64a()
	h.Write([]byte(gameID))
	h.Write([]byte{0})
	h.Write([]byte(stand))
	h.Write([]byte{0, byte(window), byte(window >> 8), byte(window >> 16), byte(window >> 24)})
	u := float64(h.Sum64()) / float64(math.MaxUint64)
	return 1.0 + pct*(2.0*u-1.0)
}
