// Package prep turns a baseline forecast into a time-ordered prep schedule,
// shading quantities below forecast by perishability tier so waste stays
// bounded while stockouts remain recoverable.
package prep

import (
	"sort"
	"strings"

	"github.com/rinkside/standwatch/internal/models"
)

// Tier classifies an item by how aggressively its prep quantity is shaded
// below the forecast peak.
type Tier string

const (
	TierShelfStable Tier = "shelf_stable"
	TierMediumHold  Tier = "medium_hold"
	TierShortLife   Tier = "short_life"
)

// Fraction of forecast to actually prep, per tier. Waste costs more than a
// stockout, so every tier underprepares and the drift engine signals scale-up.
var prepTarget = map[Tier]float64{
	TierShelfStable: 0.95,
	TierMediumHold:  0.85,
	TierShortLife:   0.75,
}

// Scale-up step when drift shows demand exceeding the prep target.
var scaleUpIncrement = map[Tier]float64{
	TierShelfStable: 0.10,
	TierMediumHold:  0.15,
	TierShortLife:   0.20,
}

var itemTiers = map[string]Tier{
	"Candy":           TierShelfStable,
	"Bottle Pop":      TierShelfStable,
	"Water":           TierShelfStable,
	"Cans of Beer":    TierShelfStable,
	"Cider & Coolers": TierShelfStable,
	"Popcorn":         TierMediumHold,
	"Hot Dog":         TierMediumHold,
	"Pretzel":         TierMediumHold,
	"Cotton Candy":    TierMediumHold,
	"Hot Drinks":      TierMediumHold,
	"Draught Beer":    TierMediumHold,
	"Tequila Slushy":  TierMediumHold,
	"Fries":           TierShortLife,
	"Tacos":           TierShortLife,
	"Pizza Slice":     TierShortLife,
	"Chicken Tenders": TierShortLife,
}

// TierFor returns the perishability tier of an item. Unknown items default to
// medium_hold.
func TierFor(item string) Tier {
	if t, ok := itemTiers[item]; ok {
		return t
	}
	return TierMediumHold
}

// Target returns the prep fraction for a tier.
func Target(tier Tier) float64 {
	if f, ok := prepTarget[tier]; ok {
		return f
	}
	return prepTarget[TierMediumHold]
}

// ScaleUpIncrement returns the scale-up step for a tier, as a fraction of the
// current prep quantity.
func ScaleUpIncrement(tier Tier) float64 {
	if f, ok := scaleUpIncrement[tier]; ok {
		return f
	}
	return scaleUpIncrement[TierMediumHold]
}

// Action is one step of the prep schedule.
type Action struct {
	Offset   int     `json:"offset"` // minutes from puck drop
	Stand    string  `json:"stand"`
	Kind     string  `json:"action"` // pre_stage, batch, refresh_batch, continuous_cook
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
	Tier     Tier    `json:"tier"`
}

// Intermission boundaries where medium-hold batches get refreshed.
const (
	int1Offset = 20
	int2Offset = 58
)

// Plan builds the per-stand prep schedule from a forecast table.
//
// Shelf-stable items are pre-staged in full before doors. Medium-hold items
// are batched pre-game and refreshed at each intermission. Short-life items
// are cooked continuously per window at the shaded target.
func Plan(table *models.ForecastTable) []Action {
	type key struct {
		stand string
		item  string
	}
	// Bucket quantities by prep segment.
	preGame := make(map[key]float64)
	midGame := make(map[key]float64)
	lateGame := make(map[key]float64)
	perWindow := make(map[key]map[int]float64)

	windowOffset := make(map[int]int, len(table.Windows))
	for _, w := range table.Windows {
		windowOffset[w.Index] = w.Offset
	}

	for _, e := range table.Entries {
		k := key{e.Stand, e.Item}
		offset := windowOffset[e.Window]
		qty := e.Qty * Target(TierFor(e.Item))
		switch {
		case offset < int1Offset:
			preGame[k] += qty
		case offset < int2Offset:
			midGame[k] += qty
		default:
			lateGame[k] += qty
		}
		if perWindow[k] == nil {
			perWindow[k] = make(map[int]float64)
		}
		perWindow[k][offset] += qty
	}

	var actions []Action
	emitted := make(map[key]bool)
	for _, e := range table.Entries {
		k := key{e.Stand, e.Item}
		if emitted[k] {
			continue
		}
		emitted[k] = true
		tier := TierFor(e.Item)
		total := preGame[k] + midGame[k] + lateGame[k]
		if total <= 0 {
			continue
		}

		switch tier {
		case TierShelfStable:
			actions = append(actions, Action{
				Offset: -20, Stand: k.stand, Kind: "pre_stage",
				Item: k.item, Quantity: total, Tier: tier,
			})
		case TierMediumHold:
			if q := preGame[k]; q > 0 {
				actions = append(actions, Action{
					Offset: -10, Stand: k.stand, Kind: "batch",
					Item: k.item, Quantity: q, Tier: tier,
				})
			}
			if q := midGame[k]; q > 0 {
				actions = append(actions, Action{
					Offset: int1Offset, Stand: k.stand, Kind: "refresh_batch",
					Item: k.item, Quantity: q, Tier: tier,
				})
			}
			if q := lateGame[k]; q > 0 {
				actions = append(actions, Action{
					Offset: int2Offset, Stand: k.stand, Kind: "refresh_batch",
					Item: k.item, Quantity: q, Tier: tier,
				})
			}
		case TierShortLife:
			offsets := make([]int, 0, len(perWindow[k]))
			for off := range perWindow[k] {
				offsets = append(offsets, off)
			}
			sort.Ints(offsets)
			for _, off := range offsets {
				if q := perWindow[k][off]; q > 0 {
					actions = append(actions, Action{
						Offset: off, Stand: k.stand, Kind: "continuous_cook",
						Item: k.item, Quantity: q, Tier: tier,
					})
				}
			}
		}
	}

	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Offset != actions[j].Offset {
			return actions[i].Offset < actions[j].Offset
		}
		if actions[i].Stand != actions[j].Stand {
			return actions[i].Stand < actions[j].Stand
		}
		return strings.Compare(actions[i].Item, actions[j].Item) < 0
	})
	return actions
}

// ScaleUp converts a drift-driven demand excess into a corrective action for
// one item, using the tier's increment as the quantity bump.
func ScaleUp(stand, item string) models.Action {
	tier := TierFor(item)
	return models.Action{
		Stand:             stand,
		Action:            "scale_up_prep",
		Item:              item,
		QuantityChangePct: ScaleUpIncrement(tier) * 100,
	}
}
