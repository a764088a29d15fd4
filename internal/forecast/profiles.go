package forecast

import "github.com/rinkside/standwatch/internal/models"

// Item category labels used across the forecast and drift layers.
const (
	CategoryBeer     = "Beer"
	CategoryLiquor   = "Liquor"
	CategoryFood     = "Food"
	CategorySnacks   = "Snacks"
	CategorySweets   = "Sweets"
	CategoryNABev    = "NA Bev"
	CategoryWineCide = "Wine/Cider"
)

// Promo keys matching Game.PromoType. An untagged promo leaves the forecast
// unchanged; only a tagged promo bakes the uplift into the baseline.
const (
	PromoHotDog = "hot_dog"
)

// Uplift factors observed from historical tagged games.
const (
	playoffFactor = 1.15
	promoFactor   = 2.5
)

// phaseCurves gives the fraction of a stand's game total sold in each phase,
// by crowd archetype. Rows sum to 1.0. Beer crowds concentrate volume in the
// intermissions; family crowds front-load the pre-game rush.
var phaseCurves = map[models.Archetype]map[models.Phase]float64{
	models.ArchetypeBeerCrowd: {
		models.PhasePreGame: 0.20,
		models.PhaseP1:      0.10,
		models.PhaseINT1:    0.26,
		models.PhaseP2:      0.08,
		models.PhaseINT2:    0.24,
		models.PhaseP3:      0.12,
	},
	models.ArchetypeFamily: {
		models.PhasePreGame: 0.32,
		models.PhaseP1:      0.12,
		models.PhaseINT1:    0.22,
		models.PhaseP2:      0.08,
		models.PhaseINT2:    0.18,
		models.PhaseP3:      0.08,
	},
	models.ArchetypeMixed: {
		models.PhasePreGame: 0.26,
		models.PhaseP1:      0.11,
		models.PhaseINT1:    0.24,
		models.PhaseP2:      0.08,
		models.PhaseINT2:    0.21,
		models.PhaseP3:      0.10,
	},
}

type itemProfile struct {
	name     string
	category string
	gameRate float64 // units per game at reference attendance
	promoKey string
	hotServe bool // demand falls, not rises, with temperature
}

type standProfile struct {
	name  string
	items []itemProfile
}

// standProfiles is the venue's fixed stand layout with per-item demand rates
// at reference attendance, derived from historical per-game averages.
var standProfiles = []standProfile{
	{
		name: "Island Canteen",
		items: []itemProfile{
			{name: "Draught Beer", category: CategoryBeer, gameRate: 420},
			{name: "Cans of Beer", category: CategoryBeer, gameRate: 180},
			{name: "Hot Dog", category: CategoryFood, gameRate: 260, promoKey: PromoHotDog},
			{name: "Popcorn", category: CategorySnacks, gameRate: 190},
			{name: "Bottle Pop", category: CategoryNABev, gameRate: 230},
			{name: "Candy", category: CategorySweets, gameRate: 110},
		},
	},
	{
		name: "ReMax Fan Deck",
		items: []itemProfile{
			{name: "Draught Beer", category: CategoryBeer, gameRate: 520},
			{name: "Cider & Coolers", category: CategoryWineCide, gameRate: 140},
			{name: "Tequila Slushy", category: CategoryLiquor, gameRate: 95},
			{name: "Pretzel", category: CategorySnacks, gameRate: 85},
		},
	},
	{
		name: "TacoTacoTaco",
		items: []itemProfile{
			{name: "Tacos", category: CategoryFood, gameRate: 310},
			{name: "Fries", category: CategoryFood, gameRate: 170},
			{name: "Cans of Beer", category: CategoryBeer, gameRate: 120},
			{name: "Bottle Pop", category: CategoryNABev, gameRate: 95},
		},
	},
	{
		name: "Portable Stations",
		items: []itemProfile{
			{name: "Hot Dog", category: CategoryFood, gameRate: 180, promoKey: PromoHotDog},
			{name: "Hot Drinks", category: CategoryNABev, gameRate: 140, hotServe: true},
			{name: "Cotton Candy", category: CategorySweets, gameRate: 75},
			{name: "Water", category: CategoryNABev, gameRate: 160},
		},
	},
	{
		name: "Island Slice",
		items: []itemProfile{
			{name: "Pizza Slice", category: CategoryFood, gameRate: 340},
			{name: "Chicken Tenders", category: CategoryFood, gameRate: 130},
			{name: "Cans of Beer", category: CategoryBeer, gameRate: 110},
			{name: "Bottle Pop", category: CategoryNABev, gameRate: 120},
		},
	},
}

// Stands returns the venue's stand names in layout order.
func Stands() []string {
	names := make([]string, len(standProfiles))
	for i, sp := range standProfiles {
		names[i] = sp.name
	}
	return names
}
