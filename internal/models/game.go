// Package models defines the core domain entities: games, forecasts, drift records, and events.
package models

import (
	"errors"
	"time"
)

// Archetype classifies the expected crowd behavior of a game and selects
// which baseline demand curves the forecast is built from.
type Archetype string

const (
	ArchetypeBeerCrowd Archetype = "beer_crowd"
	ArchetypeFamily    Archetype = "family"
	ArchetypeMixed     Archetype = "mixed"
)

// Game describes a single arena game. Immutable once a session starts.
type Game struct {
	ID           string    `json:"id"`
	Opponent     string    `json:"opponent"`
	Date         time.Time `json:"date"`
	DayOfWeek    string    `json:"day_of_week"`
	PuckDropHour int       `json:"puck_drop_hour"`
	Attendance   int       `json:"attendance"`
	Archetype    Archetype `json:"archetype"`
	Playoff      bool      `json:"playoff"`
	Promo        bool      `json:"promo"`
	PromoType    string    `json:"promo_type,omitempty"`
	TempMean     float64   `json:"temp_mean"`
}

// Validate checks game field constraints.
func (g *Game) Validate() error {
	if g.ID == "" {
		return errors.New("game ID must not be empty")
	}
	if g.Attendance <= 0 {
		return errors.New("attendance must be positive")
	}
	if g.PuckDropHour < 0 || g.PuckDropHour > 23 {
		return errors.New("puck drop hour must be between 0 and 23")
	}
	switch g.Archetype {
	case ArchetypeBeerCrowd, ArchetypeFamily, ArchetypeMixed, "":
	default:
		return errors.New("archetype must be one of: beer_crowd, family, mixed")
	}
	return nil
}

// DeriveArchetype infers the crowd archetype from game inputs. Playoff games
// always draw a beer crowd; afternoon and cold weekend games skew family.
func DeriveArchetype(attendance, puckDropHour int, playoff bool, tempMean float64, dayOfWeek string) Archetype {
	if playoff {
		return ArchetypeBeerCrowd
	}
	if attendance >= 3500 && puckDropHour >= 19 && (dayOfWeek == "Fri" || dayOfWeek == "Sat") {
		return ArchetypeBeerCrowd
	}
	if puckDropHour < 17 {
		return ArchetypeFamily
	}
	if tempMean < 3 && (dayOfWeek == "Sat" || dayOfWeek == "Sun") {
		return ArchetypeFamily
	}
	return ArchetypeMixed
}
