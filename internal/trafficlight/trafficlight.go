// Package trafficlight renders drift records into the stable status shape
// carried on the event stream. It keeps transport concerns out of the drift
// detector's internals.
package trafficlight

import (
	"sort"

	"github.com/rinkside/standwatch/internal/models"
)

// Reduce renders one stand's latest drift record for transport.
func Reduce(rec models.DriftRecord) models.StandStatus {
	return models.StandStatus{
		Stand:           rec.Stand,
		Status:          rec.Status,
		DriftPct:        rec.DriftPct,
		CumulativeDrift: rec.CumulativeDrift,
		ForecastQty:     rec.ForecastQty,
		ActualQty:       rec.ActualQty,
		Trend:           rec.Trend,
	}
}

// ReduceAll renders a window's records with the worst statuses first, so
// consumers that truncate still see what matters.
func ReduceAll(recs []models.DriftRecord) []models.StandStatus {
	statuses := make([]models.StandStatus, len(recs))
	for i, rec := range recs {
		statuses[i] = Reduce(rec)
	}
	sort.SliceStable(statuses, func(i, j int) bool {
		return statuses[i].Status.Severity() > statuses[j].Status.Severity()
	})
	return statuses
}

// VenueStatus aggregates per-stand statuses into a single worst-of signal.
func VenueStatus(statuses []models.StandStatus) models.Status {
	worst := models.StatusGreen
	for _, s := range statuses {
		if s.Status.Severity() > worst.Severity() {
			worst = s.Status
		}
	}
	return worst
}
