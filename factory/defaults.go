package factory

import (
	"encoding/json"

	"github.com/warp/sales-engine/generic"
)

// DefaultConfigJSON returns a starter configuration for a fresh store: the
// marketplace ladder, 1% revenue bonus from 150k, 150 attendance default.
func DefaultConfigJSON(coordinator generic.UserID, sellers ...generic.UserID) []byte {
	return StarterConfigJSON(generic.DefaultTimezone, coordinator, sellers...)
}

// StarterConfigJSON is DefaultConfigJSON in another timezone.
func StarterConfigJSON(timezone string, coordinator generic.UserID, sellers ...generic.UserID) []byte {
	if timezone == "" {
		timezone = generic.DefaultTimezone
	}
	if sellers == nil {
		sellers = []generic.UserID{}
	}
	doc := map[string]any{
		"team": map[string]any{
			"coordinatorId": coordinator,
			"sellers":       sellers,
		},
		"commissions": map[string]any{
			"seller_own":        0.05,
			"seller_over_coord": 0.01,
			"coord_own":         0.02,
			"coord_over_seller": 0.02,
		},
		"services": map[string]any{
			"base_min": 0.1,
			"capa": []map[string]any{
				{"minAdesao": 0.2, "rate": 0.15},
				{"minAdesao": 0.4, "rate": 0.2},
			},
			"impermeabilizacao": []map[string]any{
				{"minAdesao": 0.3, "rate": 0.25},
				{"minAdesao": 0.5, "rate": 0.3},
			},
		},
		"ml_bonus": map[string]any{
			"tiers": []map[string]any{
				{"min": 30, "max": 39, "value": 20},
				{"min": 40, "max": 49, "value": 40},
				{"min": 50, "value": 60},
			},
		},
		"faturamento_bonus": []map[string]any{
			{"min": 150000, "rate": 0.01},
		},
		"instagram": map[string]any{
			"postsPerDay":   1,
			"storiesPerDay": 10,
			"weekdays":      map[string]string{"start": "09:00", "end": "18:00"},
			"saturday":      map[string]string{"start": "09:00", "end": "13:00"},
		},
		"timezone":             timezone,
		"pontualidade_default": 150,
	}
	raw, _ := json.Marshal(doc)
	return raw
}
