// Package plans holds the static subscription catalog and the picker's selection state.
package plans

import (
	"atsboost/internal/models"
)

var catalog = []models.SubscriptionPlan{
	{
		ID:       "one-day",
		Name:     "24-Hour Access",
		Price:    499,
		Duration: "24 hours",
		Features: []string{
			"One expert consultation session",
			"Resume ATS score analysis",
			"Chat with expert for 24 hours",
			"Share documents and links",
			"Personalized improvement tips",
		},
		Recommended: true,
	},
	{
		ID:       "three-day",
		Name:     "3-Day Package",
		Price:    1299,
		Duration: "3 days",
		Features: []string{
			"Three expert consultation sessions",
			"Extended chat support for 3 days",
			"Detailed ATS score breakdown",
			"Priority appointment slots",
			"Resume template suggestions",
		},
	},
	{
		ID:       "week",
		Name:     "Weekly Access",
		Price:    2499,
		Duration: "7 days",
		Features: []string{
			"Unlimited expert consultations",
			"7-day chat support",
			"Complete ATS optimization",
			"Industry-specific keywords",
			"Mock interview preparation",
		},
	},
}

// All returns a copy of the catalog in display order.
func All() []models.SubscriptionPlan {
	out := make([]models.SubscriptionPlan, len(catalog))
	for i, p := range catalog {
		p.Features = append([]string(nil), p.Features...)
		out[i] = p
	}
	return out
}

// Find looks a plan up by id.
func Find(id string) (models.SubscriptionPlan, error) {
	for _, p := range catalog {
		if p.ID == id {
			p.Features = append([]string(nil), p.Features...)
			return p, nil
		}
	}
	return models.SubscriptionPlan{}, models.ErrUnknownPlan
}

// AmountMinor converts a catalog price in rupees to paise.
func AmountMinor(p models.SubscriptionPlan) int64 {
	return p.Price * 100
}
