package plans

import (
	"atsboost/internal/models"
)

// Selection is the picker's single-choice state. The zero value has nothing selected.
type Selection struct {
	planID string
}

// Select makes id the only selected plan. Unknown ids clear the selection.
func (s *Selection) Select(id string) {
	if _, err := Find(id); err != nil {
		s.planID = ""
		return
	}
	s.planID = id
}

func (s *Selection) Clear() { s.planID = "" }

func (s Selection) IsSelected(id string) bool {
	return s.planID != "" && s.planID == id
}

// CanProceed reports whether "Proceed to Payment" is enabled.
func (s Selection) CanProceed() bool {
	return s.planID != ""
}

// Plan returns the selected plan, if any.
func (s Selection) Plan() (models.SubscriptionPlan, bool) {
	if s.planID == "" {
		return models.SubscriptionPlan{}, false
	}
	p, err := Find(s.planID)
	if err != nil {
		return models.SubscriptionPlan{}, false
	}
	return p, true
}

// Card is one rendered tier of the picker.
type Card struct {
	models.SubscriptionPlan
	Selected bool
}

// Cards renders the catalog against the selection.
func (s Selection) Cards() []Card {
	all := All()
	cards := make([]Card, len(all))
	for i, p := range all {
		cards[i] = Card{SubscriptionPlan: p, Selected: s.IsSelected(p.ID)}
	}
	return cards
}
