package plans

import (
	"errors"
	"testing"

	"atsboost/internal/models"
)

func TestCatalogIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range All() {
		if seen[p.ID] {
			t.Errorf("Duplicate plan id %q", p.ID)
		}
		seen[p.ID] = true
	}
	if len(seen) != 3 {
		t.Errorf("Expected 3 plans, got %d", len(seen))
	}
}

func TestFind(t *testing.T) {
	p, err := Find("three-day")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Price != 1299 || p.Duration != "3 days" {
		t.Errorf("Unexpected plan %+v", p)
	}
	if AmountMinor(p) != 129900 {
		t.Errorf("Expected 129900 paise, got %d", AmountMinor(p))
	}

	if _, err := Find("lifetime"); !errors.Is(err, models.ErrUnknownPlan) {
		t.Errorf("Expected ErrUnknownPlan, got %v", err)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	a := All()
	a[0].Features[0] = "mutated"
	a[0].Name = "mutated"
	if b := All(); b[0].Features[0] == "mutated" || b[0].Name == "mutated" {
		t.Error("All must not expose the catalog for mutation")
	}
}

func TestOnlyOneDayIsRecommended(t *testing.T) {
	for _, p := range All() {
		if p.Recommended != (p.ID == "one-day") {
			t.Errorf("Unexpected recommended flag on %q", p.ID)
		}
	}
}

func TestSelectionIsExclusive(t *testing.T) {
	var s Selection
	s.Select("one-day")
	s.Select("week")

	if s.IsSelected("one-day") {
		t.Error("Selecting week must deselect one-day")
	}
	if !s.IsSelected("week") {
		t.Error("week should be selected")
	}

	selected := 0
	for _, c := range s.Cards() {
		if c.Selected {
			selected++
		}
	}
	if selected != 1 {
		t.Errorf("Expected exactly one selected card, got %d", selected)
	}
}

func TestCanProceed(t *testing.T) {
	var s Selection
	if s.CanProceed() {
		t.Error("Proceed must be disabled with no selection")
	}
	if _, ok := s.Plan(); ok {
		t.Error("No plan expected")
	}

	s.Select("one-day")
	if !s.CanProceed() {
		t.Error("Proceed must be enabled immediately after selection")
	}
	if p, ok := s.Plan(); !ok || p.ID != "one-day" {
		t.Errorf("Unexpected plan %+v", p)
	}

	s.Select("unknown")
	if s.CanProceed() {
		t.Error("Unknown id must leave nothing selected")
	}

	s.Select("week")
	s.Clear()
	if s.CanProceed() {
		t.Error("Clear must disable proceed")
	}
}
