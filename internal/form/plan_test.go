package form

import (
	"errors"
	"testing"

	"github.com/telkomfield/visitbot/internal/models"
)

func TestPlanTotalSteps(t *testing.T) {
	p := DefaultPlan()
	// 9 common + 2 branch + 4 tail.
	if got := p.TotalSteps(); got != 15 {
		t.Errorf("TotalSteps = %d, want 15", got)
	}
}

func TestPlanFieldForState(t *testing.T) {
	p := DefaultPlan()

	f, ok := p.FieldForState(models.StateCode)
	if !ok || f.Key != models.FieldCode {
		t.Errorf("FieldForState(StateCode) = %+v, %v", f, ok)
	}

	f, ok = p.FieldForState(models.StateDealBundle)
	if !ok || f.Key != models.FieldDealBundle {
		t.Errorf("FieldForState(StateDealBundle) = %+v, %v", f, ok)
	}

	if _, ok := p.FieldForState(models.StateIdle); ok {
		t.Error("FieldForState(StateIdle) should not resolve")
	}
}

func TestPlanNextLinearPrefix(t *testing.T) {
	p := DefaultPlan()
	next, more, err := p.Next(models.StateCode, "")
	if err != nil || !more {
		t.Fatalf("Next(StateCode) = %v, %v", more, err)
	}
	if next.Key != models.FieldFullName {
		t.Errorf("after code comes %s, want full_name", next.Key)
	}
}

func TestPlanBranching(t *testing.T) {
	p := DefaultPlan()

	// Visit branch goes to service tier, then price tier, then the tail.
	next, _, err := p.Next(models.StateActivityType, ActivityVisit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Key != models.FieldServiceTier {
		t.Errorf("Visit branch starts at %s, want service_tier", next.Key)
	}
	next, _, err = p.Next(models.StatePriceTier, ActivityVisit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Key != models.FieldContactName {
		t.Errorf("Visit branch reconverges at %s, want contact_name", next.Key)
	}

	// Dealing branch goes to package, then bundle, then the same tail.
	next, _, err = p.Next(models.StateActivityType, ActivityDealing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Key != models.FieldDealPackage {
		t.Errorf("Dealing branch starts at %s, want deal_package", next.Key)
	}
	next, _, err = p.Next(models.StateDealBundle, ActivityDealing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Key != models.FieldContactName {
		t.Errorf("Dealing branch reconverges at %s, want contact_name", next.Key)
	}
}

func TestPlanLastStep(t *testing.T) {
	p := DefaultPlan()
	_, more, err := p.Next(models.StateEvidencePhoto, ActivityVisit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if more {
		t.Error("evidence photo must be the final step")
	}
}

func TestPlanNextContractErrors(t *testing.T) {
	p := DefaultPlan()

	// A branch state is unreachable on the other branch.
	_, _, err := p.Next(models.StateDealPackage, ActivityVisit)
	if !errors.Is(err, models.ErrNoNextState) {
		t.Errorf("expected ErrNoNextState, got %v", err)
	}

	// The activity state with no resolved branch cannot continue.
	_, _, err = p.Next(models.StateActivityType, "")
	if !errors.Is(err, models.ErrNoNextState) {
		t.Errorf("expected ErrNoNextState, got %v", err)
	}
}
