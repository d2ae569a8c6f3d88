package constraint

import (
	"testing"

	"github.com/paiban/campsched/pkg/model"
)

func newTestContext(troops ...*model.Troop) (*Context, *model.Catalog) {
	catalog := model.DefaultCatalog()
	return NewContext(catalog, troops, DefaultLimits()), catalog
}

func TestContext_PlaceAndRemoveUnit(t *testing.T) {
	troop := model.NewTroop("Alpha")
	ctx, catalog := newTestContext(troop)
	snorkel := catalog.MustGet("Canoe Snorkel")
	start := model.NewSlot(model.Monday, 1)

	u, ok := ctx.PlaceUnit(troop, snorkel, start, false)
	if !ok {
		t.Fatal("PlaceUnit() failed")
	}
	if len(u.Records) != 2 || len(ctx.Assignments) != 2 {
		t.Fatalf("records = %d, assignments = %d, want 2", len(u.Records), len(ctx.Assignments))
	}
	if ctx.IsFree(troop.ID, model.NewSlot(model.Monday, 2)) {
		t.Error("continuation slot should be occupied")
	}
	if got := ctx.StaffLoad(model.NewSlot(model.Monday, 2)); got != snorkel.Staff {
		t.Errorf("StaffLoad() = %d, want %d", got, snorkel.Staff)
	}
	if got := ctx.AreaDayCount("Canoe Snorkel", model.Monday); got != 2 {
		t.Errorf("AreaDayCount() = %d, want 2", got)
	}
	if !ctx.HasActivity(troop.ID, "Canoe Snorkel") {
		t.Error("HasActivity() = false")
	}

	removed := ctx.RemoveUnit(u.Key())
	if len(removed) != 2 {
		t.Errorf("RemoveUnit() = %d records, want 2", len(removed))
	}
	if len(ctx.Assignments) != 0 || ctx.StaffLoad(start) != 0 || ctx.AreaDayCount("Canoe Snorkel", model.Monday) != 0 {
		t.Error("indexes should be empty after RemoveUnit")
	}
	if ctx.Mutations() != 2 {
		t.Errorf("Mutations() = %d, want 2", ctx.Mutations())
	}

	ctx.AddUnit(removed)
	if len(ctx.TroopUnits(troop.ID)) != 1 {
		t.Error("AddUnit() should restore the unit")
	}
}

func TestContext_AreaInstances(t *testing.T) {
	a := model.NewTroop("Alpha")
	b := model.NewTroop("Bravo")
	ctx, catalog := newTestContext(a, b)
	slot := model.NewSlot(model.Tuesday, 1)

	ctx.PlaceUnit(a, catalog.MustGet("Aqua Trampoline"), slot, false)
	ctx.PlaceUnit(b, catalog.MustGet("Aqua Trampoline"), slot, false)
	if got := ctx.AreaInstances("Aqua Trampoline", slot); got != 1 {
		t.Errorf("shared AreaInstances() = %d, want 1", got)
	}

	slot2 := model.NewSlot(model.Tuesday, 2)
	ctx.PlaceUnit(a, catalog.MustGet("Tie Dye"), slot2, false)
	ctx.PlaceUnit(b, catalog.MustGet("Hemp Craft"), slot2, false)
	if got := ctx.AreaInstances("Handicrafts", slot2); got != 2 {
		t.Errorf("exclusive AreaInstances() = %d, want 2", got)
	}
}

func TestContext_HalfSlotOccupancy(t *testing.T) {
	troop := model.NewTroop("Alpha")
	ctx, catalog := newTestContext(troop)
	ctx.PlaceUnit(troop, catalog.MustGet(model.ActivitySailing), model.NewSlot(model.Monday, 1), false)

	if got := len(ctx.Occupants(model.NewSlot(model.Monday, 2))); got != 0 {
		t.Errorf("Occupants(Mon-2) = %d, want 0 for half slot", got)
	}
	if got := len(ctx.InSlot(model.NewSlot(model.Monday, 2))); got != 1 {
		t.Errorf("InSlot(Mon-2) = %d, want 1", got)
	}
	if got := ctx.AreaDayCount("Sailing", model.Monday); got != 1 {
		t.Errorf("AreaDayCount() = %d, want 1", got)
	}
}

func TestContext_EmptyCellsAndClone(t *testing.T) {
	troop := model.NewTroop("Alpha")
	ctx, catalog := newTestContext(troop)
	ctx.PlaceUnit(troop, catalog.MustGet("Itasca State Park"), model.NewSlot(model.Monday, 1), false)

	if got := len(ctx.EmptyCells(troop.ID)); got != 11 {
		t.Errorf("EmptyCells() = %d, want 11", got)
	}
	if ctx.GapCount() != 11 {
		t.Errorf("GapCount() = %d, want 11", ctx.GapCount())
	}

	cp := ctx.Clone()
	cp.RemoveUnit(cp.Units()[0].Key())
	if len(ctx.Assignments) != 3 {
		t.Error("Clone() should not share indexes with the original")
	}
}
