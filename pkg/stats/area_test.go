package stats

import (
	"testing"

	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

func newStore(troops ...*model.Troop) *constraint.Context {
	return constraint.NewContext(model.DefaultCatalog(), troops, constraint.DefaultLimits())
}

func place(t *testing.T, ctx *constraint.Context, troop *model.Troop, name string, day model.Day, slot int) {
	t.Helper()
	act := ctx.Catalog.MustGet(name)
	if _, ok := ctx.PlaceUnit(troop, act, model.NewSlot(day, slot), false); !ok {
		t.Fatalf("PlaceUnit(%s, %s-%d) failed", name, day, slot)
	}
}

func TestMinDays(t *testing.T) {
	tests := []struct {
		name     string
		demand   int
		capacity int
		want     int
	}{
		{"无需求", 0, 1, 0},
		{"一天足够", 3, 1, 1},
		{"需要两天", 4, 1, 2},
		{"容量为2", 6, 2, 1},
		{"非法容量按1处理", 4, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinDays(tt.demand, tt.capacity); got != tt.want {
				t.Errorf("MinDays(%d, %d) = %d, want %d", tt.demand, tt.capacity, got, tt.want)
			}
		})
	}
}

func TestAnalyzeArea(t *testing.T) {
	a := model.NewTroop("Alpha")
	b := model.NewTroop("Bravo")
	ctx := newStore(a, b)

	// 射箭分散在两天，理论上一天即可
	place(t, ctx, a, model.ActivityArchery, model.Monday, 1)
	place(t, ctx, b, model.ActivityArchery, model.Wednesday, 2)

	// 户外技能同日首尾占用，中间留空
	place(t, ctx, a, "Chopped!", model.Tuesday, 1)
	place(t, ctx, b, "Orienteering", model.Tuesday, 3)

	archery := AnalyzeArea(ctx, "Archery")
	if archery.InstanceSlots != 2 {
		t.Errorf("InstanceSlots = %d, want 2", archery.InstanceSlots)
	}
	if archery.MinDays != 1 || archery.Excess != 1 {
		t.Errorf("MinDays = %d, Excess = %d, want 1, 1", archery.MinDays, archery.Excess)
	}

	ods := AnalyzeArea(ctx, "Outdoor Skills")
	if ods.ClusterGaps != 1 {
		t.Errorf("ClusterGaps = %d, want 1", ods.ClusterGaps)
	}
	if ods.Excess != 0 {
		t.Errorf("Excess = %d, want 0", ods.Excess)
	}

	excess := ExcessDays(ctx)
	if excess["Archery"] != 1 {
		t.Errorf("ExcessDays[Archery] = %d, want 1", excess["Archery"])
	}
	if _, ok := excess["Outdoor Skills"]; ok {
		t.Error("Outdoor Skills should not report excess days")
	}

	if got := len(AreaReport(ctx)); got != 2 {
		t.Errorf("AreaReport() returned %d areas, want 2", got)
	}
	if cost := AreaCost(ctx, "Outdoor Skills", 10, 3); cost != 3 {
		t.Errorf("AreaCost() = %v, want 3", cost)
	}
}

func TestAnalyzeArea_HalfSlotNotCounted(t *testing.T) {
	a := model.NewTroop("Alpha")
	ctx := newStore(a)
	place(t, ctx, a, model.ActivitySailing, model.Monday, 1)

	u := AnalyzeArea(ctx, "Sailing")
	if u.InstanceSlots != 1 {
		t.Errorf("Sailing InstanceSlots = %d, want 1", u.InstanceSlots)
	}
}
