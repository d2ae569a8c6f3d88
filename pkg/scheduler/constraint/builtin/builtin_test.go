package builtin

import (
	"testing"

	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

type placed struct {
	troop    int
	activity string
	day      model.Day
	slot     int
}

func slot(d model.Day, s int) model.TimeSlot { return model.NewSlot(d, s) }

func TestDefaultConstraints_CanPlace(t *testing.T) {
	tests := []struct {
		name       string
		troops     []*model.Troop
		existing   []placed
		troop      int
		activity   string
		start      model.TimeSlot
		mode       constraint.RelaxMode
		wantReason constraint.Reason
	}{
		{
			name:     "空时段允许",
			troops:   []*model.Troop{model.NewTroop("A")},
			troop:    0,
			activity: "Archery",
			start:    slot(model.Monday, 1),
		},
		{
			name:       "时段已占用",
			troops:     []*model.Troop{model.NewTroop("A")},
			existing:   []placed{{0, "Tie Dye", model.Monday, 2}},
			activity:   "Canoe Snorkel",
			start:      slot(model.Monday, 1),
			wantReason: constraint.ReasonSlotOccupied,
		},
		{
			name:       "跨时段超出当天",
			troops:     []*model.Troop{model.NewTroop("A")},
			activity:   "Float for Floats",
			start:      slot(model.Monday, 3),
			wantReason: constraint.ReasonSpanOverflow,
		},
		{
			name:       "本周已安排",
			troops:     []*model.Troop{model.NewTroop("A")},
			existing:   []placed{{0, "Tie Dye", model.Monday, 1}},
			activity:   "Tie Dye",
			start:      slot(model.Tuesday, 1),
			wantReason: constraint.ReasonAlreadyScheduled,
		},
		{
			name:       "独占区域已被其他队伍占用",
			troops:     []*model.Troop{model.NewTroop("A"), model.NewTroop("B")},
			existing:   []placed{{1, "Knots and Lashings", model.Monday, 1}},
			activity:   "Orienteering",
			start:      slot(model.Monday, 1),
			wantReason: constraint.ReasonAreaCapacity,
		},
		{
			name:     "帆船后半段不占区域",
			troops:   []*model.Troop{model.NewTroop("A"), model.NewTroop("B")},
			existing: []placed{{1, model.ActivitySailing, model.Monday, 1}},
			activity: model.ActivitySailing,
			start:    slot(model.Monday, 2),
		},
		{
			name:     "小队共享水上蹦床",
			troops:   []*model.Troop{model.NewTroop("A"), model.NewTroop("B")},
			existing: []placed{{1, "Aqua Trampoline", model.Monday, 1}},
			activity: "Aqua Trampoline",
			start:    slot(model.Monday, 1),
		},
		{
			name:       "冲突活动同时段",
			troops:     []*model.Troop{model.NewTroop("A"), model.NewTroop("B")},
			existing:   []placed{{1, "Troop Swim", model.Monday, 1}},
			activity:   "Underwater Obstacle Course",
			start:      slot(model.Monday, 1),
			wantReason: constraint.ReasonActivityConflict,
		},
		{
			name:       "同日同区域不同活动",
			troops:     []*model.Troop{model.NewTroop("A")},
			existing:   []placed{{0, "Tie Dye", model.Tuesday, 1}},
			activity:   "Hemp Craft",
			start:      slot(model.Tuesday, 3),
			wantReason: constraint.ReasonSameDayArea,
		},
		{
			name:       "Reflection 只能周五",
			troops:     []*model.Troop{model.NewTroop("A")},
			activity:   model.ActivityReflection,
			start:      slot(model.Monday, 1),
			wantReason: constraint.ReasonFixedDay,
		},
		{
			name:       "水上紧接攀岩",
			troops:     []*model.Troop{model.NewTroop("A")},
			existing:   []placed{{0, model.ActivityClimbingTower, model.Tuesday, 2}},
			activity:   "Troop Swim",
			start:      slot(model.Tuesday, 3),
			wantReason: constraint.ReasonWetTowerAdjacent,
		},
		{
			name:       "后放入中间干时段形成湿干湿",
			troops:     []*model.Troop{model.NewTroop("A")},
			existing:   []placed{{0, "Troop Swim", model.Tuesday, 1}, {0, "Water Polo", model.Tuesday, 3}},
			activity:   "Tie Dye",
			start:      slot(model.Tuesday, 2),
			wantReason: constraint.ReasonWetDryWet,
		},
		{
			name:       "同日两项精准类",
			troops:     []*model.Troop{model.NewTroop("A")},
			existing:   []placed{{0, "Troop Rifle", model.Wednesday, 1}},
			activity:   "Archery",
			start:      slot(model.Wednesday, 3),
			wantReason: constraint.ReasonAccuracyPerDay,
		},
		{
			name:       "第二个三小时活动",
			troops:     []*model.Troop{model.NewTroop("A")},
			existing:   []placed{{0, "Itasca State Park", model.Monday, 1}},
			activity:   "Tamarac Wildlife Refuge",
			start:      slot(model.Tuesday, 1),
			wantReason: constraint.ReasonThreeHourLimit,
		},
		{
			name:       "沙滩活动中间时段",
			troops:     []*model.Troop{model.NewTroop("A")},
			activity:   "Troop Swim",
			start:      slot(model.Monday, 2),
			wantReason: constraint.ReasonBeachSlot,
		},
		{
			name:     "短日沙滩活动不受限",
			troops:   []*model.Troop{model.NewTroop("A")},
			activity: "Troop Swim",
			start:    slot(model.Thursday, 2),
		},
		{
			name:       "同日禁止组合",
			troops:     []*model.Troop{model.NewTroop("A")},
			existing:   []placed{{0, "Trading Post", model.Monday, 1}},
			activity:   "Shower House",
			start:      slot(model.Monday, 3),
			wantReason: constraint.ReasonSameDayPair,
		},
		{
			name:       "严格模式同日避免组合",
			troops:     []*model.Troop{model.NewTroop("A")},
			existing:   []placed{{0, "Trading Post", model.Monday, 1}},
			activity:   "Fishing",
			start:      slot(model.Monday, 3),
			wantReason: constraint.ReasonSoftPair,
		},
		{
			name:     "放宽模式允许同日避免组合",
			troops:   []*model.Troop{model.NewTroop("A")},
			existing: []placed{{0, "Trading Post", model.Monday, 1}},
			activity: "Fishing",
			start:    slot(model.Monday, 3),
			mode:     constraint.RelaxSoft,
		},
		{
			name:       "Super Troop 早于 Delta",
			troops:     []*model.Troop{model.NewTroop("A")},
			existing:   []placed{{0, model.ActivityDelta, model.Wednesday, 1}},
			activity:   model.ActivitySuperTroop,
			start:      slot(model.Monday, 1),
			wantReason: constraint.ReasonDeltaOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := model.DefaultCatalog()
			ctx := constraint.NewContext(catalog, tt.troops, constraint.DefaultLimits())
			for _, e := range tt.existing {
				if _, ok := ctx.PlaceUnit(tt.troops[e.troop], catalog.MustGet(e.activity), slot(e.day, e.slot), false); !ok {
					t.Fatalf("setup PlaceUnit(%s) failed", e.activity)
				}
			}
			manager := NewDefaultManager(constraint.DefaultLimits())

			out := manager.CanPlace(ctx, tt.troops[tt.troop], catalog.MustGet(tt.activity), tt.start, tt.mode)
			wantAllowed := tt.wantReason == constraint.ReasonNone
			if out.Allowed != wantAllowed {
				t.Fatalf("CanPlace() = %+v, want allowed=%v reason=%s", out, wantAllowed, tt.wantReason)
			}
			if out.Reason != tt.wantReason {
				t.Errorf("CanPlace().Reason = %s, want %s", out.Reason, tt.wantReason)
			}
		})
	}
}

func TestAreaCapacity_SharedLimits(t *testing.T) {
	catalog := model.DefaultCatalog()
	big := model.NewTroop("Big")
	big.Scouts = 16
	small1 := model.NewTroop("Small1")
	small2 := model.NewTroop("Small2")
	small3 := model.NewTroop("Small3")
	troops := []*model.Troop{big, small1, small2, small3}
	start := slot(model.Monday, 1)
	tramp := catalog.MustGet("Aqua Trampoline")
	manager := NewDefaultManager(constraint.DefaultLimits())

	ctx := constraint.NewContext(catalog, troops, constraint.DefaultLimits())
	ctx.PlaceUnit(small1, tramp, start, false)
	if out := manager.CanPlace(ctx, big, tramp, start, constraint.Strict); out.Allowed {
		t.Error("large troop should not share Aqua Trampoline")
	}
	ctx.PlaceUnit(small2, tramp, start, false)
	if out := manager.CanPlace(ctx, small3, tramp, start, constraint.Strict); out.Reason != constraint.ReasonAreaCapacity {
		t.Errorf("third troop reason = %s, want area_capacity", out.Reason)
	}
}

func TestFleetCapacity(t *testing.T) {
	catalog := model.DefaultCatalog()
	a := model.NewTroop("A")
	a.Scouts, a.Adults = 12, 3
	b := model.NewTroop("B")
	b.Scouts, b.Adults = 10, 2
	ctx := constraint.NewContext(catalog, []*model.Troop{a, b}, constraint.DefaultLimits())
	ctx.PlaceUnit(a, catalog.MustGet("Troop Canoe"), slot(model.Monday, 1), false)

	c := NewFleetCapacityConstraint(26)
	p := &constraint.Placement{Troop: b, Activity: catalog.MustGet("Nature Canoe"), Start: slot(model.Monday, 1)}
	if out := c.Check(ctx, p); out.Reason != constraint.ReasonFleetCapacity {
		t.Errorf("Check() = %+v, want fleet_capacity", out)
	}
	b.Scouts = 9
	if out := c.Check(ctx, p); !out.Allowed {
		t.Errorf("Check() = %+v, want allowed at 26", out)
	}
}

func TestStaffCeiling(t *testing.T) {
	catalog := model.DefaultCatalog()
	troop := model.NewTroop("A")
	ctx := constraint.NewContext(catalog, []*model.Troop{troop}, constraint.DefaultLimits())
	c := NewStaffCeilingConstraint(1, 3)

	tests := []struct {
		name     string
		activity string
		want     bool
	}{
		{"零成本总是允许", "Gaga Ball", true},
		{"普通上限内", "Tie Dye", true},
		{"聚集活动使用较高上限", model.ActivityClimbingTower, true},
		{"超过普通上限", "Troop Swim", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &constraint.Placement{Troop: troop, Activity: catalog.MustGet(tt.activity), Start: slot(model.Monday, 1)}
			if got := c.Check(ctx, p).Allowed; got != tt.want {
				t.Errorf("Check(%s).Allowed = %v, want %v", tt.activity, got, tt.want)
			}
		})
	}
}

func TestBeachSlot_TopPreferenceRelaxation(t *testing.T) {
	catalog := model.DefaultCatalog()
	troop := model.NewTroop("A", "Troop Swim")
	ctx := constraint.NewContext(catalog, []*model.Troop{troop}, constraint.DefaultLimits())
	filler := catalog.MustGet(model.ActivityCampsiteFreeTime)
	c := NewBeachSlotConstraint(0)
	p := &constraint.Placement{Troop: troop, Activity: catalog.MustGet("Troop Swim"), Start: slot(model.Monday, 2), Mode: constraint.RelaxSoft}

	if c.Check(ctx, p).Allowed {
		t.Fatal("middle slot should be denied while an edge slot is free")
	}
	for _, s := range model.AllSlots() {
		if s.Day != model.ShortDay && (s.IsFirst() || s.IsLast()) {
			ctx.PlaceUnit(troop, filler, s, false)
		}
	}
	if !c.Check(ctx, p).Allowed {
		t.Error("top preference should get the middle slot when no edge slot is free")
	}
	p.Mode = constraint.Strict
	if c.Check(ctx, p).Allowed {
		t.Error("Strict mode should never relax the beach slot rule")
	}
}

func TestDayPin(t *testing.T) {
	catalog := model.DefaultCatalog()
	troop := model.NewTroop("A", "Archery")
	troop.DayRequests["Archery"] = model.Wednesday
	troop.DayRequests[model.ActivitySuperTroop] = model.Tuesday
	ctx := constraint.NewContext(catalog, []*model.Troop{troop}, constraint.DefaultLimits())
	c := NewDayPinConstraint()

	tests := []struct {
		name     string
		activity string
		day      model.Day
		mode     constraint.RelaxMode
		want     bool
	}{
		{"指定日", "Archery", model.Wednesday, constraint.Strict, true},
		{"非指定日", "Archery", model.Monday, constraint.Strict, false},
		{"忽略模式下普通活动仍受限", "Archery", model.Monday, constraint.IgnoreDayPin, false},
		{"忽略模式下必排活动放开", model.ActivitySuperTroop, model.Monday, constraint.IgnoreDayPin, true},
		{"放宽模式不影响指定日", model.ActivitySuperTroop, model.Monday, constraint.RelaxSoft, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &constraint.Placement{Troop: troop, Activity: catalog.MustGet(tt.activity), Start: slot(tt.day, 1), Mode: tt.mode}
			if got := c.Check(ctx, p).Allowed; got != tt.want {
				t.Errorf("Check().Allowed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsWetDryWet(t *testing.T) {
	catalog := model.DefaultCatalog()
	wet := catalog.MustGet("Troop Swim")
	dry := catalog.MustGet("Tie Dye")

	if !IsWetDryWet(map[int]*model.Activity{1: wet, 2: dry, 3: wet}) {
		t.Error("wet/dry/wet should be detected")
	}
	if IsWetDryWet(map[int]*model.Activity{1: wet, 3: wet}) {
		t.Error("empty middle slot is not a violation yet")
	}
	if IsWetDryWet(map[int]*model.Activity{1: dry, 2: wet, 3: wet}) {
		t.Error("dry/wet/wet is allowed")
	}
}
