package repair

import (
	"context"
	"testing"

	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/constraint/builtin"
	"github.com/paiban/campsched/pkg/scheduler/event"
)

func newSanitizer(troops ...*model.Troop) (*constraint.Context, *Sanitizer, *event.Recorder) {
	ctx := constraint.NewContext(model.DefaultCatalog(), troops, constraint.DefaultLimits())
	s := NewSanitizer(builtin.NewDefaultManager(ctx.Limits), nil)
	rec := event.NewRecorder()
	s.SetSink(rec)
	return ctx, s, rec
}

func place(t *testing.T, ctx *constraint.Context, troop *model.Troop, name string, day model.Day, slot int) *constraint.Unit {
	t.Helper()
	u, ok := ctx.PlaceUnit(troop, ctx.Catalog.MustGet(name), model.NewSlot(day, slot), false)
	if !ok {
		t.Fatalf("PlaceUnit(%s) failed", name)
	}
	return u
}

func TestQueue(t *testing.T) {
	a := model.NewTroop("Alpha")
	act := model.DefaultCatalog().MustGet("Hemp Craft")
	other := model.DefaultCatalog().MustGet("Dr. DNA")

	q := NewQueue(1)
	if !q.Push(Item{Troop: a, Activity: act}) {
		t.Fatal("first push should succeed")
	}
	if q.Push(Item{Troop: a, Activity: act}) {
		t.Error("duplicate push should be ignored")
	}
	if q.Push(Item{Troop: a, Activity: other}) {
		t.Error("push beyond the limit should fail")
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", q.Dropped())
	}
	if items := q.Drain(); len(items) != 1 || q.Len() != 0 {
		t.Errorf("Drain() = %d items, Len() = %d", len(items), q.Len())
	}
}

func TestDeduplicate(t *testing.T) {
	a := model.NewTroop("Alpha", "Canoe Snorkel")
	ctx, s, _ := newSanitizer(a)

	keep := place(t, ctx, a, model.ActivityArchery, model.Monday, 1)
	place(t, ctx, a, model.ActivityArchery, model.Tuesday, 1)
	place(t, ctx, a, model.ActivityCampsiteFreeTime, model.Wednesday, 1)
	place(t, ctx, a, model.ActivityCampsiteFreeTime, model.Wednesday, 2)

	// 残缺的两时段单元
	records, _ := model.NewUnit(a, ctx.Catalog.MustGet("Canoe Snorkel"), model.NewSlot(model.Friday, 1))
	ctx.AddUnit(records[:1])

	q := NewQueue(0)
	if got := s.Deduplicate(ctx, q); got != 2 {
		t.Errorf("Deduplicate() removed %d, want 2", got)
	}
	if ctx.Unit(keep.Key()) == nil {
		t.Error("earliest Archery unit should be kept")
	}
	if n := len(ctx.ActivityUnits(a.ID, model.ActivityArchery)); n != 1 {
		t.Errorf("Archery units = %d, want 1", n)
	}
	if n := len(ctx.ActivityUnits(a.ID, model.ActivityCampsiteFreeTime)); n != 2 {
		t.Errorf("filler units = %d, want 2", n)
	}
	if q.Len() != 1 {
		t.Errorf("broken ranked unit should be queued, queue len = %d", q.Len())
	}
}

func TestResolveOverlaps(t *testing.T) {
	a := model.NewTroop("Alpha", "Hemp Craft", "Dr. DNA", "Fishing", model.ActivityArchery)
	b := model.NewTroop("Bravo", model.ActivityArchery)
	ctx, s, _ := newSanitizer(a, b)

	place(t, ctx, a, "Hemp Craft", model.Monday, 1)
	gaga := place(t, ctx, a, "Gaga Ball", model.Monday, 1)
	archeryA := place(t, ctx, a, model.ActivityArchery, model.Monday, 2)
	archeryB := place(t, ctx, b, model.ActivityArchery, model.Monday, 2)

	q := NewQueue(0)
	if got := s.ResolveOverlaps(ctx, q); got != 2 {
		t.Errorf("ResolveOverlaps() removed %d, want 2", got)
	}
	if ctx.Unit(gaga.Key()) != nil {
		t.Error("unranked overlapping unit should be removed")
	}
	if ctx.Unit(archeryA.Key()) != nil {
		t.Error("worse-ranked area occupant should be removed")
	}
	if ctx.Unit(archeryB.Key()) == nil {
		t.Error("best-ranked area occupant should be kept")
	}
	// 只有前10偏好进入恢复队列
	if q.Len() != 1 {
		t.Errorf("queue len = %d, want 1", q.Len())
	}

	recovered, failed := s.Recover(ctx, q)
	if recovered != 1 || len(failed) != 0 {
		t.Errorf("Recover() = %d, failed %v", recovered, failed)
	}
	if !ctx.HasActivity(a.ID, model.ActivityArchery) {
		t.Error("Archery should be recovered for Alpha")
	}
}

func TestGuaranteeMandatory(t *testing.T) {
	a := model.NewTroop("Alpha")
	ctx, s, _ := newSanitizer(a)

	placed, forced := s.GuaranteeMandatory(ctx, NewQueue(0))
	if placed != 2 || forced != 0 {
		t.Errorf("GuaranteeMandatory() = %d placed, %d forced", placed, forced)
	}
	for _, act := range ctx.Catalog.Mandatory() {
		if !ctx.HasActivity(a.ID, act.Name) {
			t.Errorf("%s should be scheduled", act.Name)
		}
	}
	units := ctx.ActivityUnits(a.ID, model.ActivityReflection)
	if len(units) != 1 || units[0].Start.Day != model.Friday {
		t.Error("Reflection should be on Friday")
	}
}

func TestGuaranteeMandatory_ProtectedFriday(t *testing.T) {
	a := model.NewTroop("Alpha")
	ctx, s, rec := newSanitizer(a)

	// 周五被强制单元占满
	for slot := 1; slot <= 3; slot++ {
		if _, ok := ctx.PlaceUnit(a, ctx.Catalog.MustGet(model.ActivityCampsiteFreeTime), model.NewSlot(model.Friday, slot), true); !ok {
			t.Fatal("setup failed")
		}
	}

	_, forced := s.GuaranteeMandatory(ctx, NewQueue(0))
	if forced != 0 {
		t.Errorf("forced = %d, want 0", forced)
	}
	if ctx.HasActivity(a.ID, model.ActivityReflection) {
		t.Error("Reflection cannot be placed over protected units")
	}
	if rec.Count(event.AssignmentForced) != 0 {
		t.Error("no forced event expected")
	}
}

func TestForceInsert(t *testing.T) {
	a := model.NewTroop("Alpha", "Hemp Craft")
	ctx, _, _ := newSanitizer(a)
	rec := event.NewRecorder()

	place(t, ctx, a, "Hemp Craft", model.Friday, 1)
	place(t, ctx, a, "Gaga Ball", model.Friday, 2)
	place(t, ctx, a, "9 Square", model.Friday, 3)

	u, evicted, ok := ForceInsert(ctx, a, ctx.Catalog.MustGet(model.ActivityReflection), rec, "test")
	if !ok {
		t.Fatal("ForceInsert() failed")
	}
	if !u.Forced() || u.Start.Day != model.Friday {
		t.Errorf("forced unit = %+v", u.Start)
	}
	// 挤出排名最差的单元，保留 Hemp Craft
	if len(evicted) != 1 || evicted[0].Activity.Name == "Hemp Craft" {
		t.Errorf("evicted = %v", evicted)
	}
	if rec.Count(event.AssignmentForced) != 1 {
		t.Error("forced event expected")
	}
}

func TestGuaranteeGaps_Sandwich(t *testing.T) {
	a := model.NewTroop("Alpha")
	ctx, s, _ := newSanitizer(a)
	place(t, ctx, a, "Sauna", model.Monday, 1)
	place(t, ctx, a, "Troop Swim", model.Monday, 3)

	_, forced, evicted := s.GuaranteeGaps(ctx)
	if len(ctx.EmptyCells(a.ID)) != 0 {
		t.Errorf("empty cells left: %v", ctx.EmptyCells(a.ID))
	}
	if evicted != 1 || forced == 0 {
		t.Errorf("evicted = %d, forced = %d", evicted, forced)
	}
	view := make(map[int]*model.Activity)
	for _, slot := range model.SlotsOn(model.Monday) {
		view[slot.Slot] = ctx.ActivityAt(a.ID, slot)
	}
	if builtin.IsWetDryWet(view) {
		t.Error("Monday should not be wet/dry/wet")
	}
}

func TestRun_Idempotent(t *testing.T) {
	a := model.NewTroop("Alpha", "Hemp Craft", model.ActivityArchery, "Troop Swim")
	b := model.NewTroop("Bravo", model.ActivityArchery, "Dr. DNA")
	ctx, s, _ := newSanitizer(a, b)

	place(t, ctx, a, "Hemp Craft", model.Monday, 1)
	place(t, ctx, a, "Gaga Ball", model.Monday, 1)
	place(t, ctx, a, model.ActivityArchery, model.Tuesday, 2)
	place(t, ctx, b, model.ActivityArchery, model.Tuesday, 2)
	place(t, ctx, b, "Dr. DNA", model.Monday, 1)
	place(t, ctx, b, "Dr. DNA", model.Wednesday, 1)

	first, err := s.Run(context.Background(), ctx, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if first.Changes() == 0 {
		t.Fatal("first run should repair something")
	}
	for _, tr := range ctx.Troops {
		if n := len(ctx.EmptyCells(tr.ID)); n != 0 {
			t.Errorf("%s has %d empty cells", tr.Name, n)
		}
	}

	mutations := ctx.Mutations()
	second, err := s.Run(context.Background(), ctx, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if second.Changes() != 0 || ctx.Mutations() != mutations {
		t.Errorf("second run should change nothing, report %+v", second)
	}
}

// 只剩本队 Reflection 所在时段可放 Super Troop，Reflection 移到周五其他时段
func TestShift_OwnReflection(t *testing.T) {
	a := model.NewTroop("Alpha")
	ctx, s, _ := newSanitizer(a)
	reflection := place(t, ctx, a, model.ActivityReflection, model.Friday, 1)
	for _, slot := range model.AllSlots() {
		if slot.Day == model.Friday {
			continue
		}
		if _, ok := ctx.PlaceUnit(a, ctx.Catalog.MustGet(model.ActivityCampsiteFreeTime), slot, true); !ok {
			t.Fatal("setup failed")
		}
	}

	res, ok := Shift(ctx, s.manager, s.ranker, a, ctx.Catalog.MustGet(model.ActivitySuperTroop), constraint.Strict)
	if !ok {
		t.Fatal("Shift() failed")
	}
	if res.Placed.Start != reflection.Start {
		t.Errorf("Super Troop at %s, want %s", res.Placed.Start, reflection.Start)
	}
	if len(res.Relocated) != 1 || len(res.Lost) != 0 {
		t.Fatalf("relocated = %d, lost = %d", len(res.Relocated), len(res.Lost))
	}
	moved := res.Relocated[0]
	if moved.Activity.Name != model.ActivityReflection || moved.Start.Day != model.Friday || moved.Start == reflection.Start {
		t.Errorf("Reflection moved to %s", moved.Start)
	}
}

// 占位的必排单元无处可移时整体回滚
func TestShift_Rollback(t *testing.T) {
	a := model.NewTroop("Alpha")
	b := model.NewTroop("Bravo")
	ctx, s, _ := newSanitizer(a, b)
	occupant := place(t, ctx, b, model.ActivitySuperTroop, model.Monday, 1)
	for _, slot := range model.AllSlots() {
		if slot != occupant.Start {
			if _, ok := ctx.PlaceUnit(b, ctx.Catalog.MustGet(model.ActivityCampsiteFreeTime), slot, true); !ok {
				t.Fatal("setup failed")
			}
		}
	}
	a.DayRequests[model.ActivitySuperTroop] = model.Monday
	mutations := ctx.Mutations()

	if _, ok := Shift(ctx, s.manager, s.ranker, a, ctx.Catalog.MustGet(model.ActivitySuperTroop), constraint.Strict); ok {
		t.Fatal("Shift() should fail when the occupant cannot move")
	}
	if ctx.Unit(occupant.Key()) == nil || ctx.HasActivity(a.ID, model.ActivitySuperTroop) {
		t.Error("store should be rolled back")
	}
	if ctx.Mutations() == mutations {
		t.Error("rollback should go through the store")
	}
}

// 指定日期的必排活动先移开同日的其他队伍，而不是放开指定日期
func TestGuaranteeMandatory_PinnedDay(t *testing.T) {
	z := model.NewTroop("Zulu")
	z.DayRequests[model.ActivitySuperTroop] = model.Wednesday
	troops := []*model.Troop{z, model.NewTroop("Alpha"), model.NewTroop("Bravo"), model.NewTroop("Charlie")}
	ctx, s, rec := newSanitizer(troops...)
	for i, tr := range troops[1:] {
		place(t, ctx, tr, model.ActivitySuperTroop, model.Wednesday, i+1)
		place(t, ctx, tr, model.ActivityReflection, model.Friday, 3)
	}

	placed, forced := s.GuaranteeMandatory(ctx, NewQueue(0))
	if placed != 2 || forced != 0 {
		t.Errorf("GuaranteeMandatory() = %d placed, %d forced", placed, forced)
	}
	units := ctx.ActivityUnits(z.ID, model.ActivitySuperTroop)
	if len(units) != 1 || units[0].Start.Day != model.Wednesday {
		t.Fatalf("Zulu Super Troop = %v, want Wednesday", units)
	}
	for _, tr := range troops[1:] {
		if len(ctx.ActivityUnits(tr.ID, model.ActivitySuperTroop)) != 1 {
			t.Errorf("%s should keep Super Troop", tr.Name)
		}
	}
	if rec.Count(event.AssignmentRelaxed) != 0 {
		t.Error("pinned day should not be relaxed")
	}
}
