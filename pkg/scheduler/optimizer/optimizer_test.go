package optimizer

import (
	"context"
	"testing"

	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/constraint/builtin"
	"github.com/paiban/campsched/pkg/scheduler/event"
	"github.com/paiban/campsched/pkg/stats"
)

func newStore(troops ...*model.Troop) (*constraint.Context, *constraint.Manager) {
	ctx := constraint.NewContext(model.DefaultCatalog(), troops, constraint.DefaultLimits())
	return ctx, builtin.NewDefaultManager(ctx.Limits)
}

func place(t *testing.T, ctx *constraint.Context, troop *model.Troop, name string, day model.Day, slot int) {
	t.Helper()
	if _, ok := ctx.PlaceUnit(troop, ctx.Catalog.MustGet(name), model.NewSlot(day, slot), false); !ok {
		t.Fatalf("PlaceUnit(%s) failed", name)
	}
}

func TestWeights(t *testing.T) {
	w := DefaultWeights()
	values := map[Term]float64{TermAreaDay: 1, TermFridayPenalty: 1}
	if got := w.Sum(values); got != w[TermAreaDay]+w[TermFridayPenalty] {
		t.Errorf("Sum() = %v", got)
	}

	merged := w.Merge(map[string]float64{"area_day": 10})
	if merged[TermAreaDay] != 10 {
		t.Errorf("Merge() area_day = %v, want 10", merged[TermAreaDay])
	}
	if w[TermAreaDay] == 10 {
		t.Error("Merge() must not modify the receiver")
	}
}

func TestComputePrimaryDays(t *testing.T) {
	tests := []struct {
		name   string
		troops func() []*model.Troop
		area   string
		want   []model.Day
	}{
		{
			name: "无专员时取第一个完整日",
			troops: func() []*model.Troop {
				return []*model.Troop{model.NewTroop("Alpha", "Hemp Craft")}
			},
			area: "Handicrafts",
			want: []model.Day{model.Monday},
		},
		{
			name: "专员日优先",
			troops: func() []*model.Troop {
				a := model.NewTroop("Alpha", model.ActivityArchery)
				a.Commissioner = "Tecumseh" // 射箭日为周三
				return []*model.Troop{a}
			},
			area: "Archery",
			want: []model.Day{model.Wednesday},
		},
		{
			name: "需求超过一天容量",
			troops: func() []*model.Troop {
				var troops []*model.Troop
				for _, n := range []string{"A", "B", "C", "D"} {
					troops = append(troops, model.NewTroop(n, "Dr. DNA"))
				}
				return troops
			},
			area: "Nature Center",
			want: []model.Day{model.Monday, model.Tuesday},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newStore(tt.troops()...)
			got := ComputePrimaryDays(ctx)[tt.area]
			if len(got) != len(tt.want) {
				t.Fatalf("PrimaryDays[%s] = %v, want %v", tt.area, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("PrimaryDays[%s] = %v, want %v", tt.area, got, tt.want)
				}
			}
		})
	}
}

func TestRanker_Best(t *testing.T) {
	t.Run("专员日得分最高", func(t *testing.T) {
		a := model.NewTroop("Alpha", model.ActivityArchery)
		a.Commissioner = "Tecumseh"
		ctx, m := newStore(a)
		r := NewRanker(m, nil)
		r.SetPrimaryDays(ComputePrimaryDays(ctx))

		best, ok := r.Best(ctx, a, ctx.Catalog.MustGet(model.ActivityArchery), constraint.Strict)
		if !ok {
			t.Fatal("Best() found no slot")
		}
		if best != model.NewSlot(model.Wednesday, 1) {
			t.Errorf("Best() = %s, want Wed-1", best)
		}
	})

	t.Run("射箭避开周五", func(t *testing.T) {
		a := model.NewTroop("Alpha")
		ctx, m := newStore(a)
		r := NewRanker(m, nil)
		archery := ctx.Catalog.MustGet(model.ActivityArchery)
		fri := r.Score(ctx, a, archery, model.NewSlot(model.Friday, 1))
		mon := r.Score(ctx, a, archery, model.NewSlot(model.Monday, 1))
		if fri.Score >= mon.Score {
			t.Errorf("Friday score %v should be below Monday score %v", fri.Score, mon.Score)
		}
		if fri.Terms[TermFridayPenalty] != 1 {
			t.Error("Friday penalty term should be set")
		}
	})

	t.Run("区域聚集与填补空档", func(t *testing.T) {
		a := model.NewTroop("Alpha")
		b := model.NewTroop("Bravo")
		c := model.NewTroop("Charlie")
		ctx, m := newStore(a, b, c)
		place(t, ctx, a, "Chopped!", model.Tuesday, 1)
		place(t, ctx, b, "Orienteering", model.Tuesday, 3)

		r := NewRanker(m, nil)
		best, ok := r.Best(ctx, c, ctx.Catalog.MustGet("Knots and Lashings"), constraint.Strict)
		if !ok || best != model.NewSlot(model.Tuesday, 2) {
			t.Errorf("Best() = %s, want Tue-2", best)
		}
	})

	t.Run("无合法时段", func(t *testing.T) {
		a := model.NewTroop("Alpha")
		ctx, m := newStore(a)
		place(t, ctx, a, "Hemp Craft", model.Monday, 1)
		r := NewRanker(m, nil)
		if _, ok := r.Best(ctx, a, ctx.Catalog.MustGet("Hemp Craft"), constraint.Strict); ok {
			t.Error("duplicate activity should have no legal slot")
		}
	})
}

func TestTabuList(t *testing.T) {
	tl := NewTabuList(2)
	tl.Add(1)
	tl.Add(2)
	tl.Add(2)
	if tl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tl.Len())
	}
	tl.Add(3)
	if tl.Contains(1) {
		t.Error("oldest key should be evicted")
	}
	if !tl.Contains(2) || !tl.Contains(3) {
		t.Error("newer keys should be kept")
	}
	tl.Clear()
	if tl.Len() != 0 || tl.Contains(3) {
		t.Error("Clear() should empty the list")
	}
}

func TestSwapSearch_Optimize(t *testing.T) {
	a := model.NewTroop("Alpha")
	b := model.NewTroop("Bravo")
	ctx, m := newStore(a, b)

	place(t, ctx, a, model.ActivityArchery, model.Monday, 1)
	place(t, ctx, a, "Hemp Craft", model.Wednesday, 1)
	place(t, ctx, b, model.ActivityArchery, model.Wednesday, 2)

	rec := event.NewRecorder()
	s := NewSwapSearch(nil, m)
	s.SetSink(rec)

	result, err := s.Optimize(context.Background(), ctx)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if result.ExcessBefore != 1 || result.ExcessAfter != 0 {
		t.Errorf("excess %d -> %d, want 1 -> 0", result.ExcessBefore, result.ExcessAfter)
	}
	if result.Accepted == 0 || rec.Count(event.RepairAction) != result.Accepted {
		t.Errorf("Accepted = %d, events = %d", result.Accepted, rec.Count(event.RepairAction))
	}
	if got := stats.AnalyzeArea(ctx, "Archery").Excess; got != 0 {
		t.Errorf("Archery excess = %d, want 0", got)
	}
	if res := m.Evaluate(ctx); len(res.HardViolations) != 0 {
		t.Errorf("optimizer produced hard violations: %+v", res.HardViolations)
	}
	// 第二轮没有可接受的互换
	if result.Iterations > 2 {
		t.Errorf("Iterations = %d, want at most 2", result.Iterations)
	}
}

func TestSwapSearch_Cancelled(t *testing.T) {
	ctx, m := newStore(model.NewTroop("Alpha"))
	cctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSwapSearch(nil, m).Optimize(cctx, ctx); err == nil {
		t.Error("cancelled context should return an error")
	}
}
