package repair

import (
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/optimizer"
)

// Shifted Shift 的结果
type Shifted struct {
	Placed    *constraint.Unit
	Rule      constraint.Type    // 非 Strict 放置时被跳过的规则
	Relocated []*constraint.Unit // 移到新时段的必排单元
	Lost      []*constraint.Unit // 被挤出且未重新安排的非保护单元
}

// Shift 把活动放进被必排单元占用的时段
// 占用的必排单元（包括本队的）只在 Strict、RelaxSoft 下移到别的时段，从不越过其指定日期；
// 同一位置的非保护单元被挤出。任一必排单元无法移走时整体回滚
// 含强制插入的非必排单元的时段不考虑
func Shift(store *constraint.Context, manager *constraint.Manager, ranker *optimizer.Ranker, troop *model.Troop, act *model.Activity, mode constraint.RelaxMode) (*Shifted, bool) {
	for _, c := range ranker.Rank(store, troop, act, model.AllSlots()) {
		blockers := Blockers(store, troop, act, c.Slot)
		if !shiftable(blockers) {
			continue
		}
		if res, ok := shiftInto(store, manager, ranker, troop, act, c.Slot, mode, blockers); ok {
			return res, true
		}
	}
	return nil, false
}

// shiftable 至少有一个必排单元，且没有强制插入的非必排单元
func shiftable(blockers []*constraint.Unit) bool {
	mandatory := false
	for _, b := range blockers {
		if b.Activity.IsMandatory() {
			mandatory = true
			continue
		}
		if b.Forced() {
			return false
		}
	}
	return mandatory
}

func shiftInto(store *constraint.Context, manager *constraint.Manager, ranker *optimizer.Ranker, troop *model.Troop, act *model.Activity, slot model.TimeSlot, mode constraint.RelaxMode, blockers []*constraint.Unit) (*Shifted, bool) {
	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	for _, b := range blockers {
		records := store.RemoveUnit(b.Key())
		undo = append(undo, func() { store.AddUnit(records) })
	}
	if !manager.CanPlace(store, troop, act, slot, mode).Allowed {
		rollback()
		return nil, false
	}
	res := &Shifted{}
	if mode != constraint.Strict {
		res.Rule = manager.CanPlace(store, troop, act, slot, constraint.Strict).Rule
	}
	placed, ok := store.PlaceUnit(troop, act, slot, false)
	if !ok {
		rollback()
		return nil, false
	}
	res.Placed = placed
	undo = append(undo, func() { store.RemoveUnit(placed.Key()) })

	for _, b := range blockers {
		if !b.Activity.IsMandatory() {
			res.Lost = append(res.Lost, b)
			continue
		}
		u, evicted, ok := relocate(store, manager, ranker, b)
		if !ok {
			rollback()
			return nil, false
		}
		evictedRecords := make([][]*model.Assignment, len(evicted))
		for i, e := range evicted {
			evictedRecords[i] = e.Records
		}
		undo = append(undo, func() {
			store.RemoveUnit(u.Key())
			for _, records := range evictedRecords {
				store.AddUnit(records)
			}
		})
		res.Relocated = append(res.Relocated, u)
		res.Lost = append(res.Lost, evicted...)
	}
	return res, true
}

// relocate 把移出的必排单元放到别的合法时段，保留强制标记
// 没有空闲时段时挤出目标位置上的非保护单元
func relocate(store *constraint.Context, manager *constraint.Manager, ranker *optimizer.Ranker, b *constraint.Unit) (*constraint.Unit, []*constraint.Unit, bool) {
	modes := []constraint.RelaxMode{constraint.Strict, constraint.RelaxSoft}
	for _, mode := range modes {
		slot, ok := ranker.Best(store, b.Troop, b.Activity, mode)
		if !ok {
			continue
		}
		if u, ok := store.PlaceUnit(b.Troop, b.Activity, slot, b.Forced()); ok {
			return u, nil, true
		}
	}

	for _, mode := range modes {
		for _, c := range ranker.Rank(store, b.Troop, b.Activity, model.AllSlots()) {
			blockers := Blockers(store, b.Troop, b.Activity, c.Slot)
			if _, ok := evictionCost(blockers); !ok || len(blockers) == 0 {
				continue
			}
			removed := make([][]*model.Assignment, len(blockers))
			for i, e := range blockers {
				removed[i] = store.RemoveUnit(e.Key())
			}
			if manager.CanPlace(store, b.Troop, b.Activity, c.Slot, mode).Allowed {
				if u, ok := store.PlaceUnit(b.Troop, b.Activity, c.Slot, b.Forced()); ok {
					return u, blockers, true
				}
			}
			for _, records := range removed {
				store.AddUnit(records)
			}
		}
	}
	return nil, nil, false
}
