package repair

import (
	"sort"

	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/event"
)

// IsProtected 受保护单元（必排活动或强制插入）不可被挤出
func IsProtected(u *constraint.Unit) bool {
	return u.Activity.IsMandatory() || u.Forced()
}

// IsCoherent 单元记录数等于时长且落在同一天的连续时段
func IsCoherent(u *constraint.Unit) bool {
	slots, ok := model.SpanSlots(u.Start, u.Activity.SlotsFor(u.Troop))
	if !ok || len(slots) != len(u.Records) {
		return false
	}
	for i, r := range u.Records {
		if r.Slot != slots[i] || r.Offset != i {
			return false
		}
	}
	return true
}

// Blockers 返回阻碍 (troop, act, start) 的单元：
// 队伍在跨度内已有的单元、同区域占用者、互斥活动的占用者
// 结果去重并按队伍名称、时段排序
func Blockers(store *constraint.Context, troop *model.Troop, act *model.Activity, start model.TimeSlot) []*constraint.Unit {
	slots, ok := model.SpanSlots(start, act.SlotsFor(troop))
	if !ok {
		return nil
	}
	seen := make(map[model.UnitKey]bool)
	var result []*constraint.Unit
	add := func(r *model.Assignment) {
		key := r.Key()
		if seen[key] {
			return
		}
		if u := store.Unit(key); u != nil {
			seen[key] = true
			result = append(result, u)
		}
	}

	for _, s := range slots {
		for _, r := range store.At(troop.ID, s) {
			add(r)
		}
	}

	full, _ := model.SpanSlots(start, act.FullSlotsFor(troop))
	for _, s := range full {
		for _, r := range store.Occupants(s) {
			if r.Troop.ID == troop.ID {
				continue
			}
			other := r.Activity
			sameArea := act.Area != "" && other.Area == act.Area
			if sameArea && other.Name == act.Name && act.CanShare() {
				continue
			}
			if sameArea || act.ConflictsWith(other.Name) {
				add(r)
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Troop.Name != b.Troop.Name {
			return a.Troop.Name < b.Troop.Name
		}
		return a.Start.Ordinal() < b.Start.Ordinal()
	})
	return result
}

// ForceInsert 绕过校验强制插入单元，返回被挤出的单元记录
// 优先选择无需挤出的时段，其次选择被挤出单元排名最差的时段；受保护单元不会被挤出
func ForceInsert(store *constraint.Context, troop *model.Troop, act *model.Activity, sink event.Sink, reason string) (*constraint.Unit, []*constraint.Unit, bool) {
	if sink == nil {
		sink = event.Discard{}
	}

	candidates := model.AllSlots()
	if act.FixedDay != nil {
		candidates = model.SlotsOn(*act.FixedDay)
	} else if d, ok := troop.PinnedDay(act.Name); ok {
		candidates = append(model.SlotsOn(d), candidates...)
	}

	var (
		bestSlot     model.TimeSlot
		bestBlockers []*constraint.Unit
		bestCost     = -1
	)
	for _, s := range candidates {
		if _, ok := model.SpanSlots(s, act.SlotsFor(troop)); !ok {
			continue
		}
		blockers := Blockers(store, troop, act, s)
		cost, ok := evictionCost(blockers)
		if !ok {
			continue
		}
		if bestCost < 0 || cost < bestCost {
			bestSlot, bestBlockers, bestCost = s, blockers, cost
		}
		if cost == 0 {
			break
		}
	}
	if bestCost < 0 {
		return nil, nil, false
	}

	for _, b := range bestBlockers {
		store.RemoveUnit(b.Key())
		sink.Emit(event.Event{
			Kind:     event.RepairAction,
			Phase:    "force",
			Action:   "evict",
			Troop:    b.Troop.Name,
			Activity: b.Activity.Name,
			Slot:     b.Start.String(),
		})
	}
	u, ok := store.PlaceUnit(troop, act, bestSlot, true)
	if !ok {
		for _, b := range bestBlockers {
			store.AddUnit(b.Records)
		}
		return nil, nil, false
	}
	sink.Emit(event.Event{
		Kind:     event.AssignmentForced,
		Troop:    troop.Name,
		Activity: act.Name,
		Slot:     bestSlot.String(),
		Reason:   reason,
	})
	return u, bestBlockers, true
}

// evictionCost 挤出代价：排名越靠前代价越高；含受保护单元时不可挤出
func evictionCost(blockers []*constraint.Unit) (int, bool) {
	cost := 0
	for _, b := range blockers {
		if IsProtected(b) {
			return 0, false
		}
		rank := b.Rank()
		if rank > 100 {
			rank = 100
		}
		cost += 1 + (100 - rank)
	}
	return cost, true
}
