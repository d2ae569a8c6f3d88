package solver

import (
	"sort"

	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/event"
	"github.com/paiban/campsched/pkg/scheduler/optimizer"
	"github.com/paiban/campsched/pkg/scheduler/repair"
)

// tally 统计放宽与强制事件后转发
type tally struct {
	next    event.Sink
	relaxed int
	forced  int
	troops  map[string]bool
}

func newTally(next event.Sink) *tally {
	if next == nil {
		next = event.Discard{}
	}
	return &tally{next: next, troops: make(map[string]bool)}
}

// Emit 实现 event.Sink
func (t *tally) Emit(e event.Event) {
	switch e.Kind {
	case event.AssignmentRelaxed:
		t.relaxed++
	case event.AssignmentForced:
		t.forced++
		t.troops[e.Troop] = true
	}
	t.next.Emit(e)
}

func (t *tally) forcedTroops() []string {
	names := make([]string, 0, len(t.troops))
	for name := range t.troops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// placer 单个请求的放置策略
// direct: 评分最高的合法时段
// displace: 挤出排名更差的非保护单元后放置，被挤出单元立即重新安排
type placer struct {
	manager *constraint.Manager
	ranker  *optimizer.Ranker
	sink    event.Sink
	queue   *repair.Queue
	logger  *logger.SchedulerLogger
	stats   *Statistics
	phase   string
}

// direct 在 mode 下放到评分最高的合法时段
func (p *placer) direct(store *constraint.Context, t *model.Troop, act *model.Activity, mode constraint.RelaxMode) bool {
	slot, ok := p.ranker.Best(store, t, act, mode)
	if !ok {
		return false
	}
	return p.commit(store, t, act, slot, mode) != nil
}

// spread 固定日期的活动放到当天该活动实例最少的合法时段，同数时按评分
func (p *placer) spread(store *constraint.Context, t *model.Troop, act *model.Activity) bool {
	candidates := p.ranker.Candidates(store, t, act, constraint.Strict)
	if len(candidates) == 0 {
		return false
	}
	load := make(map[model.TimeSlot]int, len(candidates))
	for _, c := range candidates {
		for _, r := range store.Occupants(c.Slot) {
			if r.Activity.Name == act.Name {
				load[c.Slot]++
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return load[candidates[i].Slot] < load[candidates[j].Slot]
	})
	return p.commit(store, t, act, candidates[0].Slot, constraint.Strict) != nil
}

// escalate 依次以给定的放宽级别直接放置
func (p *placer) escalate(store *constraint.Context, t *model.Troop, act *model.Activity, modes ...constraint.RelaxMode) bool {
	for _, mode := range modes {
		if p.direct(store, t, act, mode) {
			return true
		}
	}
	return false
}

// commit 放置单元并发出事件
func (p *placer) commit(store *constraint.Context, t *model.Troop, act *model.Activity, slot model.TimeSlot, mode constraint.RelaxMode) *constraint.Unit {
	rule := p.bypassed(store, t, act, slot, mode)
	u, ok := store.PlaceUnit(t, act, slot, false)
	if !ok {
		return nil
	}
	p.announce(u, mode, rule)
	return u
}

// bypassed 非 Strict 放置时被跳过的规则，须在放置前计算
func (p *placer) bypassed(store *constraint.Context, t *model.Troop, act *model.Activity, slot model.TimeSlot, mode constraint.RelaxMode) constraint.Type {
	if mode == constraint.Strict {
		return ""
	}
	return p.manager.CanPlace(store, t, act, slot, constraint.Strict).Rule
}

func (p *placer) announce(u *constraint.Unit, mode constraint.RelaxMode, rule constraint.Type) {
	p.stats.Committed++
	e := event.Event{
		Kind:     event.AssignmentCommitted,
		Phase:    p.phase,
		Troop:    u.Troop.Name,
		Activity: u.Activity.Name,
		Slot:     u.Start.String(),
		Mode:     mode.String(),
	}
	if rule == "" {
		p.logger.Placement(e.Troop, e.Activity, e.Slot, e.Mode)
		p.sink.Emit(e)
		return
	}
	e.Kind = event.AssignmentRelaxed
	e.Rule = string(rule)
	p.logger.Relaxed(e.Troop, e.Activity, e.Slot, e.Rule)
	p.sink.Emit(e)
}

// displaceable 阻碍单元均非保护且排名严格差于 rank
func displaceable(blockers []*constraint.Unit, rank int) bool {
	if len(blockers) == 0 {
		return false
	}
	for _, b := range blockers {
		if repair.IsProtected(b) || b.Rank() <= rank {
			return false
		}
	}
	return true
}

// displace 挤出阻碍单元后放置请求
// lossy 为 false 时被挤出的单元必须全部重新安排，否则整体回滚；
// lossy 为 true 时无法重新安排的单元进入恢复队列并计为未满足
func (p *placer) displace(store *constraint.Context, t *model.Troop, act *model.Activity, rank int, mode constraint.RelaxMode, lossy bool) bool {
	for _, c := range p.ranker.Rank(store, t, act, model.AllSlots()) {
		blockers := repair.Blockers(store, t, act, c.Slot)
		if !displaceable(blockers, rank) {
			continue
		}

		removed := make([][]*model.Assignment, len(blockers))
		for i, b := range blockers {
			removed[i] = store.RemoveUnit(b.Key())
		}
		restore := func() {
			for _, records := range removed {
				store.AddUnit(records)
			}
		}

		if !p.manager.CanPlace(store, t, act, c.Slot, mode).Allowed {
			restore()
			continue
		}
		rule := p.bypassed(store, t, act, c.Slot, mode)
		placed, ok := store.PlaceUnit(t, act, c.Slot, false)
		if !ok {
			restore()
			continue
		}

		var relocated []*constraint.Unit
		var lost []*constraint.Unit
		for _, b := range blockers {
			slot, ok := p.ranker.Best(store, b.Troop, b.Activity, mode)
			if ok {
				if u, ok := store.PlaceUnit(b.Troop, b.Activity, slot, false); ok {
					relocated = append(relocated, u)
					continue
				}
			}
			lost = append(lost, b)
		}

		if len(lost) > 0 && !lossy {
			for _, u := range relocated {
				store.RemoveUnit(u.Key())
			}
			store.RemoveUnit(placed.Key())
			restore()
			continue
		}

		p.announce(placed, mode, rule)

		for _, u := range relocated {
			p.stats.Displaced++
			p.sink.Emit(event.Event{
				Kind:     event.RepairAction,
				Phase:    p.phase,
				Action:   "relocate",
				Troop:    u.Troop.Name,
				Activity: u.Activity.Name,
				Slot:     u.Start.String(),
			})
		}
		p.lose(lost, "displaced")
		return true
	}
	return false
}

// request 依次尝试直接放置、无损挤出、有损挤出
func (p *placer) request(store *constraint.Context, t *model.Troop, act *model.Activity, rank int, mode constraint.RelaxMode) bool {
	return p.direct(store, t, act, mode) ||
		p.displace(store, t, act, rank, mode, false) ||
		p.displace(store, t, act, rank, mode, true)
}

// shift 把必排活动放进其他必排单元占用的时段，占用者移到别处
func (p *placer) shift(store *constraint.Context, t *model.Troop, act *model.Activity, mode constraint.RelaxMode) bool {
	res, ok := repair.Shift(store, p.manager, p.ranker, t, act, mode)
	if !ok {
		return false
	}
	p.announce(res.Placed, mode, res.Rule)
	for _, u := range res.Relocated {
		p.stats.Displaced++
		p.sink.Emit(event.Event{
			Kind:     event.RepairAction,
			Phase:    p.phase,
			Action:   "relocate",
			Troop:    u.Troop.Name,
			Activity: u.Activity.Name,
			Slot:     u.Start.String(),
		})
	}
	p.lose(res.Lost, "displaced")
	return true
}

// lose 被挤出且未重新安排的单元进入恢复队列
func (p *placer) lose(units []*constraint.Unit, reason string) {
	for _, b := range units {
		p.stats.Lost++
		if p.queue != nil {
			p.queue.Push(repair.Item{Troop: b.Troop, Activity: b.Activity, Reason: reason})
		}
		p.sink.Emit(event.Event{
			Kind:     event.AssignmentDenied,
			Phase:    p.phase,
			Troop:    b.Troop.Name,
			Activity: b.Activity.Name,
			Slot:     b.Start.String(),
			Reason:   reason,
		})
	}
}

// mandatory 必排活动逐级升级，最终强制插入
// 先在 Strict、RelaxSoft 下用尽直接放置、挤出与移位，之后才放开指定日期
func (p *placer) mandatory(store *constraint.Context, t *model.Troop, act *model.Activity) bool {
	for _, mode := range []constraint.RelaxMode{constraint.Strict, constraint.RelaxSoft, constraint.IgnoreDayPin} {
		if p.request(store, t, act, -1, mode) || p.shift(store, t, act, mode) {
			return true
		}
	}
	u, evicted, ok := repair.ForceInsert(store, t, act, p.sink, p.phase)
	if !ok {
		p.sink.Emit(event.Event{
			Kind:     event.AssignmentDenied,
			Phase:    p.phase,
			Troop:    t.Name,
			Activity: act.Name,
			Reason:   p.reason(store, t, act),
		})
		return false
	}
	p.logger.Forced(t.Name, act.Name, u.Start.String(), p.phase)
	for _, b := range evicted {
		p.stats.Lost++
		if p.queue != nil {
			p.queue.Push(repair.Item{Troop: b.Troop, Activity: b.Activity, Reason: "forced"})
		}
	}
	return true
}

// reason 按评分从高到低，第一个在 Strict 下被拒绝的开始时段的拒绝原因
func (p *placer) reason(store *constraint.Context, t *model.Troop, act *model.Activity) string {
	for _, c := range p.ranker.Rank(store, t, act, model.AllSlots()) {
		if out := p.manager.CanPlace(store, t, act, c.Slot, constraint.Strict); !out.Allowed {
			return string(out.Reason)
		}
	}
	return string(constraint.ReasonSlotOccupied)
}
