// Package repair 提供排班结果的修复与清理
// 各修复步骤确定且幂等：对已修复的排班再次运行不会产生任何修改
package repair

import (
	"context"
	"sort"

	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/event"
	"github.com/paiban/campsched/pkg/scheduler/optimizer"
	"github.com/paiban/campsched/pkg/stats"
)

// 修复步骤名称
const (
	PassDedupe    = "dedupe"
	PassOverlap   = "overlap"
	PassRecover   = "recover"
	PassMandatory = "mandatory"
	PassGaps      = "gaps"
)

// Report 修复报告
type Report struct {
	Deduplicated    int      `json:"deduplicated"`
	OverlapsRemoved int      `json:"overlaps_removed"`
	Recovered       int      `json:"recovered"`
	RecoveryFailed  []string `json:"recovery_failed,omitempty"`
	MandatoryPlaced int      `json:"mandatory_placed"`
	MandatoryForced int      `json:"mandatory_forced"`
	GapsFilled      int      `json:"gaps_filled"`
	GapsForced      int      `json:"gaps_forced"`
	Evicted         int      `json:"evicted"`
	QueueDropped    int      `json:"queue_dropped"`
}

// Changes 本次修复的修改总数
func (r *Report) Changes() int {
	return r.Deduplicated + r.OverlapsRemoved + r.Recovered + r.MandatoryPlaced +
		r.MandatoryForced + r.GapsFilled + r.GapsForced + r.Evicted
}

// Sanitizer 排班修复器
type Sanitizer struct {
	manager *constraint.Manager
	ranker  *optimizer.Ranker
	sink    event.Sink
	logger  *logger.SchedulerLogger
}

// NewSanitizer 创建修复器
func NewSanitizer(manager *constraint.Manager, ranker *optimizer.Ranker) *Sanitizer {
	if ranker == nil {
		ranker = optimizer.NewRanker(manager, nil)
	}
	return &Sanitizer{
		manager: manager,
		ranker:  ranker,
		sink:    event.Discard{},
		logger:  logger.NewSchedulerLogger(),
	}
}

// SetSink 设置事件接收者
func (s *Sanitizer) SetSink(sink event.Sink) {
	if sink == nil {
		sink = event.Discard{}
	}
	s.sink = sink
}

// Run 依次执行去重、解决重叠、恢复、必排保证和空档保证
func (s *Sanitizer) Run(ctx context.Context, store *constraint.Context, queue *Queue) (*Report, error) {
	if queue == nil {
		queue = NewQueue(0)
	}
	report := &Report{}

	passes := []func(){
		func() { report.Deduplicated = s.Deduplicate(store, queue) },
		func() { report.OverlapsRemoved = s.ResolveOverlaps(store, queue) },
		func() { report.Recovered, report.RecoveryFailed = s.Recover(store, queue) },
		func() { report.MandatoryPlaced, report.MandatoryForced = s.GuaranteeMandatory(store, queue) },
		func() { report.GapsFilled, report.GapsForced, report.Evicted = s.GuaranteeGaps(store) },
	}
	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		pass()
	}
	report.QueueDropped = queue.Dropped()

	s.logger.Base().Info().
		Int("deduplicated", report.Deduplicated).
		Int("overlaps_removed", report.OverlapsRemoved).
		Int("recovered", report.Recovered).
		Int("recovery_failed", len(report.RecoveryFailed)).
		Int("mandatory_forced", report.MandatoryForced).
		Int("gaps_forced", report.GapsForced).
		Msg("修复完成")
	return report, nil
}

// Deduplicate 每个 (队伍, 活动) 只保留最早的完整单元，残缺或多余的单元被移除
// 填充类活动允许重复，只移除残缺单元
func (s *Sanitizer) Deduplicate(store *constraint.Context, queue *Queue) int {
	removed := 0
	for _, t := range store.Troops {
		kept := make(map[string]bool)
		var lost []*constraint.Unit
		for _, u := range store.TroopUnits(t.ID) {
			filler := u.Activity.HasTag(model.TagFiller)
			if IsCoherent(u) && (filler || !kept[u.Activity.Name]) {
				kept[u.Activity.Name] = true
				continue
			}
			s.remove(store, PassDedupe, u)
			lost = append(lost, u)
			removed++
		}
		// 只有残缺单元的活动整体丢失，重新排队
		for _, u := range lost {
			if !kept[u.Activity.Name] {
				s.requeue(queue, u, PassDedupe)
			}
		}
	}
	return removed
}

// ResolveOverlaps 解决队伍时段重叠与区域超容
// 保留顺序：受保护单元，其后按排名从好到差，同排名时非填充活动优先
// 被移除的前10偏好单元进入恢复队列
func (s *Sanitizer) ResolveOverlaps(store *constraint.Context, queue *Queue) int {
	removed := 0

	// 队伍时段重叠
	for _, t := range store.Troops {
		for _, slot := range model.AllSlots() {
			records := store.At(t.ID, slot)
			if len(records) <= 1 {
				continue
			}
			units := unitsOf(store, records)
			sortKeepOrder(units)
			for _, u := range units[1:] {
				if s.evict(store, queue, PassOverlap, u) {
					removed++
				}
			}
		}
	}

	// 区域超容
	for _, area := range store.Catalog.Areas() {
		capacity := store.Catalog.CapacityOf(area)
		for _, slot := range model.AllSlots() {
			if store.AreaInstances(area, slot) <= capacity {
				continue
			}
			var records []*model.Assignment
			for _, r := range store.Occupants(slot) {
				if r.Activity.Area == area {
					records = append(records, r)
				}
			}
			units := unitsOf(store, records)
			sortKeepOrder(units)
			for i := len(units) - 1; i >= 0 && store.AreaInstances(area, slot) > capacity; i-- {
				if s.evict(store, queue, PassOverlap, units[i]) {
					removed++
				}
			}
		}
	}
	return removed
}

// Recover 依次以 Strict、RelaxSoft、IgnoreDayPin 在任意时段重新安排队列中的请求
func (s *Sanitizer) Recover(store *constraint.Context, queue *Queue) (int, []string) {
	recovered := 0
	var failed []string
	for _, item := range queue.Drain() {
		if store.HasActivity(item.Troop.ID, item.Activity.Name) {
			continue
		}
		if _, ok := s.placeEscalating(store, PassRecover, item.Troop, item.Activity, recoverModes...); ok {
			recovered++
			continue
		}
		failed = append(failed, item.Troop.Name+": "+item.Activity.Name)
		s.sink.Emit(event.Event{
			Kind:     event.AssignmentDenied,
			Phase:    PassRecover,
			Troop:    item.Troop.Name,
			Activity: item.Activity.Name,
			Reason:   item.Reason,
		})
	}
	return recovered, failed
}

// GuaranteeMandatory 保证每支队伍都有全部必排活动
// 每个放宽级别依次尝试：空闲时段、挤出本队排名最差的非保护单元、移开占位的必排单元；
// 指定日期只在 Strict、RelaxSoft 都失败后才放开，最后强制插入
func (s *Sanitizer) GuaranteeMandatory(store *constraint.Context, queue *Queue) (placed, forced int) {
	for _, t := range store.Troops {
		for _, act := range store.Catalog.Mandatory() {
			if store.HasActivity(t.ID, act.Name) {
				continue
			}
			if s.mandatory(store, queue, t, act) {
				placed++
				continue
			}
			if _, evicted, ok := ForceInsert(store, t, act, s.sink, PassMandatory); ok {
				forced++
				for _, u := range evicted {
					s.requeue(queue, u, PassMandatory)
				}
				s.logger.Forced(t.Name, act.Name, "", PassMandatory)
			}
		}
	}
	return placed, forced
}

func (s *Sanitizer) mandatory(store *constraint.Context, queue *Queue, t *model.Troop, act *model.Activity) bool {
	for _, mode := range []constraint.RelaxMode{constraint.Strict, constraint.RelaxSoft, constraint.IgnoreDayPin} {
		if _, ok := s.placeEscalating(store, PassMandatory, t, act, mode); ok {
			return true
		}
		if s.displaceOwn(store, queue, t, act, mode) {
			return true
		}
		if s.shift(store, queue, t, act, mode) {
			return true
		}
	}
	return false
}

// shift 移开占位的必排单元后放置，被挤出的非保护单元重新排队
func (s *Sanitizer) shift(store *constraint.Context, queue *Queue, t *model.Troop, act *model.Activity, mode constraint.RelaxMode) bool {
	res, ok := Shift(store, s.manager, s.ranker, t, act, mode)
	if !ok {
		return false
	}
	s.emit(PassMandatory, "place", t, act, res.Placed.Start)
	for _, u := range res.Relocated {
		s.emit(PassMandatory, "relocate", u.Troop, u.Activity, u.Start)
	}
	for _, u := range res.Lost {
		s.emit(PassMandatory, "displace", u.Troop, u.Activity, u.Start)
		s.requeue(queue, u, PassMandatory)
	}
	return true
}

// GuaranteeGaps 填满所有空闲时段
// 依次尝试：本队未安排的偏好、填充列表（RelaxSoft）、强制插入中性填充活动
// 中性填充会形成湿/干/湿时，先挤出排名较差的非保护湿活动邻居
func (s *Sanitizer) GuaranteeGaps(store *constraint.Context) (filled, forced, evicted int) {
	filler, ok := store.Catalog.Get(store.Catalog.NeutralFiller)
	if !ok {
		return
	}
	bound := len(store.Troops) * model.TotalSlots()
	for iter := 0; iter < bound; iter++ {
		progress := false
		for _, t := range store.Troops {
			for _, slot := range store.EmptyCells(t.ID) {
				if !store.IsFree(t.ID, slot) {
					continue
				}
				if s.fillCell(store, t, slot) {
					filled++
					progress = true
					continue
				}
				evicted += s.clearSandwich(store, t, filler, slot)
				if _, ok := store.PlaceUnit(t, filler, slot, true); ok {
					forced++
					progress = true
					s.sink.Emit(event.Event{
						Kind:     event.AssignmentForced,
						Phase:    PassGaps,
						Troop:    t.Name,
						Activity: filler.Name,
						Slot:     slot.String(),
						Reason:   "gap",
					})
				}
			}
		}
		if !progress {
			break
		}
	}
	return
}

// fillCell 以本队偏好或填充列表中的第一个合法活动填充空闲时段
func (s *Sanitizer) fillCell(store *constraint.Context, t *model.Troop, slot model.TimeSlot) bool {
	try := func(act *model.Activity, modes ...constraint.RelaxMode) bool {
		for _, mode := range modes {
			if !s.manager.CanPlace(store, t, act, slot, mode).Allowed {
				continue
			}
			if _, ok := store.PlaceUnit(t, act, slot, false); ok {
				s.emit(PassGaps, "fill", t, act, slot)
				return true
			}
		}
		return false
	}

	for _, name := range t.Preferences {
		act, ok := store.Catalog.Get(name)
		if !ok || store.HasActivity(t.ID, name) {
			continue
		}
		if try(act, constraint.Strict, constraint.RelaxSoft) {
			return true
		}
	}
	for _, name := range store.Catalog.FillPriority {
		act, ok := store.Catalog.Get(name)
		if !ok {
			continue
		}
		if try(act, constraint.Strict, constraint.RelaxSoft) {
			return true
		}
	}
	return false
}

// clearSandwich 干活动放入中间时段会形成湿/干/湿时，挤出排名较差的非保护湿邻居
func (s *Sanitizer) clearSandwich(store *constraint.Context, t *model.Troop, act *model.Activity, slot model.TimeSlot) int {
	if act.IsWet() || slot.Day.SlotCount() != 3 || slot.Slot != 2 {
		return 0
	}
	prev, _ := slot.Prev()
	next, _ := slot.Next()
	before := store.ActivityAt(t.ID, prev)
	after := store.ActivityAt(t.ID, next)
	if before == nil || after == nil || !before.IsWet() || !after.IsWet() {
		return 0
	}

	var candidates []*constraint.Unit
	for _, s := range []model.TimeSlot{prev, next} {
		for _, u := range unitsOf(store, store.At(t.ID, s)) {
			if !IsProtected(u) {
				candidates = append(candidates, u)
			}
		}
	}
	if len(candidates) == 0 {
		return 0
	}
	sortKeepOrder(candidates)
	s.remove(store, PassGaps, candidates[len(candidates)-1])
	return 1
}

// recoverModes 恢复队列依次使用的放宽级别
var recoverModes = []constraint.RelaxMode{constraint.Strict, constraint.RelaxSoft, constraint.IgnoreDayPin}

// placeEscalating 依次以 modes 安排到评分最高的合法时段
func (s *Sanitizer) placeEscalating(store *constraint.Context, pass string, t *model.Troop, act *model.Activity, modes ...constraint.RelaxMode) (*constraint.Unit, bool) {
	for _, mode := range modes {
		slot, ok := s.ranker.Best(store, t, act, mode)
		if !ok {
			continue
		}
		// 放置前记录被跳过的规则
		rule := s.manager.CanPlace(store, t, act, slot, constraint.Strict).Rule
		u, ok := store.PlaceUnit(t, act, slot, false)
		if !ok {
			continue
		}
		if mode == constraint.Strict {
			s.emit(pass, "place", t, act, slot)
		} else {
			s.logger.Relaxed(t.Name, act.Name, slot.String(), string(rule))
			s.sink.Emit(event.Event{
				Kind:     event.AssignmentRelaxed,
				Phase:    pass,
				Troop:    t.Name,
				Activity: act.Name,
				Slot:     slot.String(),
				Mode:     mode.String(),
				Rule:     string(rule),
			})
		}
		return u, true
	}
	return nil, false
}

// displaceOwn 挤出本队排名最差的非保护单元后以 mode 重新尝试
func (s *Sanitizer) displaceOwn(store *constraint.Context, queue *Queue, t *model.Troop, act *model.Activity, mode constraint.RelaxMode) bool {
	units := store.TroopUnits(t.ID)
	sortKeepOrder(units)
	for i := len(units) - 1; i >= 0; i-- {
		u := units[i]
		if IsProtected(u) {
			continue
		}
		records := store.RemoveUnit(u.Key())
		if _, ok := s.placeEscalating(store, PassMandatory, t, act, mode); ok {
			s.emit(PassMandatory, "displace", u.Troop, u.Activity, u.Start)
			s.requeue(queue, u, PassMandatory)
			return true
		}
		store.AddUnit(records)
	}
	return false
}

// evict 移除单元，前10偏好进入恢复队列
func (s *Sanitizer) evict(store *constraint.Context, queue *Queue, pass string, u *constraint.Unit) bool {
	if !s.remove(store, pass, u) {
		return false
	}
	s.requeue(queue, u, pass)
	return true
}

func (s *Sanitizer) requeue(queue *Queue, u *constraint.Unit, reason string) {
	if queue != nil && u.Rank() < stats.Top10 {
		queue.Push(Item{Troop: u.Troop, Activity: u.Activity, Reason: reason})
	}
}

func (s *Sanitizer) remove(store *constraint.Context, pass string, u *constraint.Unit) bool {
	if store.RemoveUnit(u.Key()) == nil {
		return false
	}
	s.emit(pass, "remove", u.Troop, u.Activity, u.Start)
	return true
}

func (s *Sanitizer) emit(pass, action string, t *model.Troop, act *model.Activity, slot model.TimeSlot) {
	s.sink.Emit(event.Event{
		Kind:     event.RepairAction,
		Phase:    pass,
		Action:   action,
		Troop:    t.Name,
		Activity: act.Name,
		Slot:     slot.String(),
	})
}

// unitsOf 返回记录所属的单元（去重）
func unitsOf(store *constraint.Context, records []*model.Assignment) []*constraint.Unit {
	seen := make(map[model.UnitKey]bool)
	var result []*constraint.Unit
	for _, r := range records {
		key := r.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		if u := store.Unit(key); u != nil {
			result = append(result, u)
		}
	}
	return result
}

// sortKeepOrder 按保留优先级排序：受保护在前，排名好的在前，同排名非填充在前
func sortKeepOrder(units []*constraint.Unit) {
	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if pa, pb := IsProtected(a), IsProtected(b); pa != pb {
			return pa
		}
		if a.Rank() != b.Rank() {
			return a.Rank() < b.Rank()
		}
		if fa, fb := a.Activity.HasTag(model.TagFiller), b.Activity.HasTag(model.TagFiller); fa != fb {
			return !fa
		}
		if a.Troop.Name != b.Troop.Name {
			return a.Troop.Name < b.Troop.Name
		}
		return a.Start.Ordinal() < b.Start.Ordinal()
	})
}
