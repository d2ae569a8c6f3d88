package solver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/event"
	"github.com/paiban/campsched/pkg/scheduler/optimizer"
	"github.com/paiban/campsched/pkg/scheduler/repair"
	"github.com/paiban/campsched/pkg/stats"
)

// 阶段名称
const (
	PhaseFoundation = "foundation"
	PhaseCore       = "core"
	PhaseGuarantee  = "guarantee"
	PhaseFill       = "fill"
	PhasePolish     = "polish"
)

// request 一个待安排的偏好
type request struct {
	troop    *model.Troop
	activity *model.Activity
	rank     int
}

// Pipeline 多阶段贪心求解器：基础、核心请求、保证、补充填充、收尾优化
type Pipeline struct {
	manager *constraint.Manager
	options *Options
	sink    event.Sink
	logger  *logger.SchedulerLogger
}

// NewPipeline 创建多阶段求解器
func NewPipeline(cm *constraint.Manager, options *Options) *Pipeline {
	if options == nil {
		options = DefaultOptions()
	}
	return &Pipeline{
		manager: cm,
		options: options,
		sink:    event.Discard{},
		logger:  logger.NewSchedulerLogger(),
	}
}

// Name 返回求解器名称
func (s *Pipeline) Name() string {
	return "Pipeline"
}

// SetSink 设置事件接收者
func (s *Pipeline) SetSink(sink event.Sink) {
	if sink == nil {
		sink = event.Discard{}
	}
	s.sink = sink
}

// Solve 依次执行各阶段，阶段之间检查取消
func (s *Pipeline) Solve(ctx context.Context, store *constraint.Context) (*Result, error) {
	startTime := time.Now()
	result := &Result{
		Assignments: make([]*model.Assignment, 0),
		Statistics:  &Statistics{},
	}

	tally := newTally(s.sink)
	ranker := optimizer.NewRanker(s.manager, s.options.Weights)
	ranker.SetPrimaryDays(optimizer.ComputePrimaryDays(store))
	queue := repair.NewQueue(s.options.QueueLimit)
	p := &placer{
		manager: s.manager,
		ranker:  ranker,
		sink:    tally,
		queue:   queue,
		logger:  s.logger,
		stats:   result.Statistics,
	}

	phases := []struct {
		name string
		run  func() error
	}{
		{PhaseFoundation, func() error { s.foundation(store, p); return nil }},
		{PhaseCore, func() error { s.core(store, p); return nil }},
		{PhaseGuarantee, func() error { s.guarantee(store, p); return nil }},
		{PhaseFill, func() error { s.fill(store, p); return nil }},
		{PhasePolish, func() error { return s.polish(ctx, store, ranker, tally, queue, result) }},
	}
	for _, phase := range phases {
		if phase.name == PhasePolish && s.options.SkipPolish {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		p.phase = phase.name
		s.logger.PhaseStarted(phase.name)
		tally.Emit(event.Event{Kind: event.PhaseStarted, Phase: phase.name})
		result.Statistics.Phases = append(result.Statistics.Phases, phase.name)
		if err := phase.run(); err != nil {
			return result, err
		}
	}

	result.Assignments = append(result.Assignments, store.Assignments...)
	result.ConstraintResult = s.manager.Evaluate(store)
	result.Success = result.ConstraintResult.IsValid
	result.Duration = time.Since(startTime)

	st := result.Statistics
	st.Relaxed = tally.relaxed
	st.Forced = tally.forced
	st.ForcedTroops = tally.forcedTroops()
	for _, t := range store.Troops {
		for _, name := range t.Preferences {
			st.TotalRequests++
			if store.HasActivity(t.ID, name) {
				st.MetRequests++
			}
		}
	}
	if st.TotalRequests > 0 {
		st.FillRate = float64(st.MetRequests) / float64(st.TotalRequests) * 100
	}

	if !result.Success {
		result.Message = fmt.Sprintf("存在 %d 个硬约束违反", len(result.ConstraintResult.HardViolations))
	} else {
		result.Message = fmt.Sprintf("排班成功，偏好满足率 %.1f%%", st.FillRate)
	}
	return result, nil
}

// foundation 必排活动、指定日期、Delta 与多时段偏好
// 指定日期的必排活动最先安排；容量受限的 Super Troop 先于不限容量的 Reflection
func (s *Pipeline) foundation(store *constraint.Context, p *placer) {
	for _, t := range store.Troops {
		for _, r := range pinnedRequests(store, t) {
			if r.activity.IsMandatory() && !store.HasActivity(t.ID, r.activity.Name) {
				p.mandatory(store, t, r.activity)
			}
		}
	}

	for _, name := range []string{model.ActivitySuperTroop, model.ActivityReflection} {
		act, ok := store.Catalog.Get(name)
		if !ok {
			continue
		}
		for _, t := range store.Troops {
			if store.HasActivity(t.ID, name) {
				continue
			}
			if act.FixedDay != nil && p.spread(store, t, act) {
				continue
			}
			p.mandatory(store, t, act)
		}
	}

	// 指定日期的非必排请求
	for _, t := range store.Troops {
		for _, r := range pinnedRequests(store, t) {
			if r.activity.IsMandatory() || store.HasActivity(t.ID, r.activity.Name) {
				continue
			}
			if !p.escalate(store, t, r.activity, constraint.Strict, constraint.RelaxSoft) {
				p.displace(store, t, r.activity, r.rank, constraint.Strict, false)
			}
		}
	}

	// Delta 安排在专员日
	if delta, ok := store.Catalog.Get(model.ActivityDelta); ok {
		for _, t := range store.Troops {
			if t.Wants(delta.Name) && !store.HasActivity(t.ID, delta.Name) {
				p.escalate(store, t, delta, constraint.Strict, constraint.RelaxSoft)
			}
		}
	}

	// 多时段偏好：三时段优先，其后 1.5 及以上
	var three, multi []request
	for _, r := range s.requests(store, 0, s.options.CoreRanks) {
		switch span := r.activity.SpanFor(r.troop); {
		case span >= 3:
			three = append(three, r)
		case span >= 1.5:
			multi = append(multi, r)
		}
	}
	for _, batch := range [][]request{three, multi} {
		sort.SliceStable(batch, func(i, j int) bool {
			a, b := batch[i], batch[j]
			if a.rank != b.rank {
				return a.rank < b.rank
			}
			if a.troop.Headcount() != b.troop.Headcount() {
				return a.troop.Headcount() > b.troop.Headcount()
			}
			return a.troop.Name < b.troop.Name
		})
		for _, r := range batch {
			if store.HasActivity(r.troop.ID, r.activity.Name) {
				continue
			}
			if !p.direct(store, r.troop, r.activity, constraint.Strict) {
				p.displace(store, r.troop, r.activity, r.rank, constraint.Strict, false)
			}
		}
	}
}

// core 按排名分批处理前 CoreRanks 个偏好，批内按稀缺度、人数、队名排序
func (s *Pipeline) core(store *constraint.Context, p *placer) {
	scarcity := Scarcity(store)
	for rank := 0; rank < s.options.CoreRanks; rank++ {
		batch := s.requests(store, rank, rank+1)
		sort.SliceStable(batch, func(i, j int) bool {
			a, b := batch[i], batch[j]
			if sa, sb := scarcity[a.activity.Name], scarcity[b.activity.Name]; sa != sb {
				return sa > sb
			}
			if a.troop.Headcount() != b.troop.Headcount() {
				return a.troop.Headcount() > b.troop.Headcount()
			}
			return a.troop.Name < b.troop.Name
		})
		for _, r := range batch {
			if store.HasActivity(r.troop.ID, r.activity.Name) {
				continue
			}
			if !p.request(store, r.troop, r.activity, r.rank, constraint.Strict) {
				p.sink.Emit(event.Event{
					Kind:     event.AssignmentDenied,
					Phase:    p.phase,
					Troop:    r.troop.Name,
					Activity: r.activity.Name,
					Reason:   p.reason(store, r.troop, r.activity),
				})
			}
		}
	}
}

// guarantee 前5偏好依次以 Strict、RelaxSoft 尝试全部策略；前10偏好补足到 Top10Minimum
func (s *Pipeline) guarantee(store *constraint.Context, p *placer) {
	for _, r := range s.requests(store, 0, stats.Top5) {
		if store.HasActivity(r.troop.ID, r.activity.Name) {
			continue
		}
		if !p.request(store, r.troop, r.activity, r.rank, constraint.Strict) {
			p.request(store, r.troop, r.activity, r.rank, constraint.RelaxSoft)
		}
	}

	for _, t := range store.Troops {
		met := 0
		for rank, name := range t.Preferences {
			if rank < stats.Top10 && store.HasActivity(t.ID, name) {
				met++
			}
		}
		for _, r := range s.requests(store, stats.Top5, stats.Top10) {
			if met >= s.options.Top10Minimum {
				break
			}
			if r.troop.ID != t.ID || store.HasActivity(t.ID, r.activity.Name) {
				continue
			}
			if p.request(store, t, r.activity, r.rank, constraint.Strict) ||
				p.request(store, t, r.activity, r.rank, constraint.RelaxSoft) {
				met++
			}
		}
	}
}

// fill 安排剩余偏好，再按填充列表填满空闲时段
// 队伍尚无 Reflection 时保留一个周五时段
func (s *Pipeline) fill(store *constraint.Context, p *placer) {
	longest := 0
	for _, t := range store.Troops {
		if len(t.Preferences) > longest {
			longest = len(t.Preferences)
		}
	}
	for rank := s.options.CoreRanks; rank < longest; rank++ {
		for _, r := range s.requests(store, rank, rank+1) {
			if store.HasActivity(r.troop.ID, r.activity.Name) {
				continue
			}
			p.escalate(store, r.troop, r.activity, constraint.Strict, constraint.RelaxSoft)
		}
	}

	for _, t := range store.Troops {
		for _, slot := range store.EmptyCells(t.ID) {
			if !store.IsFree(t.ID, slot) || reserveFriday(store, t, slot) {
				continue
			}
			s.fillCell(store, p, t, slot)
		}
	}
}

// fillCell 以填充列表中第一个合法活动填充空闲时段
func (s *Pipeline) fillCell(store *constraint.Context, p *placer, t *model.Troop, slot model.TimeSlot) bool {
	for _, mode := range []constraint.RelaxMode{constraint.Strict, constraint.RelaxSoft} {
		for _, name := range store.Catalog.FillPriority {
			act, ok := store.Catalog.Get(name)
			if !ok || !s.manager.CanPlace(store, t, act, slot, mode).Allowed {
				continue
			}
			if p.commit(store, t, act, slot, mode) != nil {
				return true
			}
		}
	}
	return false
}

// reserveFriday 队伍尚无 Reflection 且这是最后一个空闲周五时段
func reserveFriday(store *constraint.Context, t *model.Troop, slot model.TimeSlot) bool {
	if slot.Day != model.Friday || store.HasActivity(t.ID, model.ActivityReflection) {
		return false
	}
	free := 0
	for _, s := range model.SlotsOn(model.Friday) {
		if store.IsFree(t.ID, s) {
			free++
		}
	}
	return free <= 1
}

// polish 局部搜索优化后运行修复器
func (s *Pipeline) polish(ctx context.Context, store *constraint.Context, ranker *optimizer.Ranker, sink event.Sink, queue *repair.Queue, result *Result) error {
	search := optimizer.NewSwapSearch(s.options.Optimizer, s.manager)
	search.SetSink(sink)
	searchResult, err := search.Optimize(ctx, store)
	result.Search = searchResult
	if err != nil {
		return err
	}

	sanitizer := repair.NewSanitizer(s.manager, ranker)
	sanitizer.SetSink(sink)
	report, err := sanitizer.Run(ctx, store, queue)
	result.Repair = report
	return err
}

// requests 返回排名在 [from, to) 内且尚未安排的偏好，按队伍名称、排名排序
// 目录中不存在的活动被忽略
func (s *Pipeline) requests(store *constraint.Context, from, to int) []request {
	var result []request
	for _, t := range store.Troops {
		for rank, name := range t.Preferences {
			if rank < from || rank >= to {
				continue
			}
			act, ok := store.Catalog.Get(name)
			if !ok || store.HasActivity(t.ID, name) {
				continue
			}
			result = append(result, request{troop: t, activity: act, rank: rank})
		}
	}
	return result
}

// pinnedRequests 队伍指定日期的活动，按排名排序
func pinnedRequests(store *constraint.Context, t *model.Troop) []request {
	var result []request
	for name := range t.DayRequests {
		act, ok := store.Catalog.Get(name)
		if !ok {
			continue
		}
		result = append(result, request{troop: t, activity: act, rank: t.RankOf(name)})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].rank != result[j].rank {
			return result[i].rank < result[j].rank
		}
		return result[i].activity.Name < result[j].activity.Name
	})
	return result
}

// Scarcity 活动稀缺度：全部队伍的需求时段数除以区域每周容量
// 无区域或不限容量的活动稀缺度为 0
func Scarcity(store *constraint.Context) map[string]float64 {
	demand := make(map[string]int)
	for _, t := range store.Troops {
		for _, name := range t.Preferences {
			act, ok := store.Catalog.Get(name)
			if !ok {
				continue
			}
			demand[name] += act.FullSlotsFor(t)
		}
	}
	result := make(map[string]float64, len(demand))
	for name, d := range demand {
		act := store.Catalog.MustGet(name)
		if act.Area == "" || act.IsConcurrent() {
			result[name] = 0
			continue
		}
		capacity := store.Catalog.CapacityOf(act.Area) * model.TotalSlots()
		if capacity <= 0 {
			continue
		}
		result[name] = float64(d) / float64(capacity)
	}
	return result
}
