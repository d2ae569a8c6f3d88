package optimizer

import (
	"sort"

	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// Candidate 一个候选开始时段及其评分
type Candidate struct {
	Slot  model.TimeSlot
	Score float64
	Terms map[Term]float64
}

// Ranker 时段评分器
type Ranker struct {
	manager *constraint.Manager
	weights Weights
	primary PrimaryDays
}

// NewRanker 创建时段评分器
func NewRanker(manager *constraint.Manager, weights Weights) *Ranker {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Ranker{
		manager: manager,
		weights: weights,
		primary: PrimaryDays{},
	}
}

// SetPrimaryDays 设置区域主用日
func (r *Ranker) SetPrimaryDays(p PrimaryDays) {
	if p == nil {
		p = PrimaryDays{}
	}
	r.primary = p
}

// PrimaryDays 返回当前区域主用日
func (r *Ranker) PrimaryDays() PrimaryDays {
	return r.primary
}

// Score 计算候选开始时段的评分，不做约束校验
func (r *Ranker) Score(ctx *constraint.Context, troop *model.Troop, act *model.Activity, start model.TimeSlot) Candidate {
	values := make(map[Term]float64, len(Terms))
	day := start.Day
	slots, ok := model.SpanSlots(start, act.SlotsFor(troop))
	if !ok {
		return Candidate{Slot: start, Terms: values}
	}
	first, last := slots[0], slots[len(slots)-1]

	values[TermTroopDay] = float64(len(ctx.TroopDay(troop.ID, day)))

	if act.Area != "" {
		if ctx.AreaDayCount(act.Area, day) > 0 {
			values[TermAreaDay] = 1
		}
		prev, hasPrev := first.Prev()
		next, hasNext := last.Next()
		prevUsed := hasPrev && ctx.AreaInstances(act.Area, prev) > 0
		nextUsed := hasNext && ctx.AreaInstances(act.Area, next) > 0
		if prevUsed {
			values[TermAdjacency]++
		}
		if nextUsed {
			values[TermAdjacency]++
		}
		if prevUsed && nextUsed && ctx.AreaInstances(act.Area, start) == 0 {
			values[TermGapClosing] = 1
		}
		if r.primary.Has(act.Area, day) {
			values[TermPrimaryDay] = 1
		}
	}

	free := 0
	for _, s := range model.SlotsOn(day) {
		if ctx.IsFree(troop.ID, s) {
			free++
		}
	}
	if free == len(slots) {
		values[TermDayCompletion] = 1
	}

	if ceiling := ctx.Limits.StaffCeiling; ceiling > 0 && act.Staff > 0 {
		load := 0
		for _, s := range slots {
			load += ctx.StaffLoad(s)
		}
		values[TermStaffLoad] = float64(load) / float64(ceiling*len(slots))
	}

	if d, ok := ctx.Commissioners.DayFor(troop.Commissioner, act); ok && d == day {
		values[TermCommissionerDay] = 1
	}
	if act.HasTag(model.TagAvoidFriday) && day == model.Friday {
		values[TermFridayPenalty] = 1
	}

	return Candidate{Slot: start, Score: r.weights.Sum(values), Terms: values}
}

// Candidates 返回在 mode 下合法的全部开始时段，按评分降序、时段序号升序
func (r *Ranker) Candidates(ctx *constraint.Context, troop *model.Troop, act *model.Activity, mode constraint.RelaxMode) []Candidate {
	var result []Candidate
	for _, s := range model.AllSlots() {
		if !r.manager.CanPlace(ctx, troop, act, s, mode).Allowed {
			continue
		}
		result = append(result, r.Score(ctx, troop, act, s))
	}
	SortCandidates(result)
	return result
}

// Best 返回最优的合法开始时段
func (r *Ranker) Best(ctx *constraint.Context, troop *model.Troop, act *model.Activity, mode constraint.RelaxMode) (model.TimeSlot, bool) {
	candidates := r.Candidates(ctx, troop, act, mode)
	if len(candidates) == 0 {
		return model.TimeSlot{}, false
	}
	return candidates[0].Slot, true
}

// Rank 对给定开始时段评分排序（不做约束校验）
func (r *Ranker) Rank(ctx *constraint.Context, troop *model.Troop, act *model.Activity, slots []model.TimeSlot) []Candidate {
	result := make([]Candidate, 0, len(slots))
	for _, s := range slots {
		result = append(result, r.Score(ctx, troop, act, s))
	}
	SortCandidates(result)
	return result
}

// SortCandidates 评分降序，同分按时段序号升序
func SortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].Slot.Ordinal() < c[j].Slot.Ordinal()
	})
}
