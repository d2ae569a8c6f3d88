package builtin

import (
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// BeachSlotConstraint 沙滩时段约束
// 带 beach_slot 标签的活动只能从当天第一个或最后一个时段开始（短日除外）
// RelaxSoft 下，若该活动是队伍最靠前的偏好且队伍已无空闲首尾时段，允许中间时段
type BeachSlotConstraint struct {
	*BaseConstraint
	relaxRank int
}

// NewBeachSlotConstraint 创建沙滩时段约束
func NewBeachSlotConstraint(relaxRank int) *BeachSlotConstraint {
	return &BeachSlotConstraint{
		BaseConstraint: NewBaseConstraint("沙滩时段", constraint.TypeBeachSlot, constraint.CategoryHard, 70),
		relaxRank:      relaxRank,
	}
}

// Check 校验候选放置
func (c *BeachSlotConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	if !p.Activity.HasTag(model.TagBeachSlot) || p.Start.Day == model.ShortDay {
		return constraint.Allow()
	}
	if p.Start.IsFirst() || p.Start.IsLast() {
		return constraint.Allow()
	}
	if p.Mode.Relaxes(constraint.RelaxSoft) &&
		p.Troop.RankOf(p.Activity.Name) <= c.relaxRank &&
		!hasFreeEdgeSlot(ctx, p) {
		return constraint.Allow()
	}
	return c.Deny(constraint.ReasonBeachSlot)
}

// hasFreeEdgeSlot 队伍是否还有可容纳该活动的空闲首尾时段
func hasFreeEdgeSlot(ctx *constraint.Context, p *constraint.Placement) bool {
	n := p.Activity.SlotsFor(p.Troop)
	for _, s := range model.AllSlots() {
		if s.Day == model.ShortDay || !(s.IsFirst() || s.IsLast()) {
			continue
		}
		slots, ok := model.SpanSlots(s, n)
		if !ok {
			continue
		}
		free := true
		for _, span := range slots {
			if !ctx.IsFree(p.Troop.ID, span) {
				free = false
				break
			}
		}
		if free {
			return true
		}
	}
	return false
}
