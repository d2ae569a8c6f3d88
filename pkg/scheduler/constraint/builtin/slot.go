package builtin

import (
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// SlotAvailabilityConstraint 时段可用约束
// 活动跨越的所有时段都必须空闲，且不能超出当天最后一个时段
type SlotAvailabilityConstraint struct {
	*BaseConstraint
}

// NewSlotAvailabilityConstraint 创建时段可用约束
func NewSlotAvailabilityConstraint() *SlotAvailabilityConstraint {
	return &SlotAvailabilityConstraint{
		BaseConstraint: NewBaseConstraint("时段可用", constraint.TypeSlotAvailability, constraint.CategoryHard, 100),
	}
}

// Check 校验候选放置
func (c *SlotAvailabilityConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	slots, ok := p.Slots()
	if !ok {
		return c.Deny(constraint.ReasonSpanOverflow)
	}
	for _, s := range slots {
		if !ctx.IsFree(p.Troop.ID, s) {
			return c.Deny(constraint.ReasonSlotOccupied)
		}
	}
	return constraint.Allow()
}

// DuplicateConstraint 每周不重复约束，填充活动除外
type DuplicateConstraint struct {
	*BaseConstraint
}

// NewDuplicateConstraint 创建不重复约束
func NewDuplicateConstraint() *DuplicateConstraint {
	return &DuplicateConstraint{
		BaseConstraint: NewBaseConstraint("活动不重复", constraint.TypeDuplicate, constraint.CategoryHard, 100),
	}
}

// Check 校验候选放置
func (c *DuplicateConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	if p.Activity.HasTag(model.TagFiller) {
		return constraint.Allow()
	}
	if ctx.HasActivity(p.Troop.ID, p.Activity.Name) {
		return c.Deny(constraint.ReasonAlreadyScheduled)
	}
	return constraint.Allow()
}

// DayPinConstraint 指定日期约束
// IgnoreDayPin 模式下只放开必排活动的指定日期
type DayPinConstraint struct {
	*BaseConstraint
}

// NewDayPinConstraint 创建指定日期约束
func NewDayPinConstraint() *DayPinConstraint {
	return &DayPinConstraint{
		BaseConstraint: NewBaseConstraint("指定日期", constraint.TypeDayPin, constraint.CategoryHard, 95),
	}
}

// Check 校验候选放置
func (c *DayPinConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	day, ok := p.Troop.PinnedDay(p.Activity.Name)
	if !ok || day == p.Start.Day {
		return constraint.Allow()
	}
	if p.Mode.Relaxes(constraint.IgnoreDayPin) && p.Activity.IsMandatory() {
		return constraint.Allow()
	}
	return c.Deny(constraint.ReasonDayPin)
}

// FixedDayConstraint 固定日期活动约束（如 Reflection 只能在周五）
type FixedDayConstraint struct {
	*BaseConstraint
}

// NewFixedDayConstraint 创建固定日期约束
func NewFixedDayConstraint() *FixedDayConstraint {
	return &FixedDayConstraint{
		BaseConstraint: NewBaseConstraint("固定日期", constraint.TypeFixedDay, constraint.CategoryHard, 100),
	}
}

// Check 校验候选放置
func (c *FixedDayConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	if p.Activity.FixedDay != nil && *p.Activity.FixedDay != p.Start.Day {
		return c.Deny(constraint.ReasonFixedDay)
	}
	return constraint.Allow()
}
