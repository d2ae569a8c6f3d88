package builtin

import (
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// SameDayAreaConstraint 同一队伍同一天不能有同区域的两种不同活动
type SameDayAreaConstraint struct {
	*BaseConstraint
}

// NewSameDayAreaConstraint 创建同日同区域约束
func NewSameDayAreaConstraint() *SameDayAreaConstraint {
	return &SameDayAreaConstraint{
		BaseConstraint: NewBaseConstraint("同日同区域", constraint.TypeSameDayArea, constraint.CategoryHard, 80),
	}
}

// Check 校验候选放置
func (c *SameDayAreaConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	if p.Activity.Area == "" {
		return constraint.Allow()
	}
	for _, other := range dayActivities(ctx, p.Troop, p.Start.Day) {
		if other.Area == p.Activity.Area && other.Name != p.Activity.Name {
			return c.Deny(constraint.ReasonSameDayArea)
		}
	}
	return constraint.Allow()
}

// AccuracyPerDayConstraint 每队每天精准类活动数量上限
type AccuracyPerDayConstraint struct {
	*BaseConstraint
	maxPerDay int
}

// NewAccuracyPerDayConstraint 创建精准类活动约束
func NewAccuracyPerDayConstraint(maxPerDay int) *AccuracyPerDayConstraint {
	return &AccuracyPerDayConstraint{
		BaseConstraint: NewBaseConstraint("精准类每日上限", constraint.TypeAccuracyPerDay, constraint.CategoryHard, 80),
		maxPerDay:      maxPerDay,
	}
}

// Check 校验候选放置
func (c *AccuracyPerDayConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	if !p.Activity.HasTag(model.TagAccuracy) {
		return constraint.Allow()
	}
	count := 0
	for _, other := range dayActivities(ctx, p.Troop, p.Start.Day) {
		if other.HasTag(model.TagAccuracy) {
			count++
		}
	}
	if count >= c.maxPerDay {
		return c.Deny(constraint.ReasonAccuracyPerDay)
	}
	return constraint.Allow()
}

// ThreeHourLimitConstraint 每队每周三小时活动数量上限
// 队伍为额外的三小时活动指定了日期时视为明确豁免
type ThreeHourLimitConstraint struct {
	*BaseConstraint
	maxPerWeek int
}

// NewThreeHourLimitConstraint 创建三小时活动约束
func NewThreeHourLimitConstraint(maxPerWeek int) *ThreeHourLimitConstraint {
	return &ThreeHourLimitConstraint{
		BaseConstraint: NewBaseConstraint("三小时活动上限", constraint.TypeThreeHourLimit, constraint.CategoryHard, 80),
		maxPerWeek:     maxPerWeek,
	}
}

// Check 校验候选放置
func (c *ThreeHourLimitConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	if !p.Activity.HasTag(model.TagThreeHour) {
		return constraint.Allow()
	}
	if _, pinned := p.Troop.PinnedDay(p.Activity.Name); pinned {
		return constraint.Allow()
	}
	count := 0
	for _, u := range ctx.TroopUnits(p.Troop.ID) {
		if u.Activity.HasTag(model.TagThreeHour) && u.Activity.Name != p.Activity.Name {
			count++
		}
	}
	if count >= c.maxPerWeek {
		return c.Deny(constraint.ReasonThreeHourLimit)
	}
	return constraint.Allow()
}

// SameDayPairConstraint 禁止同日出现的活动对
type SameDayPairConstraint struct {
	*BaseConstraint
}

// NewSameDayPairConstraint 创建同日禁止组合约束
func NewSameDayPairConstraint() *SameDayPairConstraint {
	return &SameDayPairConstraint{
		BaseConstraint: NewBaseConstraint("同日禁止组合", constraint.TypeSameDayPair, constraint.CategoryHard, 75),
	}
}

// Check 校验候选放置
func (c *SameDayPairConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	for _, other := range dayActivities(ctx, p.Troop, p.Start.Day) {
		if ctx.Catalog.IsHardPair(p.Activity.Name, other.Name) {
			return c.Deny(constraint.ReasonSameDayPair)
		}
	}
	return constraint.Allow()
}

// SoftPairConstraint 尽量避免同日出现的活动对（软约束）
type SoftPairConstraint struct {
	*BaseConstraint
}

// NewSoftPairConstraint 创建同日避免组合约束
func NewSoftPairConstraint(weight int) *SoftPairConstraint {
	return &SoftPairConstraint{
		BaseConstraint: NewBaseConstraint("同日避免组合", constraint.TypeSoftPair, constraint.CategorySoft, weight),
	}
}

// Check 校验候选放置
func (c *SoftPairConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	for _, other := range dayActivities(ctx, p.Troop, p.Start.Day) {
		if ctx.Catalog.IsSoftPair(p.Activity.Name, other.Name) {
			return c.Deny(constraint.ReasonSoftPair)
		}
	}
	return constraint.Allow()
}
