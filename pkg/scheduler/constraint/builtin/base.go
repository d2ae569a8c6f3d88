// Package builtin 提供内置约束实现
package builtin

import (
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// BaseConstraint 约束基类
type BaseConstraint struct {
	name     string
	typ      constraint.Type
	category constraint.Category
	weight   int
}

// NewBaseConstraint 创建基础约束
func NewBaseConstraint(name string, typ constraint.Type, cat constraint.Category, weight int) *BaseConstraint {
	return &BaseConstraint{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
	}
}

// Name 返回约束名称
func (c *BaseConstraint) Name() string { return c.name }

// Type 返回约束类型
func (c *BaseConstraint) Type() constraint.Type { return c.typ }

// Category 返回约束类别
func (c *BaseConstraint) Category() constraint.Category { return c.category }

// Weight 返回约束权重
func (c *BaseConstraint) Weight() int { return c.weight }

// Deny 以本约束类型拒绝
func (c *BaseConstraint) Deny(reason constraint.Reason) constraint.Outcome {
	return constraint.Deny(c.typ, reason)
}

// Check 默认实现（子类需覆盖）
func (c *BaseConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	return constraint.Allow()
}

// dayView 队伍某天在放置后的活动视图，key 为时段序号
func dayView(ctx *constraint.Context, p *constraint.Placement) map[int]*model.Activity {
	view := make(map[int]*model.Activity)
	for _, s := range model.SlotsOn(p.Start.Day) {
		if act := ctx.ActivityAt(p.Troop.ID, s); act != nil {
			view[s.Slot] = act
		}
	}
	if slots, ok := p.Slots(); ok {
		for _, s := range slots {
			view[s.Slot] = p.Activity
		}
	}
	return view
}

// dayActivities 队伍某天已有的活动（去重，不含放置中的活动）
func dayActivities(ctx *constraint.Context, troop *model.Troop, day model.Day) []*model.Activity {
	var result []*model.Activity
	seen := make(map[string]bool)
	for _, r := range ctx.TroopDay(troop.ID, day) {
		if seen[r.Activity.Name] {
			continue
		}
		seen[r.Activity.Name] = true
		result = append(result, r.Activity)
	}
	return result
}
