package builtin

import (
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// WetTowerAdjacencyConstraint 水上活动不能与高处/干燥活动相邻（双向）
type WetTowerAdjacencyConstraint struct {
	*BaseConstraint
}

// NewWetTowerAdjacencyConstraint 创建水上与高处活动相邻约束
func NewWetTowerAdjacencyConstraint() *WetTowerAdjacencyConstraint {
	return &WetTowerAdjacencyConstraint{
		BaseConstraint: NewBaseConstraint("水上与攀岩相邻", constraint.TypeWetTowerAdjacent, constraint.CategoryHard, 85),
	}
}

// Check 校验候选放置
func (c *WetTowerAdjacencyConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	act := p.Activity
	if !act.IsWet() && !act.HasTag(model.TagTowerODS) {
		return constraint.Allow()
	}
	slots, ok := p.Slots()
	if !ok {
		return constraint.Allow()
	}

	var neighbors []model.TimeSlot
	if prev, ok := slots[0].Prev(); ok {
		neighbors = append(neighbors, prev)
	}
	if next, ok := slots[len(slots)-1].Next(); ok {
		neighbors = append(neighbors, next)
	}

	for _, s := range neighbors {
		other := ctx.ActivityAt(p.Troop.ID, s)
		if other == nil {
			continue
		}
		if (act.IsWet() && other.HasTag(model.TagTowerODS)) || (act.HasTag(model.TagTowerODS) && other.IsWet()) {
			return c.Deny(constraint.ReasonWetTowerAdjacent)
		}
	}
	return constraint.Allow()
}

// WetDryWetConstraint 三时段日不能出现 水上/非水上/水上 的排列
// 中间时段后放入时同样检查
type WetDryWetConstraint struct {
	*BaseConstraint
}

// NewWetDryWetConstraint 创建湿干湿约束
func NewWetDryWetConstraint() *WetDryWetConstraint {
	return &WetDryWetConstraint{
		BaseConstraint: NewBaseConstraint("湿干湿", constraint.TypeWetDryWet, constraint.CategoryHard, 85),
	}
}

// Check 校验候选放置
func (c *WetDryWetConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	if p.Start.Day.SlotCount() < 3 {
		return constraint.Allow()
	}
	if IsWetDryWet(dayView(ctx, p)) {
		return c.Deny(constraint.ReasonWetDryWet)
	}
	return constraint.Allow()
}

// IsWetDryWet 判断三时段日的活动排列是否构成湿干湿
// 三个时段都有活动时才成立
func IsWetDryWet(view map[int]*model.Activity) bool {
	first, middle, last := view[1], view[2], view[3]
	if first == nil || middle == nil || last == nil {
		return false
	}
	return first.IsWet() && !middle.IsWet() && last.IsWet()
}

// DeltaOrderConstraint Delta 应排在 Super Troop 之前（软约束）
type DeltaOrderConstraint struct {
	*BaseConstraint
}

// NewDeltaOrderConstraint 创建 Delta 顺序约束
func NewDeltaOrderConstraint(weight int) *DeltaOrderConstraint {
	return &DeltaOrderConstraint{
		BaseConstraint: NewBaseConstraint("Delta先于Super Troop", constraint.TypeDeltaOrder, constraint.CategorySoft, weight),
	}
}

// Check 校验候选放置
func (c *DeltaOrderConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	switch p.Activity.Name {
	case model.ActivitySuperTroop:
		for _, u := range ctx.ActivityUnits(p.Troop.ID, model.ActivityDelta) {
			if p.Start.Before(u.Start) {
				return c.Deny(constraint.ReasonDeltaOrder)
			}
		}
	case model.ActivityDelta:
		for _, u := range ctx.ActivityUnits(p.Troop.ID, model.ActivitySuperTroop) {
			if u.Start.Before(p.Start) {
				return c.Deny(constraint.ReasonDeltaOrder)
			}
		}
	}
	return constraint.Allow()
}
