package builtin

import (
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// AreaCapacityConstraint 活动与独占区域容量约束
type AreaCapacityConstraint struct {
	*BaseConstraint
	sharedTroopSize int
}

// NewAreaCapacityConstraint 创建区域容量约束
// sharedTroopSize 覆盖目录中共享活动的单队人数上限（0 表示沿用目录）
func NewAreaCapacityConstraint(sharedTroopSize int) *AreaCapacityConstraint {
	return &AreaCapacityConstraint{
		BaseConstraint:  NewBaseConstraint("区域容量", constraint.TypeAreaCapacity, constraint.CategoryHard, 100),
		sharedTroopSize: sharedTroopSize,
	}
}

// Check 校验候选放置，只检查完整占用的时段
func (c *AreaCapacityConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	act := p.Activity
	for _, s := range p.FullSlots() {
		occupants := ctx.Occupants(s)

		var same []*model.Assignment
		for _, r := range occupants {
			if r.Troop.ID == p.Troop.ID {
				continue
			}
			if r.Activity.Name == act.Name {
				same = append(same, r)
			}
			if act.ConflictsWith(r.Activity.Name) || r.Activity.ConflictsWith(act.Name) {
				return c.Deny(constraint.ReasonActivityConflict)
			}
		}

		if !c.activityHasRoom(act, p.Troop, same) {
			return c.Deny(constraint.ReasonAreaCapacity)
		}

		if act.Area == "" {
			continue
		}
		instances := ctx.AreaInstances(act.Area, s)
		if !(act.CanShare() && len(same) > 0) {
			instances++
		}
		if instances > ctx.Catalog.CapacityOf(act.Area) {
			return c.Deny(constraint.ReasonAreaCapacity)
		}
	}
	return constraint.Allow()
}

// activityHasRoom 活动本身的容量规则
func (c *AreaCapacityConstraint) activityHasRoom(act *model.Activity, troop *model.Troop, same []*model.Assignment) bool {
	switch act.Capacity.Kind {
	case model.CapacityConcurrent:
		return true
	case model.CapacityShared:
		if len(same) == 0 {
			return true
		}
		if act.Capacity.MaxTroops > 0 && len(same) >= act.Capacity.MaxTroops {
			return false
		}
		limit := act.Capacity.MaxTroopSize
		if limit > 0 && c.sharedTroopSize > 0 {
			limit = c.sharedTroopSize
		}
		if limit > 0 {
			if troop.Headcount() > limit {
				return false
			}
			for _, r := range same {
				if r.Troop.Headcount() > limit {
					return false
				}
			}
		}
		return true
	default:
		if act.HasTag(model.TagConcurrent) {
			return true
		}
		return len(same) == 0
	}
}

// FleetCapacityConstraint 独木舟船队人数约束
// 同一时段所有船队活动的总人数（队员 + 成人）不超过上限
type FleetCapacityConstraint struct {
	*BaseConstraint
	capacity int
}

// NewFleetCapacityConstraint 创建船队容量约束
func NewFleetCapacityConstraint(capacity int) *FleetCapacityConstraint {
	return &FleetCapacityConstraint{
		BaseConstraint: NewBaseConstraint("船队人数", constraint.TypeFleetCapacity, constraint.CategoryHard, 100),
		capacity:       capacity,
	}
}

// Check 校验候选放置
func (c *FleetCapacityConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	if !p.Activity.HasTag(model.TagFleet) || c.capacity <= 0 {
		return constraint.Allow()
	}
	for _, s := range p.FullSlots() {
		total := p.Troop.Headcount()
		for _, r := range ctx.Occupants(s) {
			if r.Activity.HasTag(model.TagFleet) && r.Troop.ID != p.Troop.ID {
				total += r.Troop.Headcount()
			}
		}
		if total > c.capacity {
			return c.Deny(constraint.ReasonFleetCapacity)
		}
	}
	return constraint.Allow()
}

// StaffCeilingConstraint 每时段工作人员上限约束
type StaffCeilingConstraint struct {
	*BaseConstraint
	ceiling        int
	clusterCeiling int
}

// NewStaffCeilingConstraint 创建工作人员上限约束
func NewStaffCeilingConstraint(ceiling, clusterCeiling int) *StaffCeilingConstraint {
	return &StaffCeilingConstraint{
		BaseConstraint: NewBaseConstraint("工作人员上限", constraint.TypeStaffCeiling, constraint.CategoryHard, 90),
		ceiling:        ceiling,
		clusterCeiling: clusterCeiling,
	}
}

// Ceiling 返回活动适用的上限
func (c *StaffCeilingConstraint) Ceiling(act *model.Activity) int {
	if act.HasTag(model.TagStaffCluster) && c.clusterCeiling > c.ceiling {
		return c.clusterCeiling
	}
	return c.ceiling
}

// Check 校验候选放置，零人员成本的活动总是允许
func (c *StaffCeilingConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	cost := p.Activity.Staff
	if cost <= 0 {
		return constraint.Allow()
	}
	slots, ok := p.Slots()
	if !ok {
		return constraint.Allow()
	}
	ceiling := c.Ceiling(p.Activity)
	for _, s := range slots {
		if ctx.StaffLoad(s)+cost > ceiling {
			return c.Deny(constraint.ReasonStaffCeiling)
		}
	}
	return constraint.Allow()
}

// BeachStaffCapConstraint 沙滩工作人员活动数量约束
type BeachStaffCapConstraint struct {
	*BaseConstraint
	limit int
}

// NewBeachStaffCapConstraint 创建沙滩工作人员活动上限约束
func NewBeachStaffCapConstraint(limit int) *BeachStaffCapConstraint {
	return &BeachStaffCapConstraint{
		BaseConstraint: NewBaseConstraint("沙滩活动上限", constraint.TypeBeachStaffCap, constraint.CategoryHard, 90),
		limit:          limit,
	}
}

// Check 校验候选放置
func (c *BeachStaffCapConstraint) Check(ctx *constraint.Context, p *constraint.Placement) constraint.Outcome {
	if !p.Activity.HasTag(model.TagBeachStaff) || c.limit <= 0 {
		return constraint.Allow()
	}
	for _, s := range p.FullSlots() {
		count := 0
		for _, r := range ctx.Occupants(s) {
			if r.Activity.HasTag(model.TagBeachStaff) {
				count++
			}
		}
		if count >= c.limit {
			return c.Deny(constraint.ReasonBeachStaffCap)
		}
	}
	return constraint.Allow()
}
