// Package constraint 定义约束接口、排班存储和约束管理器
package constraint

import (
	"github.com/paiban/campsched/pkg/model"
)

// Type 约束类型标识
type Type string

const (
	// 硬约束类型
	TypeSlotAvailability Type = "slot_availability"
	TypeDuplicate        Type = "duplicate"
	TypeAreaCapacity     Type = "area_capacity"
	TypeFleetCapacity    Type = "fleet_capacity"
	TypeStaffCeiling     Type = "staff_ceiling"
	TypeBeachStaffCap    Type = "beach_staff_cap"
	TypeSameDayArea      Type = "same_day_area"
	TypeDayPin           Type = "day_pin"
	TypeFixedDay         Type = "fixed_day"
	TypeWetTowerAdjacent Type = "wet_tower_adjacent"
	TypeWetDryWet        Type = "wet_dry_wet"
	TypeAccuracyPerDay   Type = "accuracy_per_day"
	TypeThreeHourLimit   Type = "three_hour_limit"
	TypeBeachSlot        Type = "beach_slot"
	TypeSameDayPair      Type = "same_day_pair"

	// 软约束类型
	TypeSoftPair   Type = "soft_pair"
	TypeDeltaOrder Type = "delta_order"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// RelaxMode 校验放宽级别，按顺序逐级放宽
type RelaxMode int

const (
	Strict       RelaxMode = iota // 全部规则
	RelaxSoft                     // 跳过软约束以及沙滩时段的放宽条件
	IgnoreDayPin                  // 在 RelaxSoft 基础上跳过必排活动的日期指定，仅供恢复流程使用
)

// String 返回模式名称
func (m RelaxMode) String() string {
	switch m {
	case Strict:
		return "strict"
	case RelaxSoft:
		return "relax_soft"
	case IgnoreDayPin:
		return "ignore_day_pin"
	}
	return "unknown"
}

// Relaxes 当前模式是否至少与 other 一样宽松
func (m RelaxMode) Relaxes(other RelaxMode) bool {
	return m >= other
}

// Reason 拒绝原因代码
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonSlotOccupied     Reason = "slot_occupied"
	ReasonSpanOverflow     Reason = "span_overflow"
	ReasonAlreadyScheduled Reason = "already_scheduled"
	ReasonAreaCapacity     Reason = "area_capacity"
	ReasonActivityConflict Reason = "activity_conflict"
	ReasonFleetCapacity    Reason = "fleet_capacity"
	ReasonStaffCeiling     Reason = "staff_ceiling"
	ReasonBeachStaffCap    Reason = "beach_staff_cap"
	ReasonSameDayArea      Reason = "same_day_area"
	ReasonDayPin           Reason = "day_pin"
	ReasonFixedDay         Reason = "fixed_day"
	ReasonWetTowerAdjacent Reason = "wet_tower_adjacent"
	ReasonWetDryWet        Reason = "wet_dry_wet"
	ReasonAccuracyPerDay   Reason = "accuracy_per_day"
	ReasonThreeHourLimit   Reason = "three_hour_limit"
	ReasonBeachSlot        Reason = "beach_slot"
	ReasonSameDayPair      Reason = "same_day_pair"
	ReasonSoftPair         Reason = "soft_pair"
	ReasonDeltaOrder       Reason = "delta_order"
)

// Outcome 校验结果
type Outcome struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
	Rule    Type   `json:"rule,omitempty"`
}

// Allow 通过
func Allow() Outcome {
	return Outcome{Allowed: true}
}

// Deny 拒绝并携带原因
func Deny(rule Type, reason Reason) Outcome {
	return Outcome{Allowed: false, Reason: reason, Rule: rule}
}

// Placement 一次候选放置
type Placement struct {
	Troop    *model.Troop
	Activity *model.Activity
	Start    model.TimeSlot
	Mode     RelaxMode
}

// Slots 单元占用的全部时段（含1.5时段的后半段）
func (p *Placement) Slots() ([]model.TimeSlot, bool) {
	return model.SpanSlots(p.Start, p.Activity.SlotsFor(p.Troop))
}

// FullSlots 完整占用的时段，用于区域与容量计算
func (p *Placement) FullSlots() []model.TimeSlot {
	slots, ok := model.SpanSlots(p.Start, p.Activity.FullSlotsFor(p.Troop))
	if !ok {
		return nil
	}
	return slots
}

// Constraint 约束接口
type Constraint interface {
	// Name 返回约束名称
	Name() string

	// Type 返回约束类型
	Type() Type

	// Category 返回约束类别
	Category() Category

	// Weight 返回约束权重 (1-100)
	Weight() int

	// Check 校验单次候选放置，不得修改存储
	Check(ctx *Context, p *Placement) Outcome
}

// Limits 规则中使用的营地常量
type Limits struct {
	StaffCeiling        int `json:"staff_ceiling"`
	StaffClusterCeiling int `json:"staff_cluster_ceiling"`
	BeachStaffCap       int `json:"beach_staff_cap"`
	FleetCapacity       int `json:"fleet_capacity"`
	SharedTroopSize     int `json:"shared_troop_size"`
	TowerExtendedAbove  int `json:"tower_extended_above"`
	BeachRelaxRank      int `json:"beach_relax_rank"`
	MaxThreeHour        int `json:"max_three_hour"`
	MaxAccuracyPerDay   int `json:"max_accuracy_per_day"`
}

// DefaultLimits 返回默认营地常量
func DefaultLimits() Limits {
	return Limits{
		StaffCeiling:        16,
		StaffClusterCeiling: 20 + 2,
		BeachStaffCap:       4,
		FleetCapacity:       26,
		SharedTroopSize:     16,
		TowerExtendedAbove:  15,
		BeachRelaxRank:      0,
		MaxThreeHour:        1,
		MaxAccuracyPerDay:   1,
	}
}

// ViolationDetail 约束违反详情
type ViolationDetail struct {
	ConstraintType Type   `json:"constraint_type"`
	ConstraintName string `json:"constraint_name"`
	Troop          string `json:"troop,omitempty"`
	Activity       string `json:"activity,omitempty"`
	Slot           string `json:"slot,omitempty"`
	Reason         Reason `json:"reason"`
	Message        string `json:"message"`
	Severity       string `json:"severity"` // error/warning
	Penalty        int    `json:"penalty"`
}

// Result 约束评估结果
type Result struct {
	IsValid        bool              `json:"is_valid"`
	TotalPenalty   int               `json:"total_penalty"`
	HardViolations []ViolationDetail `json:"hard_violations"`
	SoftViolations []ViolationDetail `json:"soft_violations"`
	Score          float64           `json:"score"` // 0-100
}

// CalculateScore 计算约束满足度得分
func (r *Result) CalculateScore(maxPenalty int) {
	if maxPenalty == 0 {
		r.Score = 100.0
		return
	}
	r.Score = 100.0 * float64(maxPenalty-r.TotalPenalty) / float64(maxPenalty)
	if r.Score < 0 {
		r.Score = 0
	}
}
