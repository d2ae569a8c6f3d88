// Package validator 提供排班结果的最终校验
package validator

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/constraint/builtin"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictOverlap      ConflictType = "overlap"           // 同一时段多个非并行活动
	ConflictAreaCapacity ConflictType = "area_capacity"     // 区域实例超出容量
	ConflictIncoherent   ConflictType = "incoherent_unit"   // 单元记录不完整或不连续
	ConflictGap          ConflictType = "gap"               // 空闲时段
	ConflictSequencing   ConflictType = "sequencing"        // 湿干湿或水上与攀岩相邻
	ConflictDayPin       ConflictType = "day_pin"           // 未排在指定日期
	ConflictFixedDay     ConflictType = "fixed_day"         // 未排在固定日期
	ConflictMandatory    ConflictType = "mandatory_missing" // 缺少必排活动
)

// IsInvariant 是否属于排班不变量，违反时运行失败
func (t ConflictType) IsInvariant() bool {
	switch t {
	case ConflictOverlap, ConflictAreaCapacity, ConflictIncoherent, ConflictGap, ConflictMandatory:
		return true
	}
	return false
}

// Conflict 冲突信息
type Conflict struct {
	Type        ConflictType `json:"type"`
	Severity    string       `json:"severity"` // error/warning
	Troop       string       `json:"troop,omitempty"`
	Activity    string       `json:"activity,omitempty"`
	Slot        string       `json:"slot,omitempty"`
	Message     string       `json:"message"`
	Assignments []uuid.UUID  `json:"assignments,omitempty"` // 相关的排班记录ID
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	CheckGaps       bool // 是否检查空闲时段
	CheckSequencing bool // 是否检查湿干湿与相邻
	CheckDayPins    bool // 是否检查指定日期与固定日期
	CheckMandatory  bool // 是否检查必排活动
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		CheckGaps:       true,
		CheckSequencing: true,
		CheckDayPins:    true,
		CheckMandatory:  true,
	}
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	return &ConflictDetector{config: config}
}

// DetectAll 检测所有冲突，结果按队伍、时段排序
func (d *ConflictDetector) DetectAll(ctx *constraint.Context) []Conflict {
	var conflicts []Conflict

	conflicts = append(conflicts, d.detectOverlaps(ctx)...)
	conflicts = append(conflicts, d.detectAreaCapacity(ctx)...)
	conflicts = append(conflicts, d.detectIncoherent(ctx)...)
	if d.config.CheckGaps {
		conflicts = append(conflicts, d.detectGaps(ctx)...)
	}
	if d.config.CheckSequencing {
		conflicts = append(conflicts, d.detectSequencing(ctx)...)
	}
	if d.config.CheckDayPins {
		conflicts = append(conflicts, d.detectDayPins(ctx)...)
	}
	if d.config.CheckMandatory {
		conflicts = append(conflicts, d.detectMandatory(ctx)...)
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Troop != conflicts[j].Troop {
			return conflicts[i].Troop < conflicts[j].Troop
		}
		return conflicts[i].Slot < conflicts[j].Slot
	})
	return conflicts
}

// detectOverlaps 同一队伍同一时段的非并行活动不能超过一个
func (d *ConflictDetector) detectOverlaps(ctx *constraint.Context) []Conflict {
	var conflicts []Conflict
	for _, t := range ctx.Troops {
		for _, s := range model.AllSlots() {
			var ids []uuid.UUID
			for _, r := range ctx.At(t.ID, s) {
				if !r.Activity.IsConcurrent() {
					ids = append(ids, r.ID)
				}
			}
			if len(ids) > 1 {
				conflicts = append(conflicts, Conflict{
					Type:        ConflictOverlap,
					Severity:    "error",
					Troop:       t.Name,
					Slot:        s.String(),
					Message:     fmt.Sprintf("%s 在 %s 有 %d 个活动", t.Name, s, len(ids)),
					Assignments: ids,
				})
			}
		}
	}
	return conflicts
}

// detectAreaCapacity 区域实例数不能超过容量
func (d *ConflictDetector) detectAreaCapacity(ctx *constraint.Context) []Conflict {
	var conflicts []Conflict
	for _, area := range ctx.Catalog.Areas() {
		capacity := ctx.Catalog.CapacityOf(area)
		for _, s := range model.AllSlots() {
			n := ctx.AreaInstances(area, s)
			if n <= capacity {
				continue
			}
			var ids []uuid.UUID
			for _, r := range ctx.Occupants(s) {
				if r.Activity.Area == area {
					ids = append(ids, r.ID)
				}
			}
			conflicts = append(conflicts, Conflict{
				Type:        ConflictAreaCapacity,
				Severity:    "error",
				Activity:    area,
				Slot:        s.String(),
				Message:     fmt.Sprintf("区域 %s 在 %s 有 %d 个实例，容量 %d", area, s, n, capacity),
				Assignments: ids,
			})
		}
	}
	return conflicts
}

// detectIncoherent 每个单元的记录数等于时长，且连续落在同一天
func (d *ConflictDetector) detectIncoherent(ctx *constraint.Context) []Conflict {
	var conflicts []Conflict
	for _, u := range ctx.Units() {
		if coherent(u) {
			continue
		}
		ids := make([]uuid.UUID, 0, len(u.Records))
		for _, r := range u.Records {
			ids = append(ids, r.ID)
		}
		conflicts = append(conflicts, Conflict{
			Type:        ConflictIncoherent,
			Severity:    "error",
			Troop:       u.Troop.Name,
			Activity:    u.Activity.Name,
			Slot:        u.Start.String(),
			Message:     fmt.Sprintf("%s 的 %s 单元不完整（%d 条记录，需要 %d 条）", u.Troop.Name, u.Activity.Name, len(u.Records), u.Activity.SlotsFor(u.Troop)),
			Assignments: ids,
		})
	}
	return conflicts
}

func coherent(u *constraint.Unit) bool {
	slots, ok := model.SpanSlots(u.Start, u.Activity.SlotsFor(u.Troop))
	if !ok || len(slots) != len(u.Records) {
		return false
	}
	for i, r := range u.Records {
		if r.Slot != slots[i] || r.Offset != i {
			return false
		}
	}
	return true
}

// detectGaps 每个队伍的每个时段都要有活动
func (d *ConflictDetector) detectGaps(ctx *constraint.Context) []Conflict {
	var conflicts []Conflict
	for _, t := range ctx.Troops {
		for _, s := range ctx.EmptyCells(t.ID) {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictGap,
				Severity: "error",
				Troop:    t.Name,
				Slot:     s.String(),
				Message:  fmt.Sprintf("%s 在 %s 没有活动", t.Name, s),
			})
		}
	}
	return conflicts
}

// detectSequencing 检查湿干湿与水上/攀岩相邻；涉及强制插入的记录只作警告
func (d *ConflictDetector) detectSequencing(ctx *constraint.Context) []Conflict {
	var conflicts []Conflict
	for _, t := range ctx.Troops {
		for _, day := range model.Days {
			slots := model.SlotsOn(day)
			view := make(map[int]*model.Activity, len(slots))
			forced := false
			for _, s := range slots {
				view[s.Slot] = ctx.ActivityAt(t.ID, s)
				for _, r := range ctx.At(t.ID, s) {
					forced = forced || r.Forced
				}
			}
			if len(slots) == 3 && builtin.IsWetDryWet(view) {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictSequencing,
					Severity: severity(forced),
					Troop:    t.Name,
					Slot:     slots[0].String(),
					Message:  fmt.Sprintf("%s 在 %s 的活动构成湿干湿", t.Name, day),
				})
			}
			for i := 1; i < len(slots); i++ {
				a, b := view[slots[i-1].Slot], view[slots[i].Slot]
				if a == nil || b == nil || a == b {
					continue
				}
				if (a.IsWet() && b.HasTag(model.TagTowerODS)) || (a.HasTag(model.TagTowerODS) && b.IsWet()) {
					conflicts = append(conflicts, Conflict{
						Type:     ConflictSequencing,
						Severity: severity(forced),
						Troop:    t.Name,
						Activity: a.Name + "/" + b.Name,
						Slot:     slots[i].String(),
						Message:  fmt.Sprintf("%s 的 %s 与 %s 相邻", t.Name, a.Name, b.Name),
					})
				}
			}
		}
	}
	return conflicts
}

// detectDayPins 指定日期与固定日期
func (d *ConflictDetector) detectDayPins(ctx *constraint.Context) []Conflict {
	var conflicts []Conflict
	for _, u := range ctx.Units() {
		if day, ok := u.Troop.PinnedDay(u.Activity.Name); ok && day != u.Start.Day {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictDayPin,
				Severity: severity(u.Forced() || u.Activity.IsMandatory()),
				Troop:    u.Troop.Name,
				Activity: u.Activity.Name,
				Slot:     u.Start.String(),
				Message:  fmt.Sprintf("%s 的 %s 指定在 %s，实际在 %s", u.Troop.Name, u.Activity.Name, day, u.Start.Day),
			})
		}
		if fixed := u.Activity.FixedDay; fixed != nil && *fixed != u.Start.Day {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictFixedDay,
				Severity: "error",
				Troop:    u.Troop.Name,
				Activity: u.Activity.Name,
				Slot:     u.Start.String(),
				Message:  fmt.Sprintf("%s 只能排在 %s", u.Activity.Name, *fixed),
			})
		}
	}
	return conflicts
}

// detectMandatory 每支队伍都要有全部必排活动
func (d *ConflictDetector) detectMandatory(ctx *constraint.Context) []Conflict {
	var conflicts []Conflict
	for _, t := range ctx.Troops {
		for _, act := range ctx.Catalog.Mandatory() {
			if ctx.HasActivity(t.ID, act.Name) {
				continue
			}
			conflicts = append(conflicts, Conflict{
				Type:     ConflictMandatory,
				Severity: "error",
				Troop:    t.Name,
				Activity: act.Name,
				Message:  fmt.Sprintf("%s 缺少必排活动 %s", t.Name, act.Name),
			})
		}
	}
	return conflicts
}

func severity(warning bool) string {
	if warning {
		return "warning"
	}
	return "error"
}

// HasInvariantViolation 是否存在不变量冲突
func HasInvariantViolation(conflicts []Conflict) bool {
	for _, c := range conflicts {
		if c.Type.IsInvariant() {
			return true
		}
	}
	return false
}

// Summary 按类型统计冲突数
func Summary(conflicts []Conflict) map[ConflictType]int {
	result := make(map[ConflictType]int)
	for _, c := range conflicts {
		result[c.Type]++
	}
	return result
}

// Rebuild 由对外视图重建排班存储，记录按原样加入，不做约束校验
// 队伍或活动不存在时返回错误
func Rebuild(catalog *model.Catalog, troops []*model.Troop, views []model.AssignmentView, limits constraint.Limits) (*constraint.Context, error) {
	ctx := constraint.NewContext(catalog, troops, limits)
	byName := make(map[string]*model.Troop, len(troops))
	for _, t := range troops {
		byName[t.Name] = t
	}

	units := make(map[model.UnitKey][]*model.Assignment)
	var order []model.UnitKey
	for i, v := range views {
		t, ok := byName[v.Troop]
		if !ok {
			return nil, errors.InvalidInput(fmt.Sprintf("assignments[%d].troop", i), "未知队伍 "+v.Troop)
		}
		act, ok := catalog.Get(v.Activity)
		if !ok {
			return nil, errors.UnknownActivity(v.Troop, v.Activity).WithField("index", i)
		}
		slot := model.NewSlot(v.Day, v.Slot)
		start := model.NewSlot(v.Day, v.Start)
		if !slot.Valid() || !start.Valid() || v.Start > v.Slot {
			return nil, errors.InvalidInput(fmt.Sprintf("assignments[%d].slot", i), "无效时段 "+slot.String())
		}
		r := &model.Assignment{
			ID:       uuid.New(),
			Troop:    t,
			Activity: act,
			Slot:     slot,
			Start:    start,
			Offset:   v.Slot - v.Start,
			Forced:   v.Forced,
		}
		key := r.Key()
		if _, seen := units[key]; !seen {
			order = append(order, key)
		}
		units[key] = append(units[key], r)
	}
	for _, key := range order {
		ctx.AddUnit(units[key])
	}
	return ctx, nil
}
