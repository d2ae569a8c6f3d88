package model

import (
	"math"
)

// Zone 活动所在营地区域
type Zone string

const (
	ZoneBeach         Zone = "Beach"
	ZoneTower         Zone = "Tower"
	ZoneOutdoorSkills Zone = "Outdoor Skills"
	ZoneRifleRange    Zone = "Rifle Range"
	ZoneHandicrafts   Zone = "Handicrafts"
	ZoneNature        Zone = "Nature"
	ZoneDelta         Zone = "Delta"
	ZoneOffCamp       Zone = "Off Camp"
	ZoneCampsite      Zone = "Campsite"
)

// Tag 约束规则使用的活动分类标签
type Tag string

const (
	TagWet          Tag = "wet"           // 水上活动
	TagTowerODS     Tag = "tower_ods"     // 高处/干燥活动（攀岩塔与户外技能）
	TagAccuracy     Tag = "accuracy"      // 精准类（射击、射箭）
	TagThreeHour    Tag = "three_hour"    // 三小时营外活动
	TagBeachSlot    Tag = "beach_slot"    // 只能排在首尾时段的沙滩活动
	TagBeachStaff   Tag = "beach_staff"   // 需要沙滩工作人员
	TagFleet        Tag = "fleet"         // 占用独木舟船队
	TagStaffCluster Tag = "staff_cluster" // 工作人员聚集型活动，允许稍高的人员上限
	TagMandatory    Tag = "mandatory"     // 每支队伍每周必排
	TagConcurrent   Tag = "concurrent"    // 可与其他活动同时进行
	TagFiller       Tag = "filler"        // 中性填充活动
	TagAvoidFriday  Tag = "avoid_friday"  // 尽量不排周五
)

// CapacityKind 容量规则类型
type CapacityKind string

const (
	CapacityExclusive  CapacityKind = "exclusive"  // 每时段一支队伍
	CapacityShared     CapacityKind = "shared"     // 最多 MaxTroops 支队伍，且每队人数受限
	CapacityFleet      CapacityKind = "fleet"      // 每时段一支队伍，且船队总人数受限
	CapacityConcurrent CapacityKind = "concurrent" // 不限
)

// CapacityRule 活动容量规则
type CapacityRule struct {
	Kind         CapacityKind `json:"kind" yaml:"kind" validate:"omitempty,oneof=exclusive shared fleet concurrent"`
	MaxTroops    int          `json:"max_troops,omitempty" yaml:"max_troops,omitempty" validate:"gte=0"`
	MaxTroopSize int          `json:"max_troop_size,omitempty" yaml:"max_troop_size,omitempty" validate:"gte=0"`
}

// Activity 活动目录条目，运行期间不可变
type Activity struct {
	Name          string       `json:"name" yaml:"name" validate:"required"`
	Span          float64      `json:"span" yaml:"span" validate:"camp_span"`
	ExtendedSpan  float64      `json:"extended_span,omitempty" yaml:"extended_span,omitempty"`
	ExtendedAbove int          `json:"extended_above,omitempty" yaml:"extended_above,omitempty"`
	Zone          Zone         `json:"zone" yaml:"zone"`
	Area          string       `json:"area,omitempty" yaml:"area,omitempty"`
	Capacity      CapacityRule `json:"capacity" yaml:"capacity"`
	Staff         int          `json:"staff" yaml:"staff" validate:"gte=0"`
	Tags          []Tag        `json:"tags,omitempty" yaml:"tags,omitempty"`
	FixedDay      *Day         `json:"fixed_day,omitempty" yaml:"fixed_day,omitempty"`
	Conflicts     []string     `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
}

// HasTag 检查活动是否带有某标签
func (a *Activity) HasTag(tag Tag) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsConcurrent 是否允许任意多支队伍同时进行
func (a *Activity) IsConcurrent() bool {
	return a.Capacity.Kind == CapacityConcurrent || a.HasTag(TagConcurrent)
}

// IsMandatory 是否是每周必排活动
func (a *Activity) IsMandatory() bool {
	return a.HasTag(TagMandatory)
}

// IsWet 是否是水上活动
func (a *Activity) IsWet() bool {
	return a.HasTag(TagWet)
}

// SpanFor 返回该活动对某支队伍的实际时长（时段数，可为1.5）
func (a *Activity) SpanFor(t *Troop) float64 {
	if a.ExtendedSpan > 0 && t != nil && t.Scouts > a.ExtendedAbove {
		return a.ExtendedSpan
	}
	if a.Span <= 0 {
		return 1
	}
	return a.Span
}

// SlotsFor 该活动为某支队伍占用的时段数（向上取整）
func (a *Activity) SlotsFor(t *Troop) int {
	return int(math.Ceil(a.SpanFor(t)))
}

// FullSlotsFor 完整占用的时段数，1.5 时段的后半段不计入区域占用
func (a *Activity) FullSlotsFor(t *Troop) int {
	n := int(math.Floor(a.SpanFor(t)))
	if n < 1 {
		n = 1
	}
	return n
}

// ConflictsWith 同一时段不能与另一活动同时开放
func (a *Activity) ConflictsWith(name string) bool {
	for _, c := range a.Conflicts {
		if c == name {
			return true
		}
	}
	return false
}

// CanShare 是否允许多支队伍同时进行该活动
func (a *Activity) CanShare() bool {
	return a.Capacity.Kind == CapacityShared || a.Capacity.Kind == CapacityConcurrent
}
