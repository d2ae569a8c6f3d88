// Package constraints 营地排班规则库，供 API 与命令行展示
package constraints

import (
	"strconv"

	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// ConstraintParam 规则参数定义
type ConstraintParam struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"` // int, float, string, bool, array
	Description string `json:"description" yaml:"description"`
	Default     string `json:"default,omitempty" yaml:"default,omitempty"`
	Min         string `json:"min,omitempty" yaml:"min,omitempty"`
	Max         string `json:"max,omitempty" yaml:"max,omitempty"`
	Env         string `json:"env,omitempty" yaml:"env,omitempty"` // 对应的环境变量
}

// ConstraintDefinition 规则定义
type ConstraintDefinition struct {
	Name        constraint.Type   `json:"name" yaml:"name"`
	DisplayName string            `json:"display_name" yaml:"display_name"`
	Type        string            `json:"type" yaml:"type"`         // hard 硬约束, soft 软约束
	Category    string            `json:"category" yaml:"category"` // 分类
	Description string            `json:"description" yaml:"description"`
	Rulesets    []string          `json:"rulesets" yaml:"rulesets"`   // 适用的营期规则集
	Relaxable   bool              `json:"relaxable" yaml:"relaxable"` // 放宽模式下是否跳过
	Params      []ConstraintParam `json:"params" yaml:"params"`
}

// LibraryResponse 规则库响应
type LibraryResponse struct {
	Library []ConstraintDefinition `json:"library" yaml:"library"`
}

var bothRulesets = []string{"tc", "voyageur"}

func itoa(v int) string { return strconv.Itoa(v) }

// GetLibrary 按当前营地常量返回完整规则库
func GetLibrary(limits constraint.Limits) []ConstraintDefinition {
	return []ConstraintDefinition{
		// 时段与单元
		{
			Name:        constraint.TypeSlotAvailability,
			DisplayName: "时段占用",
			Type:        "hard",
			Category:    "时段",
			Description: "队伍在同一时段只能进行一项活动，可并行活动除外。多时段活动必须连续且不跨日。",
			Rulesets:    bothRulesets,
		},
		{
			Name:        constraint.TypeDuplicate,
			DisplayName: "活动不重复",
			Type:        "hard",
			Category:    "时段",
			Description: "一支队伍每周每项活动最多安排一次，填充活动除外。",
			Rulesets:    bothRulesets,
		},
		{
			Name:        constraint.TypeFixedDay,
			DisplayName: "固定日期活动",
			Type:        "hard",
			Category:    "日期",
			Description: "Reflection 固定在周五，其他带固定日期的活动只能排在对应日期。",
			Rulesets:    bothRulesets,
		},
		{
			Name:        constraint.TypeDayPin,
			DisplayName: "队伍指定日期",
			Type:        "hard",
			Category:    "日期",
			Description: "队伍为某项活动指定的日期必须遵守。只有必排活动在恢复流程中可以放宽。",
			Rulesets:    bothRulesets,
			Relaxable:   true,
		},
		// 容量
		{
			Name:        constraint.TypeAreaCapacity,
			DisplayName: "场地独占",
			Type:        "hard",
			Category:    "容量",
			Description: "每个场地每时段的活动实例数不超过其容量。共享型活动允许多支队伍同场，但每队人数受限。",
			Rulesets:    bothRulesets,
			Params: []ConstraintParam{
				{Name: "shared_troop_size", Type: "int", Description: "共享活动每队人数上限", Default: itoa(limits.SharedTroopSize), Env: "CAMP_SHARED_TROOP_SIZE"},
			},
		},
		{
			Name:        constraint.TypeFleetCapacity,
			DisplayName: "独木舟船队容量",
			Type:        "hard",
			Category:    "容量",
			Description: "同一时段所有占用船队的活动合计人数不超过船队容量。",
			Rulesets:    bothRulesets,
			Params: []ConstraintParam{
				{Name: "fleet_capacity", Type: "int", Description: "船队总人数", Default: itoa(limits.FleetCapacity), Env: "CAMP_FLEET_CAPACITY"},
			},
		},
		{
			Name:        constraint.TypeStaffCeiling,
			DisplayName: "工作人员上限",
			Type:        "hard",
			Category:    "容量",
			Description: "每时段活动所需工作人员总数不超过上限，工作人员聚集型活动使用较高的上限。",
			Rulesets:    bothRulesets,
			Params: []ConstraintParam{
				{Name: "staff_ceiling", Type: "int", Description: "常规上限", Default: itoa(limits.StaffCeiling), Env: "CAMP_STAFF_CEILING"},
				{Name: "staff_cluster_ceiling", Type: "int", Description: "聚集型活动上限", Default: itoa(limits.StaffClusterCeiling), Env: "CAMP_STAFF_CLUSTER_CEILING"},
			},
		},
		{
			Name:        constraint.TypeBeachStaffCap,
			DisplayName: "沙滩工作人员上限",
			Type:        "hard",
			Category:    "容量",
			Description: "每时段需要沙滩工作人员的活动数不超过上限。",
			Rulesets:    bothRulesets,
			Params: []ConstraintParam{
				{Name: "beach_staff_cap", Type: "int", Description: "每时段上限", Default: itoa(limits.BeachStaffCap), Env: "CAMP_BEACH_STAFF_CAP"},
			},
		},
		// 顺序
		{
			Name:        constraint.TypeWetTowerAdjacent,
			DisplayName: "水上与攀岩不相邻",
			Type:        "hard",
			Category:    "顺序",
			Description: "水上活动不能紧接在攀岩塔或户外技能活动之前。",
			Rulesets:    bothRulesets,
		},
		{
			Name:        constraint.TypeWetDryWet,
			DisplayName: "湿-干-湿",
			Type:        "hard",
			Category:    "顺序",
			Description: "同一天不能出现水上、非水上、水上的交替安排。",
			Rulesets:    bothRulesets,
		},
		{
			Name:        constraint.TypeBeachSlot,
			DisplayName: "沙滩时段",
			Type:        "hard",
			Category:    "顺序",
			Description: "部分沙滩活动只能排在当天的首个或最后一个时段。",
			Rulesets:    bothRulesets,
			Relaxable:   true,
			Params: []ConstraintParam{
				{Name: "beach_relax_rank", Type: "int", Description: "排名不低于该值的请求可放宽，0 表示不放宽", Default: itoa(limits.BeachRelaxRank), Min: "0", Env: "CAMP_BEACH_RELAX_RANK"},
			},
		},
		// 每日与每周
		{
			Name:        constraint.TypeSameDayArea,
			DisplayName: "同场地每日一次",
			Type:        "hard",
			Category:    "每日",
			Description: "一支队伍同一天不在同一场地安排两项活动。",
			Rulesets:    bothRulesets,
		},
		{
			Name:        constraint.TypeAccuracyPerDay,
			DisplayName: "精准类活动每日上限",
			Type:        "hard",
			Category:    "每日",
			Description: "射击、射箭等精准类活动每天最多安排的数量。",
			Rulesets:    bothRulesets,
			Params: []ConstraintParam{
				{Name: "max_accuracy_per_day", Type: "int", Description: "每日上限", Default: itoa(limits.MaxAccuracyPerDay), Min: "1", Env: "CAMP_MAX_ACCURACY_PER_DAY"},
			},
		},
		{
			Name:        constraint.TypeThreeHourLimit,
			DisplayName: "三小时营外活动上限",
			Type:        "hard",
			Category:    "每周",
			Description: "每周三小时营外活动的数量上限。",
			Rulesets:    bothRulesets,
			Params: []ConstraintParam{
				{Name: "max_three_hour", Type: "int", Description: "每周上限", Default: itoa(limits.MaxThreeHour), Min: "0", Env: "CAMP_MAX_THREE_HOUR"},
			},
		},
		{
			Name:        constraint.TypeSameDayPair,
			DisplayName: "互斥活动不同日",
			Type:        "hard",
			Category:    "每日",
			Description: "目录中的硬互斥活动对不能排在同一天。",
			Rulesets:    bothRulesets,
		},
		// 软约束
		{
			Name:        constraint.TypeSoftPair,
			DisplayName: "尽量不同日",
			Type:        "soft",
			Category:    "偏好",
			Description: "软互斥活动对尽量不排在同一天。",
			Rulesets:    bothRulesets,
			Relaxable:   true,
			Params: []ConstraintParam{
				{Name: "soft_pair_weight", Type: "int", Description: "优化权重", Default: "40", Min: "0", Max: "100"},
			},
		},
		{
			Name:        constraint.TypeDeltaOrder,
			DisplayName: "Delta 先于 Super Troop",
			Type:        "soft",
			Category:    "偏好",
			Description: "同时安排 Delta 与 Super Troop 的队伍，Delta 尽量排在前面。",
			Rulesets:    bothRulesets,
			Relaxable:   true,
			Params: []ConstraintParam{
				{Name: "delta_order_weight", Type: "int", Description: "优化权重", Default: "30", Min: "0", Max: "100"},
			},
		},
	}
}

// Find 按类型查找规则定义
func Find(library []ConstraintDefinition, t constraint.Type) (ConstraintDefinition, bool) {
	for _, def := range library {
		if def.Name == t {
			return def, true
		}
	}
	return ConstraintDefinition{}, false
}
