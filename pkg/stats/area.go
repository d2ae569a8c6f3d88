package stats

import (
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// AreaUsage 区域使用情况
type AreaUsage struct {
	Area          string      `json:"area"`
	InstanceSlots int         `json:"instance_slots"` // 全周活动实例时段数
	Days          []model.Day `json:"days"`           // 有占用的日期
	MinDays       int         `json:"min_days"`       // 理论最少天数
	Excess        int         `json:"excess"`         // 超出理论最少的天数
	ClusterGaps   int         `json:"cluster_gaps"`   // 同日占用之间的空档数
}

// perDaySlots 计算区域日容量时使用的每日时段数（取完整日）
const perDaySlots = 3

// AnalyzeArea 统计单个区域
func AnalyzeArea(ctx *constraint.Context, area string) AreaUsage {
	u := AreaUsage{Area: area}
	for _, day := range model.Days {
		used := 0
		for _, s := range model.SlotsOn(day) {
			used += ctx.AreaInstances(area, s)
		}
		if used > 0 {
			u.Days = append(u.Days, day)
			u.InstanceSlots += used
		}
		u.ClusterGaps += dayGaps(ctx, area, day)
	}
	u.MinDays = MinDays(u.InstanceSlots, ctx.Catalog.CapacityOf(area))
	if excess := len(u.Days) - u.MinDays; excess > 0 {
		u.Excess = excess
	}
	return u
}

// MinDays 容纳 demand 个实例时段所需的最少天数
func MinDays(demand, capacity int) int {
	if demand <= 0 {
		return 0
	}
	if capacity <= 0 {
		capacity = 1
	}
	perDay := capacity * perDaySlots
	return (demand + perDay - 1) / perDay
}

// dayGaps 区域当天首尾占用之间的空闲时段数
func dayGaps(ctx *constraint.Context, area string, day model.Day) int {
	first, last := -1, -1
	slots := model.SlotsOn(day)
	for i, s := range slots {
		if ctx.AreaInstances(area, s) > 0 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0
	}
	gaps := 0
	for i := first + 1; i < last; i++ {
		if ctx.AreaInstances(area, slots[i]) == 0 {
			gaps++
		}
	}
	return gaps
}

// AreaReport 统计所有有占用的区域（按名称排序）
func AreaReport(ctx *constraint.Context) []AreaUsage {
	var result []AreaUsage
	for _, area := range ctx.Catalog.Areas() {
		u := AnalyzeArea(ctx, area)
		if u.InstanceSlots == 0 {
			continue
		}
		result = append(result, u)
	}
	return result
}

// ExcessDays 返回超出理论最少天数的区域
func ExcessDays(ctx *constraint.Context) map[string]int {
	result := make(map[string]int)
	for _, u := range AreaReport(ctx) {
		if u.Excess > 0 {
			result[u.Area] = u.Excess
		}
	}
	return result
}

// AreaCost 区域目标值：超出天数与空档的加权和，越低越好
func AreaCost(ctx *constraint.Context, area string, excessWeight, gapWeight float64) float64 {
	if area == "" {
		return 0
	}
	u := AnalyzeArea(ctx, area)
	return excessWeight*float64(u.Excess) + gapWeight*float64(u.ClusterGaps)
}
