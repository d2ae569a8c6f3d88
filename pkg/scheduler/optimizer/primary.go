package optimizer

import (
	"sort"

	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/stats"
)

// PrimaryDays 每个区域的主用日
type PrimaryDays map[string][]model.Day

// Has 该日是否是区域的主用日
func (p PrimaryDays) Has(area string, day model.Day) bool {
	for _, d := range p[area] {
		if d == day {
			return true
		}
	}
	return false
}

// ComputePrimaryDays 根据全部队伍的偏好计算区域主用日，每次运行计算一次
// 天数为 ceil(需求 / 日容量)；候选日依次按专员日出现次数、完整日优先于短日、
// 避开周五的区域把周五放最后排序
func ComputePrimaryDays(ctx *constraint.Context) PrimaryDays {
	demand := make(map[string]int)
	seeds := make(map[string]map[model.Day]int)
	avoidFriday := make(map[string]bool)

	for _, t := range ctx.Troops {
		for _, name := range t.Preferences {
			act, ok := ctx.Catalog.Get(name)
			if !ok || act.Area == "" {
				continue
			}
			demand[act.Area] += act.FullSlotsFor(t)
			if act.HasTag(model.TagAvoidFriday) {
				avoidFriday[act.Area] = true
			}
			if day, ok := ctx.Commissioners.DayFor(t.Commissioner, act); ok {
				if seeds[act.Area] == nil {
					seeds[act.Area] = make(map[model.Day]int)
				}
				seeds[act.Area][day]++
			}
		}
	}

	result := make(PrimaryDays, len(demand))
	for area, n := range demand {
		count := stats.MinDays(n, ctx.Catalog.CapacityOf(area))
		days := make([]model.Day, len(model.Days))
		copy(days, model.Days)
		freq := seeds[area]
		sort.SliceStable(days, func(i, j int) bool {
			a, b := days[i], days[j]
			if freq[a] != freq[b] {
				return freq[a] > freq[b]
			}
			if avoidFriday[area] && (a == model.Friday) != (b == model.Friday) {
				return b == model.Friday
			}
			if (a == model.ShortDay) != (b == model.ShortDay) {
				return b == model.ShortDay
			}
			return a < b
		})
		if count > len(days) {
			count = len(days)
		}
		result[area] = days[:count]
	}
	return result
}
