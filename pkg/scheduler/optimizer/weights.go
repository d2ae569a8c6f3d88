package optimizer

// Term 时段评分项
type Term string

const (
	TermTroopDay        Term = "troop_day"        // 队伍当天已有活动
	TermAreaDay         Term = "area_day"         // 区域当天已被使用
	TermAdjacency       Term = "adjacency"        // 区域在相邻时段有占用
	TermDayCompletion   Term = "day_completion"   // 放置后队伍当天排满
	TermGapClosing      Term = "gap_closing"      // 填补区域当天的空档
	TermStaffLoad       Term = "staff_load"       // 时段工作人员负载占上限比例
	TermPrimaryDay      Term = "primary_day"      // 区域的主用日
	TermCommissionerDay Term = "commissioner_day" // 专员负责日
	TermFridayPenalty   Term = "friday_penalty"   // 避开周五的活动落在周五
)

// Terms 评分项的固定求和顺序
var Terms = []Term{
	TermTroopDay,
	TermAreaDay,
	TermAdjacency,
	TermDayCompletion,
	TermGapClosing,
	TermStaffLoad,
	TermPrimaryDay,
	TermCommissionerDay,
	TermFridayPenalty,
}

// Weights 评分项权重表
type Weights map[Term]float64

// DefaultWeights 默认权重
func DefaultWeights() Weights {
	return Weights{
		TermTroopDay:        0.5,
		TermAreaDay:         3,
		TermAdjacency:       2,
		TermDayCompletion:   1,
		TermGapClosing:      4,
		TermStaffLoad:       -2,
		TermPrimaryDay:      5,
		TermCommissionerDay: 8,
		TermFridayPenalty:   -6,
	}
}

// Merge 用 overrides 覆盖同名权重，返回新表
func (w Weights) Merge(overrides map[string]float64) Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	for k, v := range overrides {
		out[Term(k)] = v
	}
	return out
}

// Sum 按固定顺序求加权和
func (w Weights) Sum(values map[Term]float64) float64 {
	total := 0.0
	for _, t := range Terms {
		total += w[t] * values[t]
	}
	return total
}
