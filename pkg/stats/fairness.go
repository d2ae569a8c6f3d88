package stats

import (
	"math"
	"sort"

	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	// 队伍满意度
	SatisfactionGini float64 `json:"satisfaction_gini"` // 满意度基尼系数 (0=完全公平, 1=完全不公平)
	SatisfactionMean float64 `json:"satisfaction_mean"` // 平均满意度 (0-100)
	MaxSatisfaction  float64 `json:"max_satisfaction"`
	MinSatisfaction  float64 `json:"min_satisfaction"`

	// 工作人员负载
	StaffLoadVariance float64        `json:"staff_load_variance"` // 各时段负载方差
	StaffLoadStdDev   float64        `json:"staff_load_std_dev"`
	MaxStaffLoad      float64        `json:"max_staff_load"`
	StaffLoadBySlot   map[string]int `json:"staff_load_by_slot"`

	// 队伍级别统计
	TroopStats []TroopStat `json:"troop_stats"`

	// 综合评分
	OverallFairnessScore float64 `json:"overall_fairness_score"` // 综合公平性评分 (0-100)
}

// TroopStat 队伍统计
type TroopStat struct {
	Troop        string  `json:"troop"`
	Satisfaction float64 `json:"satisfaction"` // 加权偏好满足率 (0-100)
	Activities   int     `json:"activities"`
	Deviation    float64 `json:"deviation"` // 与平均值的偏差百分比
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct {
	staffCeiling float64 // 用于负载评分的时段上限
}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{
		staffCeiling: float64(constraint.DefaultLimits().StaffCeiling),
	}
}

// Analyze 分析排班公平性
func (f *FairnessAnalyzer) Analyze(ctx *constraint.Context) *FairnessMetrics {
	metrics := &FairnessMetrics{
		StaffLoadBySlot: make(map[string]int),
	}
	if ctx.Limits.StaffCeiling > 0 {
		f.staffCeiling = float64(ctx.Limits.StaffCeiling)
	}

	// 队伍满意度
	satisfaction := make([]float64, 0, len(ctx.Troops))
	for _, t := range ctx.Troops {
		s := Satisfaction(ctx, t)
		satisfaction = append(satisfaction, s)
		metrics.TroopStats = append(metrics.TroopStats, TroopStat{
			Troop:        t.Name,
			Satisfaction: s,
			Activities:   len(ctx.TroopUnits(t.ID)),
		})
	}
	metrics.SatisfactionMean = f.calculateMean(satisfaction)
	metrics.MaxSatisfaction, metrics.MinSatisfaction = f.calculateRange(satisfaction)
	metrics.SatisfactionGini = f.calculateGini(satisfaction)
	for i := range metrics.TroopStats {
		if metrics.SatisfactionMean > 0 {
			metrics.TroopStats[i].Deviation = (metrics.TroopStats[i].Satisfaction - metrics.SatisfactionMean) / metrics.SatisfactionMean * 100
		}
	}

	// 时段负载
	loads := make([]float64, 0, model.TotalSlots())
	for _, s := range model.AllSlots() {
		load := ctx.StaffLoad(s)
		metrics.StaffLoadBySlot[s.String()] = load
		loads = append(loads, float64(load))
	}
	mean := f.calculateMean(loads)
	metrics.StaffLoadVariance = f.calculateVariance(loads, mean)
	metrics.StaffLoadStdDev = math.Sqrt(metrics.StaffLoadVariance)
	metrics.MaxStaffLoad, _ = f.calculateRange(loads)

	metrics.OverallFairnessScore = f.calculateOverallScore(metrics.SatisfactionGini, metrics.StaffLoadStdDev)
	return metrics
}

// Satisfaction 队伍的加权偏好满足率，排名越靠前权重越大
func Satisfaction(ctx *constraint.Context, t *model.Troop) float64 {
	if len(t.Preferences) == 0 {
		return 100
	}
	total, met := 0.0, 0.0
	for rank, name := range t.Preferences {
		w := 1.0 / float64(rank+1)
		total += w
		if ctx.HasActivity(t.ID, name) {
			met += w
		}
	}
	return met / total * 100
}

// calculateMean 计算平均值
func (f *FairnessAnalyzer) calculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateVariance 计算方差
func (f *FairnessAnalyzer) calculateVariance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// calculateRange 计算极值
func (f *FairnessAnalyzer) calculateRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// calculateGini 计算基尼系数
func (f *FairnessAnalyzer) calculateGini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	gini := 0.0
	for i, v := range sorted {
		gini += (2*float64(i+1) - float64(n) - 1) * v
	}

	gini = gini / (float64(n) * sum)
	return math.Max(0, math.Min(1, gini))
}

// calculateOverallScore 计算综合公平性评分
func (f *FairnessAnalyzer) calculateOverallScore(satisfactionGini, loadStdDev float64) float64 {
	const (
		satisfactionWeight = 0.7
		loadWeight         = 0.3
	)

	satisfactionScore := (1 - satisfactionGini) * 100

	// 负载标准差相对上限越小越好
	loadScore := 100.0
	if f.staffCeiling > 0 {
		loadScore = math.Max(0, 100-loadStdDev/f.staffCeiling*200)
	}

	score := satisfactionWeight*satisfactionScore + loadWeight*loadScore
	return math.Max(0, math.Min(100, score))
}
