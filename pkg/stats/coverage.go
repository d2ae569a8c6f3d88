// Package stats 提供排班统计分析功能
package stats

import (
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// 统计使用的偏好区间
const (
	Top5  = 5
	Top10 = 10
)

// CoverageMetrics 偏好覆盖指标
type CoverageMetrics struct {
	// 整体
	TotalRequests   int     `json:"total_requests"`   // 全部偏好数
	MetRequests     int     `json:"met_requests"`     // 已满足偏好数
	OverallCoverage float64 `json:"overall_coverage"` // 整体满足率 (%)

	// 前列偏好
	UnmetTop5  int `json:"unmet_top5"`
	UnmetTop10 int `json:"unmet_top10"`

	// 网格完整性
	Gaps   int `json:"gaps"`   // 空闲时段数
	Forced int `json:"forced"` // 强制插入的单元数

	// 队伍级别
	TroopCoverage []TroopCoverage `json:"troop_coverage"`

	// 每日活动实例数
	DailyLoad map[string]int `json:"daily_load"`
}

// TroopCoverage 单个队伍的偏好覆盖情况
type TroopCoverage struct {
	Troop      string   `json:"troop"`
	Requested  int      `json:"requested"`
	Met        int      `json:"met"`
	MetTop5    int      `json:"met_top5"`
	MetTop10   int      `json:"met_top10"`
	UnmetTop5  []string `json:"unmet_top5,omitempty"`
	UnmetTop10 []string `json:"unmet_top10,omitempty"`
	Gaps       int      `json:"gaps"`
}

// CoverageAnalyzer 偏好覆盖分析器
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

// Analyze 分析排班存储中的偏好覆盖
func (c *CoverageAnalyzer) Analyze(ctx *constraint.Context) *CoverageMetrics {
	metrics := &CoverageMetrics{
		TroopCoverage: make([]TroopCoverage, 0, len(ctx.Troops)),
		DailyLoad:     make(map[string]int),
	}
	if len(ctx.Troops) == 0 {
		metrics.OverallCoverage = 100
		return metrics
	}

	for _, t := range ctx.Troops {
		tc := c.AnalyzeTroop(ctx, t)
		metrics.TotalRequests += tc.Requested
		metrics.MetRequests += tc.Met
		metrics.UnmetTop5 += len(tc.UnmetTop5)
		metrics.UnmetTop10 += len(tc.UnmetTop10)
		metrics.Gaps += tc.Gaps
		metrics.TroopCoverage = append(metrics.TroopCoverage, tc)
	}

	for _, u := range ctx.Units() {
		if u.Forced() {
			metrics.Forced++
		}
		metrics.DailyLoad[u.Start.Day.String()]++
	}

	if metrics.TotalRequests > 0 {
		metrics.OverallCoverage = float64(metrics.MetRequests) / float64(metrics.TotalRequests) * 100
	} else {
		metrics.OverallCoverage = 100
	}
	return metrics
}

// AnalyzeTroop 分析单个队伍
func (c *CoverageAnalyzer) AnalyzeTroop(ctx *constraint.Context, t *model.Troop) TroopCoverage {
	tc := TroopCoverage{
		Troop:     t.Name,
		Requested: len(t.Preferences),
		Gaps:      len(ctx.EmptyCells(t.ID)),
	}
	for rank, name := range t.Preferences {
		met := ctx.HasActivity(t.ID, name)
		if met {
			tc.Met++
		}
		if rank < Top5 {
			if met {
				tc.MetTop5++
			} else {
				tc.UnmetTop5 = append(tc.UnmetTop5, name)
			}
		}
		if rank < Top10 {
			if met {
				tc.MetTop10++
			} else {
				tc.UnmetTop10 = append(tc.UnmetTop10, name)
			}
		}
	}
	return tc
}

// UnmetWithin 统计所有队伍前 n 个偏好中未满足的数量
func UnmetWithin(ctx *constraint.Context, n int) int {
	count := 0
	for _, t := range ctx.Troops {
		for rank, name := range t.Preferences {
			if rank >= n {
				break
			}
			if !ctx.HasActivity(t.ID, name) {
				count++
			}
		}
	}
	return count
}
