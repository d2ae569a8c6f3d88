// Package solver 提供排班求解器
package solver

import (
	"context"
	"time"

	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/optimizer"
	"github.com/paiban/campsched/pkg/scheduler/repair"
)

// Solver 求解器接口
type Solver interface {
	// Solve 在排班存储上生成排班
	Solve(ctx context.Context, store *constraint.Context) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// Result 求解结果
type Result struct {
	Assignments      []*model.Assignment     `json:"assignments"`
	Statistics       *Statistics             `json:"statistics"`
	ConstraintResult *constraint.Result      `json:"constraint_result"`
	Search           *optimizer.SearchResult `json:"search,omitempty"`
	Repair           *repair.Report          `json:"repair,omitempty"`
	Duration         time.Duration           `json:"duration"`
	Success          bool                    `json:"success"`
	Message          string                  `json:"message,omitempty"`
}

// Statistics 排班统计
type Statistics struct {
	TotalRequests int      `json:"total_requests"`
	MetRequests   int      `json:"met_requests"`
	FillRate      float64  `json:"fill_rate"`
	Committed     int      `json:"committed"`
	Displaced     int      `json:"displaced"` // 被挤出后成功重新安排的单元
	Lost          int      `json:"lost"`      // 被挤出后未能重新安排的单元
	Relaxed       int      `json:"relaxed"`
	Forced        int      `json:"forced"`
	ForcedTroops  []string `json:"forced_troops,omitempty"`
	Phases        []string `json:"phases"`
}

// Options 求解选项
type Options struct {
	CoreRanks    int                           `json:"core_ranks"`    // 核心阶段处理的偏好排名数
	Top10Minimum int                           `json:"top10_minimum"` // 每支队伍前10偏好的最低满足数
	QueueLimit   int                           `json:"queue_limit"`   // 恢复队列容量
	Weights      optimizer.Weights             `json:"weights"`       // 时段评分权重
	Optimizer    *optimizer.OptimizationConfig `json:"optimizer"`     // 局部搜索配置
	SkipPolish   bool                          `json:"skip_polish"`   // 跳过优化与修复
}

// DefaultOptions 默认求解选项
func DefaultOptions() *Options {
	return &Options{
		CoreRanks:    10,
		Top10Minimum: 8,
		QueueLimit:   repair.DefaultQueueLimit,
		Weights:      optimizer.DefaultWeights(),
		Optimizer:    optimizer.DefaultOptConfig(),
	}
}
