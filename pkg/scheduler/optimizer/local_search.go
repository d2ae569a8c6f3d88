// Package optimizer 提供时段评分与局部搜索优化
package optimizer

import (
	"context"
	"sync"
	"time"

	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/event"
	"github.com/paiban/campsched/pkg/stats"
	"github.com/paiban/campsched/pkg/swap"
)

// OptimizationConfig 优化配置
type OptimizationConfig struct {
	MaxIterations int  `json:"max_iterations"`  // 最大迭代次数
	TabuSize      int  `json:"tabu_size"`       // 禁忌表大小
	MaxRankDrop   int  `json:"max_rank_drop"`   // 跨队伍互换允许的最大排名下降
	MaxCandidates int  `json:"max_candidates"`  // 每轮候选互换上限，0 表示不限
	StopOnPlateau bool `json:"stop_on_plateau"` // 某轮没有接受任何互换时停止
	AllowCross    bool `json:"allow_cross"`     // 是否允许跨队伍互换
}

// DefaultOptConfig 默认优化配置
func DefaultOptConfig() *OptimizationConfig {
	return &OptimizationConfig{
		MaxIterations: 20,
		TabuSize:      200,
		MaxRankDrop:   swap.DefaultMaxRankDrop,
		MaxCandidates: 5000,
		StopOnPlateau: true,
		AllowCross:    true,
	}
}

// SearchResult 优化结果
type SearchResult struct {
	Iterations   int           `json:"iterations"`
	Accepted     int           `json:"accepted"`
	ExcessBefore int           `json:"excess_before"`
	ExcessAfter  int           `json:"excess_after"`
	Elapsed      time.Duration `json:"elapsed"`
}

// SwapSearch 基于原子互换的局部搜索
type SwapSearch struct {
	config      *OptimizationConfig
	evaluator   *swap.SwapEvaluator
	recommender *swap.Recommender
	tabuList    *TabuList
	sink        event.Sink
	logger      *logger.SchedulerLogger
}

// NewSwapSearch 创建局部搜索优化器
func NewSwapSearch(config *OptimizationConfig, manager *constraint.Manager) *SwapSearch {
	if config == nil {
		config = DefaultOptConfig()
	}
	evaluator := swap.NewSwapEvaluator(manager, config.MaxRankDrop)
	return &SwapSearch{
		config:      config,
		evaluator:   evaluator,
		recommender: swap.NewRecommender(evaluator),
		tabuList:    NewTabuList(config.TabuSize),
		sink:        event.Discard{},
		logger:      logger.NewSchedulerLogger(),
	}
}

// SetSink 设置事件接收者
func (o *SwapSearch) SetSink(sink event.Sink) {
	if sink == nil {
		sink = event.Discard{}
	}
	o.sink = sink
}

// Optimize 在存储上原地执行互换，直到迭代上限或某轮没有改进
func (o *SwapSearch) Optimize(ctx context.Context, store *constraint.Context) (*SearchResult, error) {
	start := time.Now()
	result := &SearchResult{ExcessBefore: totalExcess(store)}
	options := &swap.RecommendOptions{
		AllowSameTroop:  true,
		AllowCrossTroop: o.config.AllowCross,
		MaxCandidates:   o.config.MaxCandidates,
	}

	for i := 0; i < o.config.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		result.Iterations++
		accepted := 0
		for _, m := range o.recommender.Moves(store, options) {
			key := m.Hash()
			if o.tabuList.Contains(key) {
				continue
			}
			ev, ok := o.evaluator.Execute(store, m)
			if !ok {
				continue
			}
			accepted++
			o.tabuList.Add(key)
			o.sink.Emit(event.Event{
				Kind:     event.RepairAction,
				Phase:    "optimize",
				Action:   string(m.Kind),
				Activity: m.A.Activity + "<->" + m.B.Activity,
				Slot:     m.A.Start.String() + "<->" + m.B.Start.String(),
			})
			o.logger.Base().Debug().
				Str("kind", string(m.Kind)).
				Float64("benefit", ev.Benefit).
				Msg("接受互换")
		}
		result.Accepted += accepted

		if o.config.StopOnPlateau && accepted == 0 {
			break
		}
	}

	result.ExcessAfter = totalExcess(store)
	result.Elapsed = time.Since(start)
	o.logger.Base().Info().
		Int("iterations", result.Iterations).
		Int("accepted", result.Accepted).
		Int("excess_before", result.ExcessBefore).
		Int("excess_after", result.ExcessAfter).
		Dur("elapsed", result.Elapsed).
		Msg("局部搜索优化完成")
	return result, nil
}

func totalExcess(store *constraint.Context) int {
	n := 0
	for _, v := range stats.ExcessDays(store) {
		n += v
	}
	return n
}

// TabuList 禁忌表（使用uint64哈希作为键提高性能）
type TabuList struct {
	items   map[uint64]struct{}
	order   []uint64
	maxSize int
	mu      sync.RWMutex
}

// NewTabuList 创建禁忌表
func NewTabuList(size int) *TabuList {
	if size <= 0 {
		size = 1
	}
	return &TabuList{
		items:   make(map[uint64]struct{}),
		order:   make([]uint64, 0, size),
		maxSize: size,
	}
}

// Add 添加到禁忌表
func (t *TabuList) Add(key uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[key]; exists {
		return
	}

	// 超出容量时移除最旧的
	if len(t.order) >= t.maxSize {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.items, oldest)
	}

	t.items[key] = struct{}{}
	t.order = append(t.order, key)
}

// Contains 检查是否在禁忌表中
func (t *TabuList) Contains(key uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.items[key]
	return exists
}

// Len 禁忌表当前大小
func (t *TabuList) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Clear 清空禁忌表
func (t *TabuList) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[uint64]struct{})
	t.order = t.order[:0]
}
