package swap

import (
	"sort"

	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/stats"
)

// Recommender 候选互换生成器
type Recommender struct {
	evaluator *SwapEvaluator
}

// NewRecommender 创建候选互换生成器
func NewRecommender(evaluator *SwapEvaluator) *Recommender {
	return &Recommender{evaluator: evaluator}
}

// Recommendation 一条互换推荐
type Recommendation struct {
	Move    Move    `json:"move"`
	Benefit float64 `json:"benefit"`
}

// RecommendOptions 推荐选项
type RecommendOptions struct {
	AllowSameTroop  bool // 是否生成同队伍互换
	AllowCrossTroop bool // 是否生成跨队伍互换
	MaxCandidates   int  // 候选上限，0 表示不限
}

// DefaultRecommendOptions 返回默认选项
func DefaultRecommendOptions() *RecommendOptions {
	return &RecommendOptions{
		AllowSameTroop:  true,
		AllowCrossTroop: true,
	}
}

// HotAreas 存在超出天数或空档的区域
func HotAreas(ctx *constraint.Context) map[string]bool {
	hot := make(map[string]bool)
	for _, u := range stats.AreaReport(ctx) {
		if u.Excess > 0 || u.ClusterGaps > 0 {
			hot[u.Area] = true
		}
	}
	return hot
}

// Moves 按确定顺序生成候选互换
// 只保留至少涉及一个待改进区域，或能改善偏好排名的互换
func (r *Recommender) Moves(ctx *constraint.Context, options *RecommendOptions) []Move {
	if options == nil {
		options = DefaultRecommendOptions()
	}
	hot := HotAreas(ctx)

	var units []*constraint.Unit
	for _, u := range ctx.Units() {
		if u.Forced() || u.Activity.IsMandatory() {
			continue
		}
		units = append(units, u)
	}

	var moves []Move
	for i := 0; i < len(units); i++ {
		a := units[i]
		for j := i + 1; j < len(units); j++ {
			b := units[j]
			if len(a.Records) != len(b.Records) {
				continue
			}
			touchesHot := hot[a.Activity.Area] || hot[b.Activity.Area]

			if a.Troop.ID == b.Troop.ID {
				if options.AllowSameTroop && touchesHot && a.Start.Day != b.Start.Day {
					moves = append(moves, Move{Kind: SameTroop, A: a.Key(), B: b.Key()})
				}
				continue
			}
			if !options.AllowCrossTroop || a.Activity.Name == b.Activity.Name {
				continue
			}
			improves := a.Troop.RankOf(b.Activity.Name) < a.Rank() || b.Troop.RankOf(a.Activity.Name) < b.Rank()
			if touchesHot || improves {
				moves = append(moves, Move{Kind: CrossTroop, A: a.Key(), B: b.Key()})
			}
		}
		if options.MaxCandidates > 0 && len(moves) >= options.MaxCandidates {
			return moves[:options.MaxCandidates]
		}
	}
	return moves
}

// Recommend 评估候选互换，按收益从高到低返回有收益的互换
// 存储在返回前保持原状
func (r *Recommender) Recommend(ctx *constraint.Context, options *RecommendOptions) []Recommendation {
	var result []Recommendation
	for _, m := range r.Moves(ctx, options) {
		ev := r.evaluator.EvaluateSwap(ctx, m)
		if !ev.Feasible || ev.Benefit <= 1e-9 {
			continue
		}
		result = append(result, Recommendation{Move: m, Benefit: ev.Benefit})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Benefit > result[j].Benefit
	})
	return result
}
