// Package swap 提供单元互换功能
package swap

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/stats"
)

// Kind 互换类型
type Kind string

const (
	// SameTroop 同一队伍的两个单元交换时段
	SameTroop Kind = "same_troop"
	// CrossTroop 两支队伍的单元原地交换活动
	CrossTroop Kind = "cross_troop"
)

// DefaultMaxRankDrop 互换允许的最大排名下降
const DefaultMaxRankDrop = 3

// Move 一次互换
type Move struct {
	Kind Kind
	A    model.UnitKey
	B    model.UnitKey
}

// Hash 互换的哈希，用于禁忌表 (FNV-1a)
func (m Move) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(m.Kind))
	for _, k := range []model.UnitKey{m.A, m.B} {
		h.Write(k.TroopID[:])
		h.Write([]byte(k.Activity))
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(k.Start.Ordinal()))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// target 互换后的一半
type target struct {
	troop *model.Troop
	act   *model.Activity
	start model.TimeSlot
}

// Weights 互换收益权重
type Weights struct {
	Excess float64 `json:"excess"` // 每个超出天数
	Gap    float64 `json:"gap"`    // 每个区域空档
	Rank   float64 `json:"rank"`   // 每一级偏好排名
}

// DefaultWeights 默认互换收益权重
func DefaultWeights() Weights {
	return Weights{Excess: 10, Gap: 3, Rank: 1}
}

// SwapEvaluation 互换评估结果
type SwapEvaluation struct {
	Feasible bool        `json:"feasible"`
	Benefit  float64     `json:"benefit"` // 目标值下降量，正数为改进
	Issues   []SwapIssue `json:"issues"`
	Impact   *SwapImpact `json:"impact"`
}

// SwapIssue 互换问题
type SwapIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // error/warning
	Message  string `json:"message"`
}

// SwapImpact 互换影响
type SwapImpact struct {
	RankChangeA int     `json:"rank_change_a"`
	RankChangeB int     `json:"rank_change_b"`
	CostBefore  float64 `json:"cost_before"`
	CostAfter   float64 `json:"cost_after"`
}

// SwapEvaluator 互换评估器
type SwapEvaluator struct {
	manager     *constraint.Manager
	weights     Weights
	maxRankDrop int
}

// NewSwapEvaluator 创建互换评估器
func NewSwapEvaluator(cm *constraint.Manager, maxRankDrop int) *SwapEvaluator {
	if maxRankDrop < 0 {
		maxRankDrop = DefaultMaxRankDrop
	}
	return &SwapEvaluator{
		manager:     cm,
		weights:     DefaultWeights(),
		maxRankDrop: maxRankDrop,
	}
}

// EvaluateSwap 评估互换，存储在返回前恢复原状
func (e *SwapEvaluator) EvaluateSwap(ctx *constraint.Context, m Move) *SwapEvaluation {
	result, undo := e.apply(ctx, m)
	if undo != nil {
		undo()
	}
	return result
}

// Execute 评估并在可行且有收益时提交互换
// 返回是否已提交；未提交时存储保持原状
func (e *SwapEvaluator) Execute(ctx *constraint.Context, m Move) (*SwapEvaluation, bool) {
	result, undo := e.apply(ctx, m)
	if undo == nil {
		return result, false
	}
	if !result.Feasible || result.Benefit <= 1e-9 {
		undo()
		return result, false
	}
	return result, true
}

// apply 原子地执行互换：先移除两个单元，两半都通过严格校验才落地
// 返回的 undo 可把存储恢复到互换前；互换未落地时 undo 为 nil
func (e *SwapEvaluator) apply(ctx *constraint.Context, m Move) (*SwapEvaluation, func()) {
	result := &SwapEvaluation{
		Feasible: true,
		Issues:   make([]SwapIssue, 0),
		Impact:   &SwapImpact{},
	}
	fail := func(typ, msg string) (*SwapEvaluation, func()) {
		result.Feasible = false
		result.Issues = append(result.Issues, SwapIssue{Type: typ, Severity: "error", Message: msg})
		return result, nil
	}

	// 1. 基础检查
	ua, ub := ctx.Unit(m.A), ctx.Unit(m.B)
	if ua == nil || ub == nil || m.A == m.B {
		return fail("invalid_move", "单元不存在")
	}
	if ua.Forced() || ub.Forced() || ua.Activity.IsMandatory() || ub.Activity.IsMandatory() {
		return fail("protected", "受保护单元不可互换")
	}
	if len(ua.Records) != len(ub.Records) {
		return fail("span_mismatch", "单元时长不同")
	}

	ta, tb, ok := targets(m.Kind, ua, ub)
	if !ok {
		return fail("invalid_move", "互换类型与单元不匹配")
	}

	// 2. 排名检查
	result.Impact.RankChangeA = ta.troop.RankOf(ta.act.Name) - ua.Rank()
	result.Impact.RankChangeB = tb.troop.RankOf(tb.act.Name) - ub.Rank()
	if m.Kind == CrossTroop {
		if result.Impact.RankChangeA > e.maxRankDrop || result.Impact.RankChangeB > e.maxRankDrop {
			return fail("rank_drop", "偏好排名下降过多")
		}
		if losesTier(ua.Rank(), ta.troop.RankOf(ta.act.Name)) || losesTier(ub.Rank(), tb.troop.RankOf(tb.act.Name)) {
			return fail("rank_tier", "互换会使前列偏好落空")
		}
	}

	areas := affectedAreas(ua.Activity, ub.Activity)
	result.Impact.CostBefore = e.cost(ctx, areas, ua.Rank(), ub.Rank())

	// 3. 移除两个单元后校验两半
	recA := ctx.RemoveUnit(m.A)
	recB := ctx.RemoveUnit(m.B)
	restore := func() {
		ctx.AddUnit(recA)
		ctx.AddUnit(recB)
	}

	if out := e.manager.CanPlace(ctx, ta.troop, ta.act, ta.start, constraint.Strict); !out.Allowed {
		restore()
		return fail(string(out.Rule), "前半互换不可行: "+string(out.Reason))
	}
	newA, ok := ctx.PlaceUnit(ta.troop, ta.act, ta.start, false)
	if !ok {
		restore()
		return fail("span_overflow", "前半互换超出当天")
	}
	if out := e.manager.CanPlace(ctx, tb.troop, tb.act, tb.start, constraint.Strict); !out.Allowed {
		ctx.RemoveUnit(newA.Key())
		restore()
		return fail(string(out.Rule), "后半互换不可行: "+string(out.Reason))
	}
	newB, ok := ctx.PlaceUnit(tb.troop, tb.act, tb.start, false)
	if !ok {
		ctx.RemoveUnit(newA.Key())
		restore()
		return fail("span_overflow", "后半互换超出当天")
	}

	// 4. 计算收益
	result.Impact.CostAfter = e.cost(ctx, areas, newA.Rank(), newB.Rank())
	result.Benefit = result.Impact.CostBefore - result.Impact.CostAfter

	undo := func() {
		ctx.RemoveUnit(newA.Key())
		ctx.RemoveUnit(newB.Key())
		restore()
	}
	return result, undo
}

// targets 计算互换后的两半
func targets(kind Kind, ua, ub *constraint.Unit) (target, target, bool) {
	switch kind {
	case SameTroop:
		if ua.Troop.ID != ub.Troop.ID || ua.Start == ub.Start {
			return target{}, target{}, false
		}
		return target{troop: ua.Troop, act: ua.Activity, start: ub.Start},
			target{troop: ub.Troop, act: ub.Activity, start: ua.Start}, true
	case CrossTroop:
		if ua.Troop.ID == ub.Troop.ID || ua.Activity.Name == ub.Activity.Name {
			return target{}, target{}, false
		}
		return target{troop: ua.Troop, act: ub.Activity, start: ua.Start},
			target{troop: ub.Troop, act: ua.Activity, start: ub.Start}, true
	}
	return target{}, target{}, false
}

// losesTier 互换后原本在前5或前10的偏好被区间外的活动替换
func losesTier(before, after int) bool {
	for _, tier := range []int{stats.Top5, stats.Top10} {
		if before < tier && after >= tier {
			return true
		}
	}
	return false
}

func affectedAreas(acts ...*model.Activity) []string {
	var areas []string
	seen := make(map[string]bool)
	for _, a := range acts {
		if a.Area == "" || seen[a.Area] {
			continue
		}
		seen[a.Area] = true
		areas = append(areas, a.Area)
	}
	return areas
}

// rankCap 排名代价上限，未列出的活动不压倒区域项
const rankCap = 20

// cost 受影响区域的目标值加上排名代价，越低越好
func (e *SwapEvaluator) cost(ctx *constraint.Context, areas []string, ranks ...int) float64 {
	total := 0.0
	for _, area := range areas {
		total += stats.AreaCost(ctx, area, e.weights.Excess, e.weights.Gap)
	}
	for _, r := range ranks {
		if r > rankCap {
			r = rankCap
		}
		total += e.weights.Rank * float64(r)
	}
	return total
}
