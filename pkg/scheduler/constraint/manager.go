package constraint

import (
	"fmt"
	"sort"
	"sync"

	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/model"
)

// Manager 约束管理器
type Manager struct {
	constraints []Constraint
	mu          sync.RWMutex
	logger      *logger.SchedulerLogger
}

// NewManager 创建约束管理器
func NewManager() *Manager {
	return &Manager{
		constraints: make([]Constraint, 0),
		logger:      logger.NewSchedulerLogger(),
	}
}

// Register 注册约束
func (m *Manager) Register(c Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 检查是否已存在同类型约束
	for i, existing := range m.constraints {
		if existing.Type() == c.Type() {
			m.constraints[i] = c // 替换
			return
		}
	}

	m.constraints = append(m.constraints, c)

	// 按类别和权重排序：硬约束在前，权重高的在前
	sort.SliceStable(m.constraints, func(i, j int) bool {
		ci, cj := m.constraints[i], m.constraints[j]
		if ci.Category() != cj.Category() {
			return ci.Category() == CategoryHard
		}
		return ci.Weight() > cj.Weight()
	})
}

// GetConstraint 获取约束
func (m *Manager) GetConstraint(t Type) Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.constraints {
		if c.Type() == t {
			return c
		}
	}
	return nil
}

// GetAll 获取所有约束
func (m *Manager) GetAll() []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Constraint, len(m.constraints))
	copy(result, m.constraints)
	return result
}

// GetByCategory 按类别获取约束
func (m *Manager) GetByCategory(cat Category) []Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Constraint
	for _, c := range m.constraints {
		if c.Category() == cat {
			result = append(result, c)
		}
	}
	return result
}

// CanPlace 校验候选放置，纯函数，不修改存储
// 按注册顺序检查，返回第一条拒绝原因；RelaxSoft 及以上跳过软约束
func (m *Manager) CanPlace(ctx *Context, troop *model.Troop, act *model.Activity, start model.TimeSlot, mode RelaxMode) Outcome {
	m.mu.RLock()
	constraints := m.constraints
	m.mu.RUnlock()

	p := &Placement{Troop: troop, Activity: act, Start: start, Mode: mode}
	for _, c := range constraints {
		if c.Category() == CategorySoft && mode.Relaxes(RelaxSoft) {
			continue
		}
		if out := c.Check(ctx, p); !out.Allowed {
			if out.Rule == "" {
				out.Rule = c.Type()
			}
			return out
		}
	}
	return Allow()
}

// Evaluate 评估整个排班方案
// 逐个单元临时移出后重新校验，严格模式下通过为合规，仅放宽后通过计为软违反
func (m *Manager) Evaluate(ctx *Context) *Result {
	result := &Result{
		IsValid:        true,
		HardViolations: make([]ViolationDetail, 0),
		SoftViolations: make([]ViolationDetail, 0),
	}

	units := ctx.Units()
	maxPenalty := 0

	for _, u := range units {
		maxPenalty += 100
		if u.Forced() {
			continue
		}

		key := u.Key()
		records := ctx.RemoveUnit(key)
		strict := m.CanPlace(ctx, u.Troop, u.Activity, u.Start, Strict)
		relaxed := strict
		if !strict.Allowed {
			relaxed = m.CanPlace(ctx, u.Troop, u.Activity, u.Start, IgnoreDayPin)
		}
		ctx.AddUnit(records)

		switch {
		case !relaxed.Allowed:
			result.IsValid = false
			d := m.violation(u, relaxed, "error", 100)
			result.HardViolations = append(result.HardViolations, d)
			result.TotalPenalty += d.Penalty
			m.logger.ConstraintViolation(string(relaxed.Rule), d.Message)
		case !strict.Allowed:
			d := m.violation(u, strict, "warning", 10)
			result.SoftViolations = append(result.SoftViolations, d)
			result.TotalPenalty += d.Penalty
		}
	}

	result.CalculateScore(maxPenalty)
	return result
}

func (m *Manager) violation(u *Unit, out Outcome, severity string, penalty int) ViolationDetail {
	name := string(out.Rule)
	if c := m.GetConstraint(out.Rule); c != nil {
		name = c.Name()
	}
	return ViolationDetail{
		ConstraintType: out.Rule,
		ConstraintName: name,
		Troop:          u.Troop.Name,
		Activity:       u.Activity.Name,
		Slot:           u.Start.String(),
		Reason:         out.Reason,
		Message:        fmt.Sprintf("%s 的 %s (%s) 违反约束: %s", u.Troop.Name, u.Activity.Name, u.Start, out.Reason),
		Severity:       severity,
		Penalty:        penalty,
	}
}

// Summary 硬、软约束数量
func (m *Manager) Summary() map[string]interface{} {
	hard := len(m.GetByCategory(CategoryHard))
	soft := len(m.GetByCategory(CategorySoft))
	return map[string]interface{}{
		"total": hard + soft,
		"hard":  hard,
		"soft":  soft,
	}
}
