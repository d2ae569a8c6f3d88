// Package scheduler 排班引擎入口：组装约束、求解器、修复与最终校验
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/constraint/builtin"
	"github.com/paiban/campsched/pkg/scheduler/event"
	"github.com/paiban/campsched/pkg/scheduler/solver"
	"github.com/paiban/campsched/pkg/stats"
	"github.com/paiban/campsched/pkg/validator"
)

// DefaultForcedWarnThreshold 需要强制插入的队伍数超过该值时给出警告
const DefaultForcedWarnThreshold = 2

// Options 引擎选项
type Options struct {
	Voyageur            bool              `json:"voyageur"`
	Catalog             *model.Catalog    `json:"-"`
	Limits              constraint.Limits `json:"limits"`
	Solver              *solver.Options   `json:"solver"`
	ForcedWarnThreshold int               `json:"forced_warn_threshold"`
}

// DefaultOptions 默认引擎选项
func DefaultOptions() *Options {
	return &Options{
		Catalog:             model.DefaultCatalog(),
		Limits:              constraint.DefaultLimits(),
		Solver:              solver.DefaultOptions(),
		ForcedWarnThreshold: DefaultForcedWarnThreshold,
	}
}

// Diagnostics 运行诊断
type Diagnostics struct {
	UnmetTop5             int                    `json:"unmet_top5"`
	UnmetTop10            int                    `json:"unmet_top10"`
	Gaps                  int                    `json:"gaps"`
	ExclusivityViolations int                    `json:"exclusivity_violations"`
	ExcessDays            map[string]int         `json:"excess_days"`
	Forced                int                    `json:"forced"`
	ForcedTroops          []string               `json:"forced_troops,omitempty"`
	Relaxed               int                    `json:"relaxed"`
	Warnings              []string               `json:"warnings,omitempty"`
	Coverage              *stats.CoverageMetrics `json:"coverage"`
	Fairness              *stats.FairnessMetrics `json:"fairness"`
	Areas                 []stats.AreaUsage      `json:"areas"`
}

// Result 一次排班运行的结果
type Result struct {
	RunID       uuid.UUID              `json:"run_id"`
	Voyageur    bool                   `json:"voyageur"`
	Troops      []*model.Troop         `json:"troops"`
	Assignments []*model.Assignment    `json:"-"`
	Schedule    []model.AssignmentView `json:"schedule"`
	Diagnostics *Diagnostics           `json:"diagnostics"`
	Conflicts   []validator.Conflict   `json:"conflicts,omitempty"`
	Statistics  *solver.Statistics     `json:"statistics"`
	Success     bool                   `json:"success"`
	Message     string                 `json:"message,omitempty"`
	Duration    time.Duration          `json:"duration"`
}

// Engine 排班引擎，单次运行单线程且确定
type Engine struct {
	options *Options
	sink    event.Sink
	logger  *logger.SchedulerLogger
}

// NewEngine 创建排班引擎
func NewEngine(options *Options) *Engine {
	if options == nil {
		options = DefaultOptions()
	}
	if options.Catalog == nil {
		options.Catalog = model.DefaultCatalog()
	}
	if options.Solver == nil {
		options.Solver = solver.DefaultOptions()
	}
	return &Engine{
		options: options,
		sink:    event.Discard{},
		logger:  logger.NewSchedulerLogger(),
	}
}

// SetSink 设置事件接收者
func (e *Engine) SetSink(sink event.Sink) {
	if sink == nil {
		sink = event.Discard{}
	}
	e.sink = sink
}

// Options 返回引擎选项
func (e *Engine) Options() *Options {
	return e.options
}

// Generate 为一周生成排班
// 修复后仍有不变量被破坏时，返回结果的同时返回 CodeInvariantViolation 错误
func (e *Engine) Generate(ctx context.Context, troops []*model.Troop) (*Result, error) {
	startTime := time.Now()
	if err := e.checkInput(troops); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:    uuid.New(),
		Voyageur: e.options.Voyageur,
		Troops:   troops,
	}
	e.logger.StartSchedule(result.RunID.String(), len(troops), e.options.Voyageur)

	store := constraint.NewContext(e.options.Catalog, troops, e.options.Limits)
	store.SetVoyageur(e.options.Voyageur)
	manager := builtin.NewDefaultManager(e.options.Limits)
	e.logger.Base().Debug().Fields(manager.Summary()).Msg("约束规则已加载")

	pipeline := solver.NewPipeline(manager, e.options.Solver)
	pipeline.SetSink(e.sink)
	solved, err := pipeline.Solve(ctx, store)
	if err != nil {
		return nil, err
	}
	result.Statistics = solved.Statistics

	for _, a := range store.Assignments {
		result.Assignments = append(result.Assignments, a)
		result.Schedule = append(result.Schedule, a.View())
	}
	result.Conflicts = validator.NewConflictDetector(nil).DetectAll(store)
	result.Diagnostics = e.diagnose(store, solved.Statistics, result.Conflicts)
	result.Duration = time.Since(startTime)

	e.logger.ScheduleComplete(result.RunID.String(), result.Duration, result.Diagnostics.UnmetTop5, result.Diagnostics.Gaps)

	var invariant []validator.Conflict
	for _, c := range result.Conflicts {
		if c.Type.IsInvariant() {
			invariant = append(invariant, c)
		}
	}
	if len(invariant) > 0 {
		result.Success = false
		result.Message = fmt.Sprintf("修复后仍有 %d 处不变量被破坏", len(invariant))
		e.logger.ConstraintViolation(string(invariant[0].Type), invariant[0].Message)
		return result, errors.InvariantViolation(len(invariant), invariant[0].Message)
	}

	result.Success = true
	result.Message = fmt.Sprintf("排班成功，前5偏好未满足 %d 个，前10偏好未满足 %d 个",
		result.Diagnostics.UnmetTop5, result.Diagnostics.UnmetTop10)
	return result, nil
}

// checkInput 检查队伍名称与偏好活动；必排区域容量不足时输入不可行
func (e *Engine) checkInput(troops []*model.Troop) error {
	catalog := e.options.Catalog
	names := make(map[string]bool, len(troops))
	for i, t := range troops {
		if t == nil || t.Name == "" {
			return errors.InvalidInput(fmt.Sprintf("troops[%d].name", i), "队伍名称不能为空")
		}
		if names[t.Name] {
			return errors.InvalidInput(fmt.Sprintf("troops[%d].name", i), "队伍名称重复 "+t.Name)
		}
		names[t.Name] = true
		t.Normalize()

		for _, name := range t.Preferences {
			if _, ok := catalog.Get(name); !ok {
				return errors.UnknownActivity(t.Name, name)
			}
		}
		for name := range t.DayRequests {
			if _, ok := catalog.Get(name); !ok {
				return errors.UnknownActivity(t.Name, name)
			}
		}
	}

	for _, act := range catalog.Mandatory() {
		if act.Area == "" || act.IsConcurrent() {
			continue
		}
		weekly := catalog.CapacityOf(act.Area) * model.TotalSlots()
		if len(troops) > weekly {
			return errors.InfeasibleInput(fmt.Sprintf("%d 支队伍超过 %s 每周容量 %d", len(troops), act.Name, weekly))
		}
	}
	return nil
}

// diagnose 汇总运行诊断
func (e *Engine) diagnose(store *constraint.Context, st *solver.Statistics, conflicts []validator.Conflict) *Diagnostics {
	coverage := stats.NewCoverageAnalyzer().Analyze(store)
	d := &Diagnostics{
		UnmetTop5:    coverage.UnmetTop5,
		UnmetTop10:   coverage.UnmetTop10,
		Gaps:         store.GapCount(),
		ExcessDays:   stats.ExcessDays(store),
		Forced:       st.Forced,
		ForcedTroops: st.ForcedTroops,
		Relaxed:      st.Relaxed,
		Coverage:     coverage,
		Fairness:     stats.NewFairnessAnalyzer().Analyze(store),
		Areas:        stats.AreaReport(store),
	}
	for _, c := range conflicts {
		if c.Type == validator.ConflictAreaCapacity {
			d.ExclusivityViolations++
		}
	}

	if len(st.ForcedTroops) > e.options.ForcedWarnThreshold {
		msg := fmt.Sprintf("%d 支队伍需要强制插入，超过阈值 %d", len(st.ForcedTroops), e.options.ForcedWarnThreshold)
		d.Warnings = append(d.Warnings, msg)
		e.logger.Base().Warn().Strs("troops", st.ForcedTroops).Msg(msg)
	}
	for _, c := range conflicts {
		if !c.Type.IsInvariant() && c.Severity == "error" {
			d.Warnings = append(d.Warnings, c.Message)
		}
	}
	return d
}
