// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/campsched/internal/loader"
	"github.com/paiban/campsched/internal/metrics"
	"github.com/paiban/campsched/internal/repository"
	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler"
	"github.com/paiban/campsched/pkg/scheduler/solver"
	"github.com/paiban/campsched/pkg/stats"
	"github.com/paiban/campsched/pkg/validator"
)

// ScheduleHandler 排班处理器
type ScheduleHandler struct {
	options *scheduler.Options
	runs    repository.RunRepositoryInterface
	metrics *metrics.Registry
	timeout time.Duration
	maxBody int64
}

// NewScheduleHandler 创建排班处理器，options 为空时使用默认引擎选项
func NewScheduleHandler(options *scheduler.Options, reg *metrics.Registry) *ScheduleHandler {
	if options == nil {
		options = scheduler.DefaultOptions()
	}
	if options.Catalog == nil {
		options.Catalog = model.DefaultCatalog()
	}
	return &ScheduleHandler{
		options: options,
		metrics: reg,
		timeout: 30 * time.Second,
		maxBody: 1 << 20,
	}
}

// WithRuns 启用运行记录的持久化与查询
func (h *ScheduleHandler) WithRuns(runs repository.RunRepositoryInterface) *ScheduleHandler {
	h.runs = runs
	return h
}

// WithLimits 设置默认超时与请求体上限
func (h *ScheduleHandler) WithLimits(timeout time.Duration, maxBody int64) *ScheduleHandler {
	if timeout > 0 {
		h.timeout = timeout
	}
	if maxBody > 0 {
		h.maxBody = maxBody
	}
	return h
}

// GenerateRequest 排班生成请求
type GenerateRequest struct {
	Week     string           `json:"week,omitempty"`
	Voyageur bool             `json:"voyageur"`
	Troops   []*model.Troop   `json:"troops"`
	Persist  bool             `json:"persist,omitempty"`
	Options  *GenerateOptions `json:"options,omitempty"`
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Timeout    int  `json:"timeout_seconds,omitempty"`
	SkipPolish bool `json:"skip_polish,omitempty"`
}

// GenerateResponse 排班生成响应
type GenerateResponse struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message,omitempty"`
	Week        string                 `json:"week"`
	RunID       string                 `json:"run_id"`
	Voyageur    bool                   `json:"voyageur"`
	Persisted   bool                   `json:"persisted"`
	Schedule    []model.AssignmentView `json:"schedule"`
	Grid        []loader.TroopGrid     `json:"grid"`
	Diagnostics *scheduler.Diagnostics `json:"diagnostics,omitempty"`
	Conflicts   []validator.Conflict   `json:"conflicts,omitempty"`
	Statistics  *solver.Statistics     `json:"statistics,omitempty"`
	Duration    string                 `json:"duration"`
	Error       *errors.AppError       `json:"error,omitempty"`
}

// Generate 生成一周排班
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req GenerateRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Week == "" {
		req.Week = currentWeek(time.Now())
	}
	if err := h.checkTroops(req.Week, req.Voyageur, req.Troops); err != nil {
		respondError(w, err)
		return
	}

	opts := *h.options
	opts.Voyageur = req.Voyageur
	timeout := h.timeout
	if req.Options != nil {
		if req.Options.Timeout > 0 {
			timeout = time.Duration(req.Options.Timeout) * time.Second
		}
		if req.Options.SkipPolish && opts.Solver != nil {
			so := *opts.Solver
			so.SkipPolish = true
			opts.Solver = &so
		}
	}

	engine := scheduler.NewEngine(&opts)
	if h.metrics != nil {
		engine.SetSink(h.metrics.Sink())
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	start := time.Now()
	result, err := engine.Generate(ctx, req.Troops)
	if h.metrics != nil {
		h.metrics.RecordSchedule(result, time.Since(start))
	}
	if err != nil {
		switch {
		case stderrors.Is(err, context.DeadlineExceeded):
			respondError(w, errors.New(errors.CodeTimeout, "排班计算超时，请减少队伍数量或跳过局部优化"))
			return
		case stderrors.Is(err, context.Canceled):
			respondError(w, errors.New(errors.CodeInternal, "排班请求已取消"))
			return
		case result == nil:
			respondError(w, err)
			return
		}
	}

	resp := buildGenerateResponse(req.Week, result)
	if err != nil {
		resp.Error = asAppError(err)
	}

	if req.Persist && err == nil {
		if h.runs == nil {
			respondError(w, errors.New(errors.CodeInternal, "未配置数据库，无法保存排班"))
			return
		}
		run := repository.NewRun(req.Week, result)
		if serr := h.runs.Save(r.Context(), run, result.Schedule); serr != nil {
			respondError(w, serr)
			return
		}
		resp.Persisted = true
	}

	status := http.StatusOK
	if err != nil {
		status = errors.GetHTTPStatus(err)
	}
	respondJSON(w, status, resp)
}

func buildGenerateResponse(week string, result *scheduler.Result) *GenerateResponse {
	f := loader.BuildSchedule(week, result)
	return &GenerateResponse{
		Success:     result.Success,
		Message:     result.Message,
		Week:        week,
		RunID:       result.RunID.String(),
		Voyageur:    result.Voyageur,
		Schedule:    f.Entries,
		Grid:        f.Grid,
		Diagnostics: result.Diagnostics,
		Conflicts:   result.Conflicts,
		Statistics:  result.Statistics,
		Duration:    result.Duration.String(),
	}
}

// ValidateRequest 排班校验请求
type ValidateRequest struct {
	Voyageur    bool                   `json:"voyageur"`
	Troops      []*model.Troop         `json:"troops"`
	Assignments []model.AssignmentView `json:"assignments"`
}

// ValidateResponse 校验响应
type ValidateResponse struct {
	Valid      bool                           `json:"valid"`
	Conflicts  []validator.Conflict           `json:"conflicts"`
	Summary    map[validator.ConflictType]int `json:"summary"`
	Coverage   *stats.CoverageMetrics         `json:"coverage"`
	ExcessDays map[string]int                 `json:"excess_days"`
}

// Validate 校验外部给出的排班
func (h *ScheduleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ValidateRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := h.checkTroops("validate", req.Voyageur, req.Troops); err != nil {
		respondError(w, err)
		return
	}

	store, err := validator.Rebuild(h.options.Catalog, req.Troops, req.Assignments, h.options.Limits)
	if err != nil {
		respondError(w, err)
		return
	}
	store.SetVoyageur(req.Voyageur)

	conflicts := validator.NewConflictDetector(nil).DetectAll(store)
	if conflicts == nil {
		conflicts = []validator.Conflict{}
	}
	respondJSON(w, http.StatusOK, ValidateResponse{
		Valid:      !validator.HasInvariantViolation(conflicts),
		Conflicts:  conflicts,
		Summary:    validator.Summary(conflicts),
		Coverage:   stats.NewCoverageAnalyzer().Analyze(store),
		ExcessDays: stats.ExcessDays(store),
	})
}

// RunResponse 已保存的运行记录
type RunResponse struct {
	Run     *repository.Run        `json:"run"`
	Entries []model.AssignmentView `json:"entries"`
	Grid    []loader.TroopGrid     `json:"grid"`
}

// GetRun 按ID读取已保存的运行记录
func (h *ScheduleHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, errors.New(errors.CodeInternal, "未配置数据库"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的运行ID"))
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	entries, err := h.runs.Entries(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	entries = loader.SortViews(entries)
	respondJSON(w, http.StatusOK, RunResponse{Run: run, Entries: entries, Grid: loader.Grid(entries)})
}

// ListRunsResponse 运行记录列表
type ListRunsResponse struct {
	Runs  []*repository.Run `json:"runs"`
	Total int               `json:"total"`
}

// ListRuns 按营期与结果筛选运行记录
func (h *ScheduleHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, errors.New(errors.CodeInternal, "未配置数据库"))
		return
	}

	q := r.URL.Query()
	filter := repository.DefaultListFilter()
	if week := q.Get("week"); week != "" {
		filter = filter.WithWeek(week)
	}
	if s := q.Get("success"); s != "" {
		success, err := strconv.ParseBool(s)
		if err != nil {
			respondError(w, errors.InvalidInput("success", "应为 true 或 false"))
			return
		}
		filter = filter.WithSuccess(success)
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			respondError(w, errors.InvalidInput("limit", "应为正整数"))
			return
		}
		filter = filter.WithLimit(limit)
	}
	if s := q.Get("offset"); s != "" {
		offset, err := strconv.Atoi(s)
		if err != nil || offset < 0 {
			respondError(w, errors.InvalidInput("offset", "应为非负整数"))
			return
		}
		filter = filter.WithOffset(offset)
	}
	filter.OrderBy = q.Get("order_by")
	filter.OrderDir = q.Get("order_dir")

	runs, total, err := h.runs.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	if runs == nil {
		runs = []*repository.Run{}
	}
	respondJSON(w, http.StatusOK, ListRunsResponse{Runs: runs, Total: total})
}

// DeleteRun 删除运行记录
func (h *ScheduleHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		respondError(w, errors.New(errors.CodeInternal, "未配置数据库"))
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的运行ID"))
		return
	}
	if err := h.runs.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}

// checkTroops 补全默认值后按当前目录校验队伍
func (h *ScheduleHandler) checkTroops(week string, voyageur bool, troops []*model.Troop) error {
	for _, t := range troops {
		if t != nil {
			t.Normalize()
		}
	}
	err := loader.New(h.options.Catalog).ValidateWeek(&loader.WeekFile{
		Week:     week,
		Voyageur: voyageur,
		Troops:   troops,
	})
	if err != nil {
		logger.Debug().Err(err).Int("troops", len(troops)).Msg("队伍校验失败")
	}
	return err
}

// currentWeek 返回 ISO 周，例如 2026-W28
func currentWeek(now time.Time) string {
	year, week := now.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
