package handler

import (
	"encoding/json"
	"net/http"

	"github.com/paiban/campsched/internal/loader"
	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
	"github.com/paiban/campsched/pkg/scheduler/constraint/builtin"
	"github.com/paiban/campsched/pkg/stats"
	"github.com/paiban/campsched/pkg/swap"
	"github.com/paiban/campsched/pkg/validator"
)

// StatsHandler 对给定排班做统计分析
type StatsHandler struct {
	catalog *model.Catalog
	limits  constraint.Limits
	maxBody int64
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(catalog *model.Catalog, limits constraint.Limits) *StatsHandler {
	if catalog == nil {
		catalog = model.DefaultCatalog()
	}
	return &StatsHandler{catalog: catalog, limits: limits, maxBody: 1 << 20}
}

// StatsRequest 统计请求
type StatsRequest struct {
	Voyageur    bool                   `json:"voyageur"`
	Troops      []*model.Troop         `json:"troops"`
	Assignments []model.AssignmentView `json:"assignments"`
	Limit       int                    `json:"limit,omitempty"` // 仅互换推荐使用
}

// StatsResponse 统计响应
type StatsResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// SwapSuggestion 一条互换建议
type SwapSuggestion struct {
	Kind      swap.Kind `json:"kind"`
	TroopA    string    `json:"troop_a"`
	ActivityA string    `json:"activity_a"`
	SlotA     string    `json:"slot_a"`
	TroopB    string    `json:"troop_b"`
	ActivityB string    `json:"activity_b"`
	SlotB     string    `json:"slot_b"`
	Benefit   float64   `json:"benefit"`
}

// GetCoverageHandler 偏好满足情况
func (h *StatsHandler) GetCoverageHandler(w http.ResponseWriter, r *http.Request) {
	store, req, err := h.rebuild(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	logger.Debug().Int("troops", len(req.Troops)).Int("assignments", len(req.Assignments)).Msg("覆盖率分析")
	respondJSON(w, http.StatusOK, StatsResponse{Success: true, Data: stats.NewCoverageAnalyzer().Analyze(store)})
}

// GetFairnessHandler 队伍满意度公平性与工作人员负载
func (h *StatsHandler) GetFairnessHandler(w http.ResponseWriter, r *http.Request) {
	store, _, err := h.rebuild(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, StatsResponse{Success: true, Data: stats.NewFairnessAnalyzer().Analyze(store)})
}

// GetAreaHandler 场地聚集情况
func (h *StatsHandler) GetAreaHandler(w http.ResponseWriter, r *http.Request) {
	store, _, err := h.rebuild(w, r)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, StatsResponse{Success: true, Data: stats.AreaReport(store)})
}

// GetSwapHandler 对给定排班推荐可行且有收益的互换，不修改排班
func (h *StatsHandler) GetSwapHandler(w http.ResponseWriter, r *http.Request) {
	store, req, err := h.rebuild(w, r)
	if err != nil {
		respondError(w, err)
		return
	}

	manager := builtin.NewDefaultManager(h.limits)
	recommender := swap.NewRecommender(swap.NewSwapEvaluator(manager, swap.DefaultMaxRankDrop))
	recs := recommender.Recommend(store, swap.DefaultRecommendOptions())

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	names := make(map[string]string, len(store.Troops))
	for _, t := range store.Troops {
		names[t.ID.String()] = t.Name
	}
	suggestions := make([]SwapSuggestion, 0, limit)
	for _, rec := range recs {
		if len(suggestions) == limit {
			break
		}
		suggestions = append(suggestions, SwapSuggestion{
			Kind:      rec.Move.Kind,
			TroopA:    names[rec.Move.A.TroopID.String()],
			ActivityA: rec.Move.A.Activity,
			SlotA:     rec.Move.A.Start.String(),
			TroopB:    names[rec.Move.B.TroopID.String()],
			ActivityB: rec.Move.B.Activity,
			SlotB:     rec.Move.B.Start.String(),
			Benefit:   rec.Benefit,
		})
	}
	respondJSON(w, http.StatusOK, StatsResponse{Success: true, Data: suggestions})
}

// rebuild 解析请求并重建排班存储
func (h *StatsHandler) rebuild(w http.ResponseWriter, r *http.Request) (*constraint.Context, *StatsRequest, error) {
	if r.Method != http.MethodPost {
		return nil, nil, errors.New(errors.CodeInvalidInput, "仅支持POST方法")
	}
	var req StatsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody)).Decode(&req); err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败")
	}
	for _, t := range req.Troops {
		if t != nil {
			t.Normalize()
		}
	}
	err := loader.New(h.catalog).ValidateWeek(&loader.WeekFile{
		Week:     "stats",
		Voyageur: req.Voyageur,
		Troops:   req.Troops,
	})
	if err != nil {
		return nil, nil, err
	}

	store, err := validator.Rebuild(h.catalog, req.Troops, req.Assignments, h.limits)
	if err != nil {
		return nil, nil, err
	}
	store.SetVoyageur(req.Voyageur)
	return store, &req, nil
}
