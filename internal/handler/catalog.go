package handler

import (
	"net/http"

	"github.com/paiban/campsched/internal/constraints"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler/constraint"
)

// CatalogHandler 活动目录与规则库
type CatalogHandler struct {
	catalog *model.Catalog
	limits  constraint.Limits
}

// NewCatalogHandler 创建目录处理器
func NewCatalogHandler(catalog *model.Catalog, limits constraint.Limits) *CatalogHandler {
	if catalog == nil {
		catalog = model.DefaultCatalog()
	}
	return &CatalogHandler{catalog: catalog, limits: limits}
}

// AreaInfo 场地容量
type AreaInfo struct {
	Area       string   `json:"area"`
	Capacity   int      `json:"capacity"`
	Activities []string `json:"activities"`
}

// CatalogResponse 目录响应
type CatalogResponse struct {
	Activities    []*model.Activity                         `json:"activities"`
	Areas         []AreaInfo                                `json:"areas"`
	Mandatory     []string                                  `json:"mandatory"`
	FillPriority  []string                                  `json:"fill_priority"`
	HardPairs     []model.Pair                              `json:"hard_pairs"`
	SoftPairs     []model.Pair                              `json:"soft_pairs"`
	NeutralFiller string                                    `json:"neutral_filler"`
	Commissioners map[model.Ruleset]model.CommissionerTable `json:"commissioners"`
}

// Catalog 返回当前活动目录、场地与专员日期表
func (h *CatalogHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	resp := CatalogResponse{
		Activities:    h.catalog.Activities,
		FillPriority:  h.catalog.FillPriority,
		HardPairs:     h.catalog.HardPairs,
		SoftPairs:     h.catalog.SoftPairs,
		NeutralFiller: h.catalog.NeutralFiller,
		Commissioners: map[model.Ruleset]model.CommissionerTable{
			model.RulesetFor(false): model.Commissioners(false),
			model.RulesetFor(true):  model.Commissioners(true),
		},
	}
	for _, area := range h.catalog.Areas() {
		info := AreaInfo{Area: area, Capacity: h.catalog.CapacityOf(area)}
		for _, a := range h.catalog.AreaActivities(area) {
			info.Activities = append(info.Activities, a.Name)
		}
		resp.Areas = append(resp.Areas, info)
	}
	for _, a := range h.catalog.Mandatory() {
		resp.Mandatory = append(resp.Mandatory, a.Name)
	}
	respondJSON(w, http.StatusOK, resp)
}

// ConstraintLibrary 返回后端支持的全部规则定义
func (h *CatalogHandler) ConstraintLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, constraints.LibraryResponse{Library: constraints.GetLibrary(h.limits)})
}
