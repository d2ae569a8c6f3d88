package constraint

import (
	"sort"

	"github.com/google/uuid"
	"github.com/paiban/campsched/pkg/model"
)

type troopSlotKey struct {
	troop uuid.UUID
	slot  model.TimeSlot
}

type areaDayKey struct {
	area string
	day  model.Day
}

// Unit 一个完整的排班单元（同一 troop/activity/start 的全部记录）
type Unit struct {
	Troop    *model.Troop
	Activity *model.Activity
	Start    model.TimeSlot
	Records  []*model.Assignment
}

// Key 返回单元标识
func (u *Unit) Key() model.UnitKey {
	return model.UnitKey{TroopID: u.Troop.ID, Activity: u.Activity.Name, Start: u.Start}
}

// Slots 单元占用的时段
func (u *Unit) Slots() []model.TimeSlot {
	slots := make([]model.TimeSlot, len(u.Records))
	for i, r := range u.Records {
		slots[i] = r.Slot
	}
	return slots
}

// Rank 单元活动在本队偏好中的排名
func (u *Unit) Rank() int {
	return u.Troop.RankOf(u.Activity.Name)
}

// Forced 单元是否由强制插入产生
func (u *Unit) Forced() bool {
	for _, r := range u.Records {
		if r.Forced {
			return true
		}
	}
	return false
}

// Context 排班上下文，即一次运行的排班存储
// 每次增删单元都会在同一调用内更新全部索引
type Context struct {
	// 输入数据
	Catalog       *model.Catalog
	Troops        []*model.Troop
	Commissioners model.CommissionerTable
	Limits        Limits
	Voyageur      bool

	// 当前排班结果（按插入顺序）
	Assignments []*model.Assignment

	// 索引
	troopMap    map[uuid.UUID]*model.Troop
	byTroopSlot map[troopSlotKey][]*model.Assignment
	bySlot      map[model.TimeSlot][]*model.Assignment
	units       map[model.UnitKey]*Unit
	staffLoad   map[model.TimeSlot]int
	areaDay     map[areaDayKey]int

	mutations int
}

// NewContext 创建排班上下文，队伍按名称排序
func NewContext(catalog *model.Catalog, troops []*model.Troop, limits Limits) *Context {
	sorted := make([]*model.Troop, len(troops))
	copy(sorted, troops)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	c := &Context{
		Catalog:       catalog,
		Troops:        sorted,
		Commissioners: model.TCCommissioners(),
		Limits:        limits,
		Assignments:   make([]*model.Assignment, 0),
		troopMap:      make(map[uuid.UUID]*model.Troop, len(troops)),
		byTroopSlot:   make(map[troopSlotKey][]*model.Assignment),
		bySlot:        make(map[model.TimeSlot][]*model.Assignment),
		units:         make(map[model.UnitKey]*Unit),
		staffLoad:     make(map[model.TimeSlot]int),
		areaDay:       make(map[areaDayKey]int),
	}
	for _, t := range sorted {
		c.troopMap[t.ID] = t
	}
	return c
}

// SetVoyageur 切换规则集，同时切换专员日期表
func (c *Context) SetVoyageur(voyageur bool) {
	c.Voyageur = voyageur
	c.Commissioners = model.Commissioners(voyageur)
}

// GetTroop 获取队伍
func (c *Context) GetTroop(id uuid.UUID) *model.Troop {
	return c.troopMap[id]
}

// Mutations 返回累计修改次数
func (c *Context) Mutations() int {
	return c.mutations
}

// PlaceUnit 生成并添加一个完整单元，不做任何约束校验
func (c *Context) PlaceUnit(t *model.Troop, act *model.Activity, start model.TimeSlot, forced bool) (*Unit, bool) {
	records, ok := model.NewUnit(t, act, start)
	if !ok {
		return nil, false
	}
	for _, r := range records {
		r.Forced = forced
	}
	return c.AddUnit(records), true
}

// AddUnit 添加一组同单元记录并更新所有索引
func (c *Context) AddUnit(records []*model.Assignment) *Unit {
	if len(records) == 0 {
		return nil
	}
	first := records[0]
	key := first.Key()
	u, exists := c.units[key]
	if !exists {
		u = &Unit{Troop: first.Troop, Activity: first.Activity, Start: first.Start}
		c.units[key] = u
	}
	for _, r := range records {
		c.Assignments = append(c.Assignments, r)
		u.Records = append(u.Records, r)
		tk := troopSlotKey{troop: r.Troop.ID, slot: r.Slot}
		c.byTroopSlot[tk] = append(c.byTroopSlot[tk], r)
		c.bySlot[r.Slot] = append(c.bySlot[r.Slot], r)
		c.staffLoad[r.Slot] += r.Activity.Staff
		if r.Activity.Area != "" && !r.IsHalf() {
			c.areaDay[areaDayKey{area: r.Activity.Area, day: r.Slot.Day}]++
		}
	}
	sort.SliceStable(u.Records, func(i, j int) bool { return u.Records[i].Offset < u.Records[j].Offset })
	c.mutations++
	return u
}

// RemoveUnit 移除单元的全部记录，返回被移除的记录
func (c *Context) RemoveUnit(key model.UnitKey) []*model.Assignment {
	u, ok := c.units[key]
	if !ok {
		return nil
	}
	delete(c.units, key)

	removed := make(map[uuid.UUID]bool, len(u.Records))
	for _, r := range u.Records {
		removed[r.ID] = true
		tk := troopSlotKey{troop: r.Troop.ID, slot: r.Slot}
		c.byTroopSlot[tk] = without(c.byTroopSlot[tk], r.ID)
		if len(c.byTroopSlot[tk]) == 0 {
			delete(c.byTroopSlot, tk)
		}
		c.bySlot[r.Slot] = without(c.bySlot[r.Slot], r.ID)
		c.staffLoad[r.Slot] -= r.Activity.Staff
		if r.Activity.Area != "" && !r.IsHalf() {
			ak := areaDayKey{area: r.Activity.Area, day: r.Slot.Day}
			c.areaDay[ak]--
			if c.areaDay[ak] <= 0 {
				delete(c.areaDay, ak)
			}
		}
	}

	kept := c.Assignments[:0]
	for _, a := range c.Assignments {
		if !removed[a.ID] {
			kept = append(kept, a)
		}
	}
	for i := len(kept); i < len(c.Assignments); i++ {
		c.Assignments[i] = nil
	}
	c.Assignments = kept
	c.mutations++
	return u.Records
}

func without(list []*model.Assignment, id uuid.UUID) []*model.Assignment {
	out := list[:0]
	for _, a := range list {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

// Unit 按标识获取单元
func (c *Context) Unit(key model.UnitKey) *Unit {
	return c.units[key]
}

// Units 返回全部单元，按队伍名称、开始时段、活动名称排序
func (c *Context) Units() []*Unit {
	result := make([]*Unit, 0, len(c.units))
	for _, u := range c.units {
		result = append(result, u)
	}
	sortUnits(result)
	return result
}

// TroopUnits 返回某队伍的全部单元（按开始时段排序）
func (c *Context) TroopUnits(troopID uuid.UUID) []*Unit {
	var result []*Unit
	for _, u := range c.units {
		if u.Troop.ID == troopID {
			result = append(result, u)
		}
	}
	sortUnits(result)
	return result
}

// ActivityUnits 返回某队伍某活动的全部单元
func (c *Context) ActivityUnits(troopID uuid.UUID, activity string) []*Unit {
	var result []*Unit
	for _, u := range c.TroopUnits(troopID) {
		if u.Activity.Name == activity {
			result = append(result, u)
		}
	}
	return result
}

// HasActivity 队伍本周是否已有该活动
func (c *Context) HasActivity(troopID uuid.UUID, activity string) bool {
	for _, u := range c.units {
		if u.Troop.ID == troopID && u.Activity.Name == activity {
			return true
		}
	}
	return false
}

func sortUnits(units []*Unit) {
	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if a.Troop.Name != b.Troop.Name {
			return a.Troop.Name < b.Troop.Name
		}
		if a.Start != b.Start {
			return a.Start.Ordinal() < b.Start.Ordinal()
		}
		return a.Activity.Name < b.Activity.Name
	})
}

// At 返回队伍在某时段的记录
func (c *Context) At(troopID uuid.UUID, slot model.TimeSlot) []*model.Assignment {
	return c.byTroopSlot[troopSlotKey{troop: troopID, slot: slot}]
}

// IsFree 队伍在该时段是否空闲
func (c *Context) IsFree(troopID uuid.UUID, slot model.TimeSlot) bool {
	return len(c.byTroopSlot[troopSlotKey{troop: troopID, slot: slot}]) == 0
}

// ActivityAt 返回队伍在某时段的活动（无则为 nil）
func (c *Context) ActivityAt(troopID uuid.UUID, slot model.TimeSlot) *model.Activity {
	recs := c.At(troopID, slot)
	if len(recs) == 0 {
		return nil
	}
	return recs[0].Activity
}

// InSlot 返回某时段的所有记录
func (c *Context) InSlot(slot model.TimeSlot) []*model.Assignment {
	return c.bySlot[slot]
}

// Occupants 返回某时段完整占用的记录（不含1.5时段的后半段）
func (c *Context) Occupants(slot model.TimeSlot) []*model.Assignment {
	var result []*model.Assignment
	for _, r := range c.bySlot[slot] {
		if !r.IsHalf() {
			result = append(result, r)
		}
	}
	return result
}

// StaffLoad 返回某时段已占用的工作人员数
func (c *Context) StaffLoad(slot model.TimeSlot) int {
	return c.staffLoad[slot]
}

// AreaDayCount 区域在某天的占用记录数（所有队伍）
func (c *Context) AreaDayCount(area string, day model.Day) int {
	return c.areaDay[areaDayKey{area: area, day: day}]
}

// AreaInstances 区域在某时段的活动实例数
// 独占类活动每支队伍算一个实例，共享或并行活动每种活动只算一次
func (c *Context) AreaInstances(area string, slot model.TimeSlot) int {
	n := 0
	seen := make(map[string]bool)
	for _, r := range c.Occupants(slot) {
		if r.Activity.Area != area {
			continue
		}
		if r.Activity.CanShare() {
			if seen[r.Activity.Name] {
				continue
			}
			seen[r.Activity.Name] = true
		}
		n++
	}
	return n
}

// TroopDay 返回队伍某天的记录（按时段排序）
func (c *Context) TroopDay(troopID uuid.UUID, day model.Day) []*model.Assignment {
	var result []*model.Assignment
	for _, s := range model.SlotsOn(day) {
		result = append(result, c.At(troopID, s)...)
	}
	return result
}

// EmptyCells 返回队伍的空闲时段（按时间顺序）
func (c *Context) EmptyCells(troopID uuid.UUID) []model.TimeSlot {
	var result []model.TimeSlot
	for _, s := range model.AllSlots() {
		if c.IsFree(troopID, s) {
			result = append(result, s)
		}
	}
	return result
}

// GapCount 全部队伍的空闲时段总数
func (c *Context) GapCount() int {
	n := 0
	for _, t := range c.Troops {
		n += len(c.EmptyCells(t.ID))
	}
	return n
}

// Clone 复制存储（记录对象共享，索引独立）
func (c *Context) Clone() *Context {
	cp := NewContext(c.Catalog, c.Troops, c.Limits)
	cp.Commissioners = c.Commissioners
	cp.Voyageur = c.Voyageur
	for _, u := range c.Units() {
		cp.AddUnit(u.Records)
	}
	cp.mutations = 0
	return cp
}
