package model

import (
	"sort"
)

// CommissionerDays 专员负责活动的固定日期
type CommissionerDays struct {
	DeltaSuperTroop Day `json:"delta_super_troop" yaml:"delta_super_troop"`
	Archery         Day `json:"archery" yaml:"archery"`
	TowerODS        Day `json:"tower_ods" yaml:"tower_ods"`
}

// CommissionerTable 专员名称到日期表
type CommissionerTable map[string]CommissionerDays

var tcDays = struct{ a, b, c CommissionerDays }{
	a: CommissionerDays{DeltaSuperTroop: Tuesday, Archery: Wednesday, TowerODS: Thursday},
	b: CommissionerDays{DeltaSuperTroop: Wednesday, Archery: Friday, TowerODS: Monday},
	c: CommissionerDays{DeltaSuperTroop: Thursday, Archery: Monday, TowerODS: Tuesday},
}

// TCCommissioners 常规营期（TC）专员日期表
func TCCommissioners() CommissionerTable {
	t := CommissionerTable{}
	for _, name := range []string{"Tecumseh", "Red Cloud", "Massasoit", "Joseph", "Skenandoa"} {
		t[name] = tcDays.a
	}
	for _, name := range []string{"Tamanend", "Samoset", "Black Hawk", "Sequoyah"} {
		t[name] = tcDays.b
	}
	for _, name := range []string{"Taskalusa", "Powhatan", "Cochise", "Pontiac"} {
		t[name] = tcDays.c
	}
	return t
}

// VoyageurCommissioners Voyageur 营期专员日期表
func VoyageurCommissioners() CommissionerTable {
	return CommissionerTable{
		"Voyageur A": {DeltaSuperTroop: Monday, Archery: Monday, TowerODS: Tuesday},
		"Voyageur B": {DeltaSuperTroop: Wednesday, Archery: Wednesday, TowerODS: Thursday},
		"Voyageur C": {DeltaSuperTroop: Friday, Archery: Friday, TowerODS: Monday},
	}
}

// Commissioners 按规则集返回专员日期表
func Commissioners(voyageur bool) CommissionerTable {
	if voyageur {
		return VoyageurCommissioners()
	}
	return TCCommissioners()
}

// Lookup 查找专员日期
func (t CommissionerTable) Lookup(commissioner string) (CommissionerDays, bool) {
	d, ok := t[commissioner]
	return d, ok
}

// DayFor 返回某专员负责某活动的日期
func (t CommissionerTable) DayFor(commissioner string, act *Activity) (Day, bool) {
	days, ok := t[commissioner]
	if !ok || act == nil {
		return 0, false
	}
	switch {
	case act.Name == ActivityDelta || act.Name == ActivitySuperTroop:
		return days.DeltaSuperTroop, true
	case act.Name == ActivityArchery:
		return days.Archery, true
	case act.HasTag(TagTowerODS):
		return days.TowerODS, true
	}
	return 0, false
}

// Names 返回专员名称（排序）
func (t CommissionerTable) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
