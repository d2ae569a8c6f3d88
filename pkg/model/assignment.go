package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Assignment 排班记录，每个被占用的时段一条
// 多时段活动的各条记录共享 (Troop, Activity, Start)，只能整体创建和删除
type Assignment struct {
	ID       uuid.UUID `json:"id"`
	Troop    *Troop    `json:"-"`
	Activity *Activity `json:"-"`
	Slot     TimeSlot  `json:"slot"`
	Start    TimeSlot  `json:"start"`
	Offset   int       `json:"offset"`
	Forced   bool      `json:"forced,omitempty"` // 绕过校验强制插入
}

// UnitKey 排班单元标识
type UnitKey struct {
	TroopID  uuid.UUID
	Activity string
	Start    TimeSlot
}

// String 便于日志输出
func (k UnitKey) String() string {
	return fmt.Sprintf("%s@%s", k.Activity, k.Start)
}

// Key 返回所属单元
func (a *Assignment) Key() UnitKey {
	return UnitKey{TroopID: a.Troop.ID, Activity: a.Activity.Name, Start: a.Start}
}

// IsStart 是否是单元的起始记录
func (a *Assignment) IsStart() bool {
	return a.Offset == 0
}

// IsHalf 是否是 1.5 时段活动的后半段（不计入区域占用）
func (a *Assignment) IsHalf() bool {
	return a.Offset >= a.Activity.FullSlotsFor(a.Troop)
}

// NewUnit 为 (troop, activity, start) 生成完整的单元记录
// 时长超出当天时返回 false
func NewUnit(t *Troop, act *Activity, start TimeSlot) ([]*Assignment, bool) {
	slots, ok := SpanSlots(start, act.SlotsFor(t))
	if !ok {
		return nil, false
	}
	records := make([]*Assignment, len(slots))
	for i, s := range slots {
		records[i] = &Assignment{
			ID:       uuid.New(),
			Troop:    t,
			Activity: act,
			Slot:     s,
			Start:    start,
			Offset:   i,
		}
	}
	return records, true
}

// AssignmentView 对外输出的排班记录（按名称引用队伍与活动）
type AssignmentView struct {
	Troop    string `json:"troop" yaml:"troop"`
	Activity string `json:"activity" yaml:"activity"`
	Day      Day    `json:"day" yaml:"day"`
	Slot     int    `json:"slot" yaml:"slot"`
	Start    int    `json:"start_slot" yaml:"start_slot"`
	Forced   bool   `json:"forced,omitempty" yaml:"forced,omitempty"`
}

// View 转换为对外视图
func (a *Assignment) View() AssignmentView {
	return AssignmentView{
		Troop:    a.Troop.Name,
		Activity: a.Activity.Name,
		Day:      a.Slot.Day,
		Slot:     a.Slot.Slot,
		Start:    a.Start.Slot,
		Forced:   a.Forced,
	}
}
