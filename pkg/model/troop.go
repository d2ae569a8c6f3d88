package model

import (
	"github.com/google/uuid"
)

// Unranked 未出现在偏好列表中的活动排名
const Unranked = 999

// 队伍默认人数
const (
	DefaultScouts = 10
	DefaultAdults = 2
)

// SizeCategory 队伍规模分类
type SizeCategory string

const (
	SizeExtraSmall SizeCategory = "Extra Small"
	SizeSmall      SizeCategory = "Small"
	SizeMedium     SizeCategory = "Medium"
	SizeLarge      SizeCategory = "Large"
	SizeSplit      SizeCategory = "Split"
)

// Troop 参营队伍
type Troop struct {
	ID           uuid.UUID      `json:"id" yaml:"id,omitempty" db:"id"`
	Name         string         `json:"name" yaml:"name" db:"name" validate:"required"`
	Campsite     string         `json:"campsite,omitempty" yaml:"campsite,omitempty" db:"campsite"`
	Scouts       int            `json:"scouts" yaml:"scouts" db:"scouts" validate:"gte=0"`
	Adults       int            `json:"adults" yaml:"adults" db:"adults" validate:"gte=0"`
	Commissioner string         `json:"commissioner,omitempty" yaml:"commissioner,omitempty" db:"commissioner"`
	Preferences  []string       `json:"preferences" yaml:"preferences" db:"preferences" validate:"dive,required"`
	DayRequests  map[string]Day `json:"day_requests,omitempty" yaml:"day_requests,omitempty" db:"-"`
}

// NewTroop 创建队伍，人数使用默认值
func NewTroop(name string, preferences ...string) *Troop {
	return &Troop{
		ID:          uuid.New(),
		Name:        name,
		Scouts:      DefaultScouts,
		Adults:      DefaultAdults,
		Preferences: preferences,
		DayRequests: make(map[string]Day),
	}
}

// Headcount 总人数（队员 + 成人）
func (t *Troop) Headcount() int {
	return t.Scouts + t.Adults
}

// RankOf 返回活动在偏好列表中的排名（0最优），未列出时返回 Unranked
func (t *Troop) RankOf(activity string) int {
	for i, p := range t.Preferences {
		if p == activity {
			return i
		}
	}
	return Unranked
}

// Wants 是否在偏好列表中
func (t *Troop) Wants(activity string) bool {
	return t.RankOf(activity) != Unranked
}

// PinnedDay 返回活动被指定的日期
func (t *Troop) PinnedDay(activity string) (Day, bool) {
	if t.DayRequests == nil {
		return 0, false
	}
	d, ok := t.DayRequests[activity]
	return d, ok
}

// SizeCategory 根据队员人数返回规模分类
func (t *Troop) SizeCategory() SizeCategory {
	switch {
	case t.Scouts <= 5:
		return SizeExtraSmall
	case t.Scouts <= 10:
		return SizeSmall
	case t.Scouts <= 15:
		return SizeMedium
	case t.Scouts <= 24:
		return SizeLarge
	default:
		return SizeSplit
	}
}

// Normalize 补全缺省字段
func (t *Troop) Normalize() {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Scouts == 0 && t.Adults == 0 {
		t.Scouts = DefaultScouts
		t.Adults = DefaultAdults
	}
	if t.DayRequests == nil {
		t.DayRequests = make(map[string]Day)
	}
}
