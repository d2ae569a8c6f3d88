package model

import (
	"fmt"
	"strings"
)

// Day 营期中的一天（周一至周五）
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
)

// ShortDay 短日（只有两个时段）
const ShortDay = Thursday

// Days 按顺序返回一周的所有营期日
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday}

var dayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// String 返回英文名
func (d Day) String() string {
	if d < Monday || d > Friday {
		return fmt.Sprintf("Day(%d)", int(d))
	}
	return dayNames[d]
}

// Short 返回三字母缩写
func (d Day) Short() string {
	return d.String()[:3]
}

// Valid 是否是合法的营期日
func (d Day) Valid() bool {
	return d >= Monday && d <= Friday
}

// SlotCount 当天的时段数
func (d Day) SlotCount() int {
	if d == ShortDay {
		return 2
	}
	return 3
}

// ParseDay 解析营期日名称，接受全称或三字母缩写（不区分大小写）
func ParseDay(s string) (Day, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for i, name := range dayNames {
		lower := strings.ToLower(name)
		if v == lower || v == lower[:3] {
			return Day(i), nil
		}
	}
	return 0, fmt.Errorf("无效的营期日: %q", s)
}

// MarshalText 实现 encoding.TextMarshaler
func (d Day) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("无效的营期日: %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeSlot 时间格中的一个单元（某天的第几个时段，从1开始）
type TimeSlot struct {
	Day  Day `json:"day" yaml:"day"`
	Slot int `json:"slot" yaml:"slot"`
}

// NewSlot 创建时段
func NewSlot(day Day, slot int) TimeSlot {
	return TimeSlot{Day: day, Slot: slot}
}

// Valid 是否落在时间格内
func (s TimeSlot) Valid() bool {
	return s.Day.Valid() && s.Slot >= 1 && s.Slot <= s.Day.SlotCount()
}

// Ordinal 返回时段在整周中的序号（0..13）
func (s TimeSlot) Ordinal() int {
	n := 0
	for d := Monday; d < s.Day; d++ {
		n += d.SlotCount()
	}
	return n + s.Slot - 1
}

// Before 时段先后比较
func (s TimeSlot) Before(other TimeSlot) bool {
	return s.Ordinal() < other.Ordinal()
}

// IsFirst 是否是当天第一个时段
func (s TimeSlot) IsFirst() bool { return s.Slot == 1 }

// IsLast 是否是当天最后一个时段
func (s TimeSlot) IsLast() bool { return s.Slot == s.Day.SlotCount() }

// Prev 同一天的前一个时段
func (s TimeSlot) Prev() (TimeSlot, bool) {
	if s.Slot <= 1 {
		return TimeSlot{}, false
	}
	return TimeSlot{Day: s.Day, Slot: s.Slot - 1}, true
}

// Next 同一天的后一个时段
func (s TimeSlot) Next() (TimeSlot, bool) {
	if s.Slot >= s.Day.SlotCount() {
		return TimeSlot{}, false
	}
	return TimeSlot{Day: s.Day, Slot: s.Slot + 1}, true
}

// String 例如 "Mon-2"
func (s TimeSlot) String() string {
	return fmt.Sprintf("%s-%d", s.Day.Short(), s.Slot)
}

// AllSlots 按时间顺序返回整周的所有时段
func AllSlots() []TimeSlot {
	slots := make([]TimeSlot, 0, TotalSlots())
	for _, d := range Days {
		slots = append(slots, SlotsOn(d)...)
	}
	return slots
}

// SlotsOn 返回某天的所有时段
func SlotsOn(day Day) []TimeSlot {
	slots := make([]TimeSlot, 0, day.SlotCount())
	for i := 1; i <= day.SlotCount(); i++ {
		slots = append(slots, TimeSlot{Day: day, Slot: i})
	}
	return slots
}

// TotalSlots 整周的时段总数
func TotalSlots() int {
	n := 0
	for _, d := range Days {
		n += d.SlotCount()
	}
	return n
}

// SpanSlots 返回从 start 开始占用 count 个时段的列表
// 超出当天最后一个时段时返回 false
func SpanSlots(start TimeSlot, count int) ([]TimeSlot, bool) {
	if !start.Valid() || count < 1 {
		return nil, false
	}
	if start.Slot+count-1 > start.Day.SlotCount() {
		return nil, false
	}
	slots := make([]TimeSlot, count)
	for i := 0; i < count; i++ {
		slots[i] = TimeSlot{Day: start.Day, Slot: start.Slot + i}
	}
	return slots, true
}
