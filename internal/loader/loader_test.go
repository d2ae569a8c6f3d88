package loader

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler"
)

const weekYAML = `
week: 2026-W28
voyageur: false
troops:
  - name: Tecumseh
    campsite: Birch
    scouts: 12
    adults: 3
    commissioner: Tecumseh
    preferences: [Aqua Trampoline, Archery, Hemp Craft]
    day_requests:
      Hemp Craft: Wednesday
  - name: Samoset
    commissioner: Samoset
    preferences: [Sailing, Troop Rifle]
`

func TestReadWeek(t *testing.T) {
	week, err := New(nil).ReadWeek(strings.NewReader(weekYAML))
	if err != nil {
		t.Fatalf("ReadWeek() error = %v", err)
	}
	if week.Week != "2026-W28" || len(week.Troops) != 2 {
		t.Fatalf("ReadWeek() = %+v", week)
	}
	first := week.Troops[0]
	if first.Headcount() != 15 {
		t.Errorf("Headcount() = %d, want 15", first.Headcount())
	}
	if day, ok := first.PinnedDay("Hemp Craft"); !ok || day != model.Wednesday {
		t.Errorf("PinnedDay() = %v, %v", day, ok)
	}
	second := week.Troops[1]
	if second.Scouts != model.DefaultScouts || second.ID == uuid.Nil {
		t.Errorf("Normalize() not applied: %+v", second)
	}
}

func TestReadWeek_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code errors.Code
	}{
		{
			name: "缺少营期",
			yaml: "troops:\n  - name: A\n    preferences: [Archery]\n",
			code: errors.CodeValidationFail,
		},
		{
			name: "没有队伍",
			yaml: "week: w\ntroops: []\n",
			code: errors.CodeValidationFail,
		},
		{
			name: "未知活动",
			yaml: "week: w\ntroops:\n  - name: A\n    preferences: [Bungee]\n",
			code: errors.CodeValidationFail,
		},
		{
			name: "偏好重复",
			yaml: "week: w\ntroops:\n  - name: A\n    preferences: [Archery, Archery]\n",
			code: errors.CodeValidationFail,
		},
		{
			name: "未知专员",
			yaml: "week: w\ntroops:\n  - name: A\n    commissioner: Nobody\n    preferences: [Archery]\n",
			code: errors.CodeValidationFail,
		},
		{
			name: "队伍重名",
			yaml: "week: w\ntroops:\n  - name: A\n    preferences: []\n  - name: A\n    preferences: []\n",
			code: errors.CodeValidationFail,
		},
		{
			name: "无效日期",
			yaml: "week: w\ntroops:\n  - name: A\n    preferences: [Archery]\n    day_requests:\n      Archery: Sunday\n",
			code: errors.CodeInvalidInput,
		},
		{
			name: "未知字段",
			yaml: "week: w\ncolour: red\ntroops:\n  - name: A\n",
			code: errors.CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil).ReadWeek(strings.NewReader(tt.yaml))
			if !errors.Is(err, tt.code) {
				t.Errorf("ReadWeek() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestApplyCatalog(t *testing.T) {
	override := `
area_capacity:
  Archery: 2
activities:
  - name: Archery
    staff: 2
    fixed_day: Tuesday
add:
  - name: Paddle Board
    span: 1
    zone: Beach
    area: Paddle Board
    staff: 1
    tags: [wet]
remove: [History Center]
`
	l := New(nil)
	catalog, err := l.ApplyCatalog(strings.NewReader(override))
	if err != nil {
		t.Fatalf("ApplyCatalog() error = %v", err)
	}
	archery := catalog.MustGet(model.ActivityArchery)
	if archery.Staff != 2 || archery.FixedDay == nil || *archery.FixedDay != model.Tuesday {
		t.Errorf("Archery = %+v", archery)
	}
	if catalog.CapacityOf("Archery") != 2 {
		t.Errorf("CapacityOf(Archery) = %d", catalog.CapacityOf("Archery"))
	}
	paddle, ok := catalog.Get("Paddle Board")
	if !ok || !paddle.IsWet() || paddle.Capacity.Kind != model.CapacityExclusive {
		t.Errorf("Paddle Board = %+v", paddle)
	}
	if _, ok := catalog.Get("History Center"); ok {
		t.Error("History Center should be removed")
	}
	if model.DefaultCatalog().MustGet(model.ActivityArchery).Staff != 1 {
		t.Error("default catalog must not change")
	}
	if l.Catalog() != catalog {
		t.Error("loader should validate against the new catalog")
	}
}

func TestApplyCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"无效时长", "activities:\n  - name: Archery\n    span: 2.5\n"},
		{"无效日期", "activities:\n  - name: Archery\n    fixed_day: Sunday\n"},
		{"未知活动", "activities:\n  - name: Bungee\n    staff: 1\n"},
		{"移除必排", "remove: [Reflection]\n"},
		{"重复添加", "add:\n  - name: Archery\n    span: 1\n"},
		{"容量为零", "area_capacity:\n  Archery: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(nil).ApplyCatalog(strings.NewReader(tt.yaml)); !errors.Is(err, errors.CodeValidationFail) {
				t.Errorf("ApplyCatalog() error = %v, want validation failure", err)
			}
		})
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	result := &scheduler.Result{
		RunID:   uuid.New(),
		Success: true,
		Schedule: []model.AssignmentView{
			{Troop: "Bravo", Activity: "Hemp Craft", Day: model.Monday, Slot: 1, Start: 1},
			{Troop: "Alpha", Activity: "Canoe Snorkel", Day: model.Tuesday, Slot: 2, Start: 1},
			{Troop: "Alpha", Activity: "Canoe Snorkel", Day: model.Tuesday, Slot: 1, Start: 1},
			{Troop: "Alpha", Activity: model.ActivityReflection, Day: model.Friday, Slot: 3, Start: 3},
		},
		Diagnostics: &scheduler.Diagnostics{UnmetTop5: 1, ExcessDays: map[string]int{"Archery": 0}},
	}

	f := BuildSchedule("2026-W28", result)
	if f.Entries[0].Troop != "Alpha" || f.Entries[0].Slot != 1 {
		t.Errorf("entries not sorted: %+v", f.Entries[0])
	}
	if len(f.Grid) != 2 || f.Grid[0].Days[model.Tuesday].Slots[1] != "Canoe Snorkel" {
		t.Errorf("grid = %+v", f.Grid)
	}
	if len(f.Grid[0].Days[model.Thursday].Slots) != 2 {
		t.Error("Thursday should have two slots")
	}

	var buf bytes.Buffer
	if err := WriteSchedule(&buf, f); err != nil {
		t.Fatalf("WriteSchedule() error = %v", err)
	}
	if !strings.Contains(buf.String(), "day: Friday") {
		t.Errorf("days should be written by name:\n%s", buf.String())
	}

	back, err := New(nil).ReadSchedule(&buf)
	if err != nil {
		t.Fatalf("ReadSchedule() error = %v", err)
	}
	if len(back.Entries) != 4 || back.Entries[2].Day != model.Friday || back.Summary.UnmetTop5 != 1 {
		t.Errorf("ReadSchedule() = %+v", back)
	}
}
