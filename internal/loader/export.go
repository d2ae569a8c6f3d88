package loader

import (
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler"
)

// ScheduleFile 导出的一周排班
type ScheduleFile struct {
	Week     string                 `yaml:"week" validate:"required"`
	RunID    string                 `yaml:"run_id,omitempty"`
	Voyageur bool                   `yaml:"voyageur"`
	Success  bool                   `yaml:"success"`
	Message  string                 `yaml:"message,omitempty"`
	Summary  *Summary               `yaml:"summary,omitempty"`
	Grid     []TroopGrid            `yaml:"grid,omitempty"`
	Entries  []model.AssignmentView `yaml:"entries" validate:"dive"`
}

// Summary 诊断摘要
type Summary struct {
	UnmetTop5    int            `yaml:"unmet_top5"`
	UnmetTop10   int            `yaml:"unmet_top10"`
	Gaps         int            `yaml:"gaps"`
	Forced       int            `yaml:"forced"`
	Relaxed      int            `yaml:"relaxed"`
	ForcedTroops []string       `yaml:"forced_troops,omitempty"`
	ExcessDays   map[string]int `yaml:"excess_days,omitempty"`
	Warnings     []string       `yaml:"warnings,omitempty"`
}

// TroopGrid 一支队伍的周视图
type TroopGrid struct {
	Troop string   `yaml:"troop"`
	Days  []DayRow `yaml:"days"`
}

// DayRow 一天各时段的活动
type DayRow struct {
	Day   model.Day `yaml:"day"`
	Slots []string  `yaml:"slots,flow"`
}

// BuildSchedule 由引擎结果生成导出结构
func BuildSchedule(week string, result *scheduler.Result) *ScheduleFile {
	f := &ScheduleFile{
		Week:     week,
		RunID:    result.RunID.String(),
		Voyageur: result.Voyageur,
		Success:  result.Success,
		Message:  result.Message,
		Entries:  SortViews(result.Schedule),
	}
	if d := result.Diagnostics; d != nil {
		f.Summary = &Summary{
			UnmetTop5:    d.UnmetTop5,
			UnmetTop10:   d.UnmetTop10,
			Gaps:         d.Gaps,
			Forced:       d.Forced,
			Relaxed:      d.Relaxed,
			ForcedTroops: d.ForcedTroops,
			ExcessDays:   d.ExcessDays,
			Warnings:     d.Warnings,
		}
	}
	f.Grid = Grid(f.Entries)
	return f
}

// SortViews 按队伍、日期、时段排序的副本
func SortViews(views []model.AssignmentView) []model.AssignmentView {
	out := make([]model.AssignmentView, len(views))
	copy(out, views)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Troop != b.Troop {
			return a.Troop < b.Troop
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		return a.Activity < b.Activity
	})
	return out
}

// Grid 把排好序的记录整理成每队每天的时段表，同一时段多条记录用 " / " 连接
func Grid(sorted []model.AssignmentView) []TroopGrid {
	var grid []TroopGrid
	index := make(map[string]int)
	for _, v := range sorted {
		i, ok := index[v.Troop]
		if !ok {
			i = len(grid)
			index[v.Troop] = i
			tg := TroopGrid{Troop: v.Troop}
			for _, d := range model.Days {
				tg.Days = append(tg.Days, DayRow{Day: d, Slots: make([]string, d.SlotCount())})
			}
			grid = append(grid, tg)
		}
		if !v.Day.Valid() || v.Slot < 1 || v.Slot > v.Day.SlotCount() {
			continue
		}
		cell := &grid[i].Days[v.Day].Slots[v.Slot-1]
		if *cell == "" {
			*cell = v.Activity
		} else {
			*cell += " / " + v.Activity
		}
	}
	return grid
}

// WriteSchedule 以两空格缩进写出 YAML
func WriteSchedule(w io.Writer, f *ScheduleFile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "导出排班失败")
	}
	return enc.Close()
}

// SaveSchedule 写出到文件，路径为 "-" 时写到标准输出
func SaveSchedule(path string, f *ScheduleFile) error {
	if path == "" || path == "-" {
		return WriteSchedule(os.Stdout, f)
	}
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "创建输出文件失败")
	}
	defer out.Close()
	return WriteSchedule(out, f)
}

// ReadSchedule 读取已导出的排班，只需要 entries 与 week
func (l *Loader) ReadSchedule(r io.Reader) (*ScheduleFile, error) {
	var f ScheduleFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "解析排班文件失败")
	}
	if err := l.validate.Struct(&f); err != nil {
		ve := &errors.ValidationErrors{}
		collect(ve, err)
		return nil, ve.ToAppError()
	}
	return &f, nil
}

// LoadSchedule 从文件读取已导出的排班
func (l *Loader) LoadSchedule(path string) (*ScheduleFile, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "打开排班文件失败")
	}
	defer in.Close()
	return l.ReadSchedule(in)
}
