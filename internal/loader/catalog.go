package loader

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/model"
)

// CatalogOverride 对默认目录的局部覆盖
type CatalogOverride struct {
	AreaCapacity map[string]int     `yaml:"area_capacity" validate:"dive,gte=1"`
	FillPriority []string           `yaml:"fill_priority" validate:"dive,required"`
	Activities   []ActivityOverride `yaml:"activities" validate:"dive"`
	Add          []*model.Activity  `yaml:"add" validate:"dive,required"`
	Remove       []string           `yaml:"remove" validate:"dive,required"`
}

// ActivityOverride 单个活动的可调整字段，未给出的字段保持原值
type ActivityOverride struct {
	Name     string              `yaml:"name" validate:"required"`
	Span     *float64            `yaml:"span" validate:"omitempty,camp_span"`
	Staff    *int                `yaml:"staff" validate:"omitempty,gte=0"`
	Area     *string             `yaml:"area"`
	FixedDay *string             `yaml:"fixed_day" validate:"omitempty,camp_day"`
	Tags     []model.Tag         `yaml:"tags"`
	Capacity *model.CapacityRule `yaml:"capacity"`
}

// LoadCatalog 读取覆盖文件并应用到当前目录
func (l *Loader) LoadCatalog(path string) (*model.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "打开目录文件失败")
	}
	defer f.Close()
	return l.ApplyCatalog(f)
}

// ApplyCatalog 在当前目录的副本上应用覆盖，成功后读取器改用新目录
func (l *Loader) ApplyCatalog(r io.Reader) (*model.Catalog, error) {
	var override CatalogOverride
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&override); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "解析目录文件失败")
	}

	ve := &errors.ValidationErrors{}
	if err := l.validate.Struct(&override); err != nil {
		collect(ve, err)
		return nil, ve.ToAppError()
	}

	catalog := l.catalog.Clone()
	for _, name := range override.Remove {
		if name == model.ActivityReflection || name == model.ActivitySuperTroop || name == catalog.NeutralFiller {
			ve.Add("remove", "不能移除必排或填充活动: "+name)
			continue
		}
		if !removeActivity(catalog, name) {
			ve.Add("remove", "未知的活动: "+name)
		}
	}
	for i, add := range override.Add {
		if _, exists := catalog.Get(add.Name); exists {
			ve.Add(fmt.Sprintf("add[%d].name", i), "活动已存在: "+add.Name)
			continue
		}
		if add.Capacity.Kind == "" {
			add.Capacity.Kind = model.CapacityExclusive
		}
		catalog.Activities = append(catalog.Activities, add)
	}
	catalog.Reindex()

	for i, o := range override.Activities {
		act, ok := catalog.Get(o.Name)
		if !ok {
			ve.Add(fmt.Sprintf("activities[%d].name", i), "未知的活动: "+o.Name)
			continue
		}
		applyActivity(act, o)
	}
	for area, capacity := range override.AreaCapacity {
		catalog.AreaCapacity[area] = capacity
	}
	if len(override.FillPriority) > 0 {
		for i, name := range override.FillPriority {
			if _, ok := catalog.Get(name); !ok {
				ve.Add(fmt.Sprintf("fill_priority[%d]", i), "未知的活动: "+name)
			}
		}
		catalog.FillPriority = override.FillPriority
	}
	if ve.HasErrors() {
		return nil, ve.ToAppError()
	}

	catalog.Reindex()
	l.catalog = catalog
	return catalog, nil
}

func applyActivity(act *model.Activity, o ActivityOverride) {
	if o.Span != nil {
		act.Span = *o.Span
	}
	if o.Staff != nil {
		act.Staff = *o.Staff
	}
	if o.Area != nil {
		act.Area = *o.Area
	}
	if o.FixedDay != nil {
		day, _ := model.ParseDay(*o.FixedDay)
		act.FixedDay = &day
	}
	if o.Tags != nil {
		act.Tags = o.Tags
	}
	if o.Capacity != nil {
		act.Capacity = *o.Capacity
	}
}

func removeActivity(catalog *model.Catalog, name string) bool {
	for i, a := range catalog.Activities {
		if a.Name == name {
			catalog.Activities = append(catalog.Activities[:i], catalog.Activities[i+1:]...)
			kept := catalog.FillPriority[:0:0]
			for _, p := range catalog.FillPriority {
				if p != name {
					kept = append(kept, p)
				}
			}
			catalog.FillPriority = kept
			return true
		}
	}
	return false
}
