// Package loader 读写 YAML 格式的队伍周数据、活动目录覆盖与排班导出
package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/model"
)

// WeekFile 一周的队伍输入
type WeekFile struct {
	Week     string         `yaml:"week" json:"week" validate:"required"`
	Voyageur bool           `yaml:"voyageur" json:"voyageur"`
	Troops   []*model.Troop `yaml:"troops" json:"troops" validate:"required,min=1,dive,required"`
}

// Loader 带校验的读取器
type Loader struct {
	validate *validator.Validate
	catalog  *model.Catalog
}

// New 创建读取器，catalog 为空时使用默认目录
func New(catalog *model.Catalog) *Loader {
	if catalog == nil {
		catalog = model.DefaultCatalog()
	}
	v := validator.New()
	v.RegisterValidation("camp_day", func(fl validator.FieldLevel) bool {
		_, err := model.ParseDay(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("camp_span", func(fl validator.FieldLevel) bool {
		switch fl.Field().Float() {
		case 1, 1.5, 2, 3:
			return true
		}
		return false
	})
	return &Loader{validate: v, catalog: catalog}
}

// Catalog 返回当前目录
func (l *Loader) Catalog() *model.Catalog {
	return l.catalog
}

// SetCatalog 替换目录，后续校验按新目录进行
func (l *Loader) SetCatalog(catalog *model.Catalog) {
	l.catalog = catalog
}

// LoadWeek 从文件读取队伍周数据
func (l *Loader) LoadWeek(path string) (*WeekFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "打开队伍文件失败")
	}
	defer f.Close()
	return l.ReadWeek(f)
}

// ReadWeek 解析并校验队伍周数据
func (l *Loader) ReadWeek(r io.Reader) (*WeekFile, error) {
	var week WeekFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&week); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "解析队伍文件失败")
	}
	for _, t := range week.Troops {
		if t != nil {
			t.Normalize()
		}
	}
	if err := l.ValidateWeek(&week); err != nil {
		return nil, err
	}
	return &week, nil
}

// ValidateWeek 结构校验后再检查活动名称、专员与重复项
func (l *Loader) ValidateWeek(week *WeekFile) error {
	ve := &errors.ValidationErrors{}
	if err := l.validate.Struct(week); err != nil {
		collect(ve, err)
		return ve.ToAppError()
	}

	commissioners := model.Commissioners(week.Voyageur)
	names := make(map[string]bool, len(week.Troops))
	for i, t := range week.Troops {
		prefix := fmt.Sprintf("troops[%d]", i)
		if names[t.Name] {
			ve.Add(prefix+".name", "队伍名称重复: "+t.Name)
		}
		names[t.Name] = true

		if t.Commissioner != "" {
			if _, ok := commissioners.Lookup(t.Commissioner); !ok {
				ve.Add(prefix+".commissioner", "未知的专员: "+t.Commissioner)
			}
		}

		seen := make(map[string]bool, len(t.Preferences))
		for j, p := range t.Preferences {
			field := fmt.Sprintf("%s.preferences[%d]", prefix, j)
			if _, ok := l.catalog.Get(p); !ok {
				ve.Add(field, "未知的活动: "+p)
			}
			if seen[p] {
				ve.Add(field, "偏好重复: "+p)
			}
			seen[p] = true
		}
		for act := range t.DayRequests {
			if _, ok := l.catalog.Get(act); !ok {
				ve.Add(prefix+".day_requests", "未知的活动: "+act)
			}
		}
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// collect 把 validator 的字段错误转换为统一的校验错误
func collect(ve *errors.ValidationErrors, err error) {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		ve.Add("_", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		ve.Add(fe.Namespace(), fmt.Sprintf("不满足规则 %s %s", fe.Tag(), fe.Param()))
	}
}
