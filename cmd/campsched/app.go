package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/paiban/campsched/internal/config"
	"github.com/paiban/campsched/internal/constraints"
	"github.com/paiban/campsched/internal/database"
	"github.com/paiban/campsched/internal/loader"
	"github.com/paiban/campsched/internal/repository"
	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler"
	"github.com/paiban/campsched/pkg/scheduler/event"
	"github.com/paiban/campsched/pkg/validator"
)

func catalogFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "catalog",
		Aliases: []string{"c"},
		Usage:   "活动目录覆盖文件（YAML），默认取 SCHEDULER_CATALOG_FILE",
	}
}

func newApp(cfg *config.Config) *cli.App {
	return &cli.App{
		Name:    "campsched",
		Usage:   "营地一周活动排班",
		Version: fmt.Sprintf("%s (%s)", Version, BuildTime),
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "由队伍文件生成排班",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "队伍周数据文件（YAML）",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "排班输出文件，- 表示标准输出",
						Value:   "-",
					},
					catalogFlag(),
					&cli.BoolFlag{
						Name:  "voyageur",
						Usage: "按 Voyageur 规则排班（覆盖队伍文件中的设置）",
					},
					&cli.BoolFlag{
						Name:  "persist",
						Usage: "将排班结果写入数据库",
					},
					&cli.BoolFlag{
						Name:  "skip-polish",
						Usage: "跳过局部优化阶段",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "排班计算超时",
						Value: cfg.Scheduler.DefaultTimeout,
					},
				},
				Action: func(cCtx *cli.Context) error {
					return runGenerate(cCtx, cfg)
				},
			},
			{
				Name:  "validate",
				Usage: "检查已导出排班的冲突",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "队伍周数据文件（YAML）",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "schedule",
						Aliases:  []string{"s"},
						Usage:    "排班文件（generate 的输出）",
						Required: true,
					},
					catalogFlag(),
				},
				Action: func(cCtx *cli.Context) error {
					return runValidate(cCtx, cfg)
				},
			},
			{
				Name:  "catalog",
				Usage: "输出当前生效的活动目录",
				Flags: []cli.Flag{catalogFlag()},
				Action: func(cCtx *cli.Context) error {
					catalog, err := loadCatalog(cCtx, cfg)
					if err != nil {
						return err
					}
					return writeYAML(cCtx.App.Writer, catalog)
				},
			},
			{
				Name:  "rules",
				Usage: "列出全部约束规则及其参数",
				Action: func(cCtx *cli.Context) error {
					return writeYAML(cCtx.App.Writer, constraints.GetLibrary(cfg.Scheduler.Limits()))
				},
			},
		},
	}
}

func runGenerate(cCtx *cli.Context, cfg *config.Config) error {
	catalog, err := loadCatalog(cCtx, cfg)
	if err != nil {
		return err
	}
	week, err := loader.New(catalog).LoadWeek(cCtx.String("input"))
	if err != nil {
		return err
	}

	opts := cfg.Scheduler.EngineOptions(catalog)
	opts.Voyageur = week.Voyageur || cCtx.Bool("voyageur")
	if cCtx.Bool("skip-polish") && opts.Solver != nil {
		so := *opts.Solver
		so.SkipPolish = true
		opts.Solver = &so
	}

	engine := scheduler.NewEngine(opts)
	engine.SetSink(event.NewLogSink())

	ctx, cancel := context.WithTimeout(cCtx.Context, cCtx.Duration("timeout"))
	defer cancel()

	result, err := engine.Generate(ctx, week.Troops)
	if err != nil && result == nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.New(errors.CodeTimeout, "排班计算超时")
		}
		return err
	}

	logger.Info().
		Str("week", week.Week).
		Int("troops", len(week.Troops)).
		Int("assignments", len(result.Schedule)).
		Bool("success", result.Success).
		Dur("duration", result.Duration).
		Msg(result.Message)

	out := loader.BuildSchedule(week.Week, result)
	if werr := writeSchedule(cCtx, out); werr != nil {
		return werr
	}
	if err != nil {
		// 结果已写出，供排查
		return err
	}

	if cCtx.Bool("persist") {
		return persist(cCtx.Context, cfg, week.Week, result)
	}
	return nil
}

func writeSchedule(cCtx *cli.Context, f *loader.ScheduleFile) error {
	path := cCtx.String("output")
	if path == "" || path == "-" {
		return loader.WriteSchedule(cCtx.App.Writer, f)
	}
	return loader.SaveSchedule(path, f)
}

func persist(ctx context.Context, cfg *config.Config, week string, result *scheduler.Result) error {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	run := repository.NewRun(week, result)
	if err := repository.NewRunRepository(db).Save(ctx, run, result.Schedule); err != nil {
		return err
	}
	logger.Info().Str("run_id", run.ID.String()).Msg("排班已保存")
	return nil
}

func runValidate(cCtx *cli.Context, cfg *config.Config) error {
	catalog, err := loadCatalog(cCtx, cfg)
	if err != nil {
		return err
	}
	l := loader.New(catalog)
	week, err := l.LoadWeek(cCtx.String("input"))
	if err != nil {
		return err
	}
	sched, err := l.LoadSchedule(cCtx.String("schedule"))
	if err != nil {
		return err
	}

	store, err := validator.Rebuild(catalog, week.Troops, sched.Entries, cfg.Scheduler.Limits())
	if err != nil {
		return err
	}
	store.SetVoyageur(week.Voyageur || sched.Voyageur)

	conflicts := validator.NewConflictDetector(nil).DetectAll(store)
	printConflicts(cCtx.App.Writer, conflicts)
	if validator.HasInvariantViolation(conflicts) {
		return errors.New(errors.CodeInvariantViolation, "排班违反硬性约束").
			WithField("conflicts", len(conflicts))
	}
	return nil
}

func printConflicts(w io.Writer, conflicts []validator.Conflict) {
	if len(conflicts) == 0 {
		fmt.Fprintln(w, "未发现冲突")
		return
	}
	summary := validator.Summary(conflicts)
	types := make([]string, 0, len(summary))
	for t := range summary {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "%s: %d\n", t, summary[validator.ConflictType(t)])
	}
	for _, c := range conflicts {
		fmt.Fprintf(w, "[%s] %s %s %s %s\n", c.Severity, c.Type, c.Troop, c.Slot, c.Message)
	}
}

func loadCatalog(cCtx *cli.Context, cfg *config.Config) (*model.Catalog, error) {
	path := cCtx.String("catalog")
	if path == "" {
		path = cfg.Scheduler.CatalogFile
	}
	if path == "" {
		return model.DefaultCatalog(), nil
	}
	return loader.New(nil).LoadCatalog(path)
}

func writeYAML(w io.Writer, v interface{}) error {
	if w == nil {
		w = os.Stdout
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
