package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paiban/campsched/pkg/errors"
	"github.com/paiban/campsched/pkg/model"
	"github.com/paiban/campsched/pkg/scheduler"
)

// Run 一次排班运行的记录
type Run struct {
	ID           uuid.UUID `json:"id"`
	Week         string    `json:"week"`
	Voyageur     bool      `json:"voyageur"`
	Success      bool      `json:"success"`
	Troops       int       `json:"troops"`
	UnmetTop5    int       `json:"unmet_top5"`
	UnmetTop10   int       `json:"unmet_top10"`
	Gaps         int       `json:"gaps"`
	Forced       int       `json:"forced"`
	Relaxed      int       `json:"relaxed"`
	ForcedTroops []string  `json:"forced_troops"`
	Warnings     []string  `json:"warnings"`
	Message      string    `json:"message"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewRun 由引擎结果生成运行记录
func NewRun(week string, result *scheduler.Result) *Run {
	run := &Run{
		ID:         result.RunID,
		Week:       week,
		Voyageur:   result.Voyageur,
		Success:    result.Success,
		Troops:     len(result.Troops),
		Message:    result.Message,
		DurationMs: result.Duration.Milliseconds(),
	}
	if d := result.Diagnostics; d != nil {
		run.UnmetTop5 = d.UnmetTop5
		run.UnmetTop10 = d.UnmetTop10
		run.Gaps = d.Gaps
		run.Forced = d.Forced
		run.Relaxed = d.Relaxed
		run.ForcedTroops = d.ForcedTroops
		run.Warnings = d.Warnings
	}
	return run
}

// RunRepositoryInterface 排班运行仓储接口
type RunRepositoryInterface interface {
	Save(ctx context.Context, run *Run, entries []model.AssignmentView) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, filter ListFilter) ([]*Run, int, error)
	Entries(ctx context.Context, runID uuid.UUID) ([]model.AssignmentView, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RunRepository 排班运行仓储实现
type RunRepository struct {
	db DB
}

// NewRunRepository 创建排班运行仓储
func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, week, voyageur, success, troops, unmet_top5, unmet_top10,
	gaps, forced, relaxed, forced_troops, warnings, message, duration_ms, created_at`

// Save 在一个事务中写入运行记录与全部条目
func (r *RunRepository) Save(ctx context.Context, run *Run, entries []model.AssignmentView) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "开始事务失败")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO schedule_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID, run.Week, run.Voyageur, run.Success, run.Troops, run.UnmetTop5, run.UnmetTop10,
		run.Gaps, run.Forced, run.Relaxed, pq.Array(nonNil(run.ForcedTroops)), pq.Array(nonNil(run.Warnings)),
		run.Message, run.DurationMs, run.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "创建排班运行记录失败")
	}

	entryQuery := `
		INSERT INTO schedule_entries (id, run_id, troop, activity, day, slot, start_slot, forced)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, entryQuery,
			uuid.New(), run.ID, e.Troop, e.Activity, e.Day.String(), e.Slot, e.Start, e.Forced,
		); err != nil {
			return errors.Wrap(err, errors.CodeDatabaseError, "创建排班条目失败")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "提交事务失败")
	}
	return nil
}

// GetByID 根据ID获取运行记录
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM schedule_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("schedule_run", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询排班运行记录失败")
	}
	return run, nil
}

// List 列出运行记录
func (r *RunRepository) List(ctx context.Context, filter ListFilter) ([]*Run, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Week != "" {
		conditions = append(conditions, fmt.Sprintf("week = $%d", argNum))
		args = append(args, filter.Week)
		argNum++
	}

	if filter.Voyageur != nil {
		conditions = append(conditions, fmt.Sprintf("voyageur = $%d", argNum))
		args = append(args, *filter.Voyageur)
		argNum++
	}

	if filter.Success != nil {
		conditions = append(conditions, fmt.Sprintf("success = $%d", argNum))
		args = append(args, *filter.Success)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// 计数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM schedule_runs %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "统计排班运行数量失败")
	}

	query := fmt.Sprintf(`SELECT %s FROM schedule_runs %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		runColumns, whereClause, filter.order(), argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询排班运行列表失败")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "扫描排班运行记录失败")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "遍历排班运行记录失败")
	}

	return runs, total, nil
}

// Entries 获取运行的全部条目（按队伍与时段排序）
func (r *RunRepository) Entries(ctx context.Context, runID uuid.UUID) ([]model.AssignmentView, error) {
	query := `
		SELECT troop, activity, day, slot, start_slot, forced
		FROM schedule_entries
		WHERE run_id = $1
		ORDER BY troop, day, slot
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询排班条目失败")
	}
	defer rows.Close()

	var entries []model.AssignmentView
	for rows.Next() {
		var v model.AssignmentView
		var day string
		if err := rows.Scan(&v.Troop, &v.Activity, &day, &v.Slot, &v.Start, &v.Forced); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "扫描排班条目失败")
		}
		if v.Day, err = model.ParseDay(day); err != nil {
			return nil, errors.Wrap(err, errors.CodeDatabaseError, "排班条目日期无效")
		}
		entries = append(entries, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "遍历排班条目失败")
	}
	return entries, nil
}

// Delete 删除运行记录，条目随外键级联删除
func (r *RunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM schedule_runs WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除排班运行记录失败")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("schedule_run", id.String())
	}
	return nil
}

// scanRun 扫描单行运行记录
func scanRun(row Scanner) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID, &run.Week, &run.Voyageur, &run.Success, &run.Troops, &run.UnmetTop5, &run.UnmetTop10,
		&run.Gaps, &run.Forced, &run.Relaxed, pq.Array(&run.ForcedTroops), pq.Array(&run.Warnings),
		&run.Message, &run.DurationMs, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
