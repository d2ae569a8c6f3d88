// Package database 提供数据库连接和管理
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paiban/campsched/internal/config"
	"github.com/paiban/campsched/pkg/logger"

	_ "github.com/lib/pq" // PostgreSQL 驱动
)

// slowQuery 超过该耗时的SQL记录警告
const slowQuery = 100 * time.Millisecond

// schema 排班运行与条目表
var schema = []string{
	`CREATE TABLE IF NOT EXISTS schedule_runs (
		id            UUID PRIMARY KEY,
		week          TEXT NOT NULL,
		voyageur      BOOLEAN NOT NULL DEFAULT FALSE,
		success       BOOLEAN NOT NULL,
		troops        INTEGER NOT NULL,
		unmet_top5    INTEGER NOT NULL,
		unmet_top10   INTEGER NOT NULL,
		gaps          INTEGER NOT NULL,
		forced        INTEGER NOT NULL,
		relaxed       INTEGER NOT NULL,
		forced_troops TEXT[] NOT NULL DEFAULT '{}',
		warnings      TEXT[] NOT NULL DEFAULT '{}',
		message       TEXT NOT NULL DEFAULT '',
		duration_ms   BIGINT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_entries (
		id         UUID PRIMARY KEY,
		run_id     UUID NOT NULL REFERENCES schedule_runs(id) ON DELETE CASCADE,
		troop      TEXT NOT NULL,
		activity   TEXT NOT NULL,
		day        TEXT NOT NULL,
		slot       SMALLINT NOT NULL,
		start_slot SMALLINT NOT NULL,
		forced     BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_schedule_entries_run ON schedule_entries(run_id, troop)`,
	`CREATE INDEX IF NOT EXISTS idx_schedule_runs_week ON schedule_runs(week, created_at DESC)`,
}

// DB 数据库连接封装
type DB struct {
	*sql.DB
	cfg *config.DatabaseConfig
}

// New 创建新的数据库连接
func New(cfg *config.DatabaseConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	// 配置连接池
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("数据库连接成功")

	return &DB{DB: db, cfg: cfg}, nil
}

// Wrap 包装已有连接
func Wrap(db *sql.DB) *DB {
	return &DB{DB: db}
}

// Migrate 创建排班运行相关的表
func (db *DB) Migrate(ctx context.Context) error {
	return db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("执行迁移失败: %w", err)
			}
		}
		return nil
	})
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB != nil {
		logger.Info().Msg("关闭数据库连接")
		return db.DB.Close()
	}
	return nil
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 执行事务
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}

	return nil
}

// ExecContext 执行SQL语句，慢查询记录警告
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := db.DB.ExecContext(ctx, query, args...)
	logSlow(query, time.Since(start))
	return result, err
}

// QueryContext 执行查询
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.DB.QueryContext(ctx, query, args...)
	logSlow(query, time.Since(start))
	return rows, err
}

func logSlow(query string, duration time.Duration) {
	if duration > slowQuery {
		logger.Warn().
			Str("query", truncateQuery(query)).
			Dur("duration", duration).
			Msg("慢SQL查询")
	}
}

// truncateQuery 截断长查询
func truncateQuery(query string) string {
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}
