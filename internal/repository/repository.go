// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
)

// ListFilter 列表查询过滤器
type ListFilter struct {
	Week     string `json:"week,omitempty"`
	Voyageur *bool  `json:"voyageur,omitempty"`
	Success  *bool  `json:"success,omitempty"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
	OrderBy  string `json:"order_by,omitempty"`
	OrderDir string `json:"order_dir,omitempty"` // asc/desc
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{
		Offset:   0,
		Limit:    20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithWeek 设置营期
func (f ListFilter) WithWeek(week string) ListFilter {
	f.Week = week
	return f
}

// WithSuccess 按运行结果过滤
func (f ListFilter) WithSuccess(success bool) ListFilter {
	f.Success = &success
	return f
}

// orderColumns 允许排序的列
var orderColumns = map[string]bool{
	"created_at":  true,
	"week":        true,
	"unmet_top5":  true,
	"unmet_top10": true,
	"duration_ms": true,
}

// order 返回安全的排序子句
func (f ListFilter) order() string {
	col := f.OrderBy
	if !orderColumns[col] {
		col = "created_at"
	}
	dir := "DESC"
	if f.OrderDir == "asc" {
		dir = "ASC"
	}
	return col + " " + dir
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}
