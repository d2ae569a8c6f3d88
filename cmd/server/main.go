// campsched 营地活动排班服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paiban/campsched/internal/config"
	"github.com/paiban/campsched/internal/database"
	"github.com/paiban/campsched/internal/handler"
	"github.com/paiban/campsched/internal/loader"
	"github.com/paiban/campsched/internal/metrics"
	"github.com/paiban/campsched/internal/middleware"
	"github.com/paiban/campsched/internal/repository"
	"github.com/paiban/campsched/pkg/logger"
	"github.com/paiban/campsched/pkg/model"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LoggerConfig())

	fmt.Printf("campsched 营地排班服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	catalog := model.DefaultCatalog()
	if cfg.Scheduler.CatalogFile != "" {
		catalog, err = loader.New(nil).LoadCatalog(cfg.Scheduler.CatalogFile)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.Scheduler.CatalogFile).Msg("加载活动目录失败")
		}
		logger.Info().Str("file", cfg.Scheduler.CatalogFile).Int("activities", len(catalog.Activities)).Msg("已加载活动目录覆盖")
	}
	options := cfg.Scheduler.EngineOptions(catalog)
	reg := metrics.GetRegistry()

	scheduleHandler := handler.NewScheduleHandler(options, reg).
		WithLimits(cfg.Scheduler.DefaultTimeout, cfg.API.MaxBodyBytes)

	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("连接数据库失败")
		}
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("数据库迁移失败")
		}
		scheduleHandler.WithRuns(repository.NewRunRepository(db))
	}

	catalogHandler := handler.NewCatalogHandler(catalog, options.Limits)
	statsHandler := handler.NewStatsHandler(catalog, options.Limits)

	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		dbStatus := "disabled"
		if db != nil {
			dbStatus = "ok"
			if err := db.Health(r.Context()); err != nil {
				status, code, dbStatus = "degraded", http.StatusServiceUnavailable, err.Error()
			}
		}
		writeJSON(w, code, map[string]interface{}{
			"status":   status,
			"version":  Version,
			"database": dbStatus,
			"time":     time.Now().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/" {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"error":   true,
				"code":    "NOT_FOUND",
				"message": "接口不存在: " + r.URL.Path,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"name":    "campsched API",
			"version": Version,
			"endpoints": []string{
				"POST /api/v1/schedule/generate",
				"POST /api/v1/schedule/validate",
				"GET  /api/v1/schedule/runs",
				"GET  /api/v1/schedule/runs/{id}",
				"DELETE /api/v1/schedule/runs/{id}",
				"GET  /api/v1/catalog",
				"GET  /api/v1/constraints/library",
				"POST /api/v1/stats/coverage",
				"POST /api/v1/stats/fairness",
				"POST /api/v1/stats/areas",
				"POST /api/v1/stats/swaps",
			},
		})
	})

	// ========================================
	// 排班
	// ========================================

	mux.HandleFunc("POST /api/v1/schedule/generate", scheduleHandler.Generate)
	mux.HandleFunc("POST /api/v1/schedule/validate", scheduleHandler.Validate)
	mux.HandleFunc("GET /api/v1/schedule/runs", scheduleHandler.ListRuns)
	mux.HandleFunc("GET /api/v1/schedule/runs/{id}", scheduleHandler.GetRun)
	mux.HandleFunc("DELETE /api/v1/schedule/runs/{id}", scheduleHandler.DeleteRun)

	// ========================================
	// 目录与规则
	// ========================================

	mux.HandleFunc("GET /api/v1/catalog", catalogHandler.Catalog)
	mux.HandleFunc("GET /api/v1/constraints/library", catalogHandler.ConstraintLibrary)

	// ========================================
	// 统计分析
	// ========================================

	mux.HandleFunc("POST /api/v1/stats/coverage", statsHandler.GetCoverageHandler)
	mux.HandleFunc("POST /api/v1/stats/fairness", statsHandler.GetFairnessHandler)
	mux.HandleFunc("POST /api/v1/stats/areas", statsHandler.GetAreaHandler)
	mux.HandleFunc("POST /api/v1/stats/swaps", statsHandler.GetSwapHandler)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, reg.Handler())
	}

	// 执行顺序：requestID -> recovery -> rateLimit -> cors -> logging -> handler
	var limiter *middleware.RateLimiter
	if cfg.API.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.API.RateLimit)
	}
	chain := []middleware.Middleware{middleware.RequestID, middleware.Recovery, middleware.RateLimit(limiter)}
	if cfg.API.CORS.Enabled {
		chain = append(chain, middleware.CORS(cfg.API.CORS.Origins))
	}
	chain = append(chain, middleware.Logging(reg))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      middleware.Chain(mux, chain...),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Scheduler.DefaultTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Bool("voyageur", options.Voyageur).
			Bool("database", db != nil).
			Str("api_docs", fmt.Sprintf("http://localhost:%d/api/v1/", cfg.App.Port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return
	}

	logger.Info().Msg("服务器已关闭")
}
