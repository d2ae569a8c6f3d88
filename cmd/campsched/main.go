// campsched 命令行：由队伍 YAML 生成一周活动排班
package main

import (
	"os"

	"github.com/paiban/campsched/internal/config"
	"github.com/paiban/campsched/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	logCfg := cfg.LoggerConfig()
	logCfg.Output = "stderr"
	logger.Init(logCfg)

	if err := newApp(cfg).Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("执行失败")
		os.Exit(1)
	}
}
