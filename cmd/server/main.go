package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/canyouseeus/thelostandunfounds-sub005/internal/app"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/config"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/logger"
	"github.com/canyouseeus/thelostandunfounds-sub005/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiCyan  = "\033[36m"
)

func main() {
	printStartupBanner()

	// 加载配置
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if cfg.Server.Mode == "release" {
		if isWeakToken(cfg.Security.AdminToken) {
			stdLog.Fatalf("管理令牌过弱或未配置，请在生产环境中配置强随机令牌")
		}
		if cfg.Security.WebhookSecret == "" {
			stdLog.Printf("警告: 未配置 webhook 验签密钥，订单回调将不做签名校验")
		}
	}

	// 初始化数据库
	db, err := models.InitDB(&cfg.Database)
	if err != nil {
		stdLog.Fatalf("数据库初始化失败: %v", err)
	}

	// 自动迁移数据库表
	if err := models.AutoMigrate(db); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 解析命令行参数
	var mode string
	flag.StringVar(&mode, "mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	if err := app.Run(app.Options{
		Config:  cfg,
		DB:      db,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	}); err != nil {
		stdLog.Fatalf("服务运行失败: %v", err)
	}
}

func printStartupBanner() {
	fmt.Println(ansiCyan + ansiBold + "Commission Ledger API" + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------------" + ansiReset)
}

func isWeakToken(token string) bool {
	return len(token) < 32
}
