package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/foliodesk/internal/app"
	"github.com/foliodesk/internal/config"
	"github.com/foliodesk/internal/logger"

	"github.com/gin-gonic/gin"
)

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"
	ansiGreen = "\033[32m"
	ansiCyan  = "\033[36m"
)

func main() {
	printStartupBanner()

	// 加载配置
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	log := logger.S()

	if strings.TrimSpace(cfg.Payment.KeySecret) == "" {
		if cfg.Server.Mode == "release" {
			log.Fatalf("payment.key_secret 未配置，生产环境无法核验支付回调签名")
		}
		log.Warnf("警告: payment.key_secret 未配置，支付核验在配置密钥前不可用")
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := app.Run(app.Options{
		Config:  cfg,
		Logger:  log,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}); err != nil {
		log.Fatalf("服务启动失败: %v", err)
	}
}

func printStartupBanner() {
	fmt.Println(ansiCyan + "███████╗ ██████╗ ██╗     ██╗ ██████╗ ██████╗ ███████╗███████╗██╗  ██╗" + ansiReset)
	fmt.Println(ansiCyan + "██╔════╝██╔═══██╗██║     ██║██╔═══██╗██╔══██╗██╔════╝██╔════╝██║ ██╔╝" + ansiReset)
	fmt.Println(ansiCyan + "█████╗  ██║   ██║██║     ██║██║   ██║██║  ██║█████╗  ███████╗█████╔╝ " + ansiReset)
	fmt.Println(ansiCyan + "██╔══╝  ██║   ██║██║     ██║██║   ██║██║  ██║██╔══╝  ╚════██║██╔═██╗ " + ansiReset)
	fmt.Println(ansiCyan + "██║     ╚██████╔╝███████╗██║╚██████╔╝██████╔╝███████╗███████║██║  ██╗" + ansiReset)
	fmt.Println(ansiCyan + "╚═╝      ╚═════╝ ╚══════╝╚═╝ ╚═════╝ ╚═════╝ ╚══════╝╚══════╝╚═╝  ╚═╝" + ansiReset)
	fmt.Println(ansiGreen + ansiBold + "FolioDesk 会话服务" + ansiReset)
	fmt.Println(ansiDim + "--------------------------------------------------------------" + ansiReset)
}
