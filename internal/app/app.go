package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/foliodesk/internal/config"
	"github.com/foliodesk/internal/logger"
	"github.com/foliodesk/internal/provider"
	"github.com/foliodesk/internal/router"

	"go.uber.org/zap"
)

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
}

func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return opts
}

// Run 应用启动入口
// 构建依赖容器和路由，启动 HTTP 服务并等待退出信号
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	container := provider.NewContainer(opts.Config)
	engine := router.SetupRouter(opts.Config, container)
	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port

	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}

	opts.Logger.Infow("app_start", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-errCh:
		runErr = err
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer stopCancel()
	if err := server.Shutdown(stopCtx); err != nil {
		opts.Logger.Errorw("app_shutdown_failed", "error", err)
	}
	opts.Logger.Infow("app_exit")

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
