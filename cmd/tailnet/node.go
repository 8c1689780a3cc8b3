package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	tailnet "github.com/dep2p/go-tailnet"
	"github.com/dep2p/go-tailnet/internal/introspect"
)

// serverOptions 附加的 Server 选项（测试中注入引擎）
var serverOptions []tailnet.Option

// stopTimeout 关闭 Fx 应用的超时
const stopTimeout = 10 * time.Second

// nodeFunc 在节点运行期间执行的命令逻辑
type nodeFunc func(ctx context.Context, srv *tailnet.Server) error

// runNode 组装并启动节点，执行 fn 后关闭
//
// 节点、指标注册表和自省服务都由 Fx 管理：Server 在 OnStart 时启动，
// 在 OnStop 时关闭；设置 --metrics-addr 时自省服务同时提供 /metrics。
func (g *Globals) runNode(ctx context.Context, fn nodeFunc) error {
	cfg, err := g.nodeConfig(os.Getenv)
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return fmt.Errorf("创建状态目录: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var srv *tailnet.Server
	opts := []fx.Option{
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: g.zapLogger()}
		}),
		fx.Provide(fx.Annotate(
			func() *prometheus.Registry { return reg },
			fx.As(new(prometheus.Registerer), new(prometheus.Gatherer)),
		)),
		tailnet.Module(cfg, serverOptions...),
		fx.Provide(func(s *tailnet.Server) introspect.Node { return s }),
		introspect.Module(),
		fx.Populate(&srv),
	}
	if g.MetricsAddr != "" {
		opts = append(opts, fx.Supply(&introspect.Config{Addr: g.MetricsAddr}))
	}

	app := fx.New(opts...)
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	log.Info("节点已启动", "node", srv.String(), "version", tailnet.Version)

	runErr := fn(ctx, srv)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Warn("关闭节点时出错", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
