package tailnet

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Params Server 的 Fx 依赖参数
type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Registerer prometheus.Registerer `optional:"true"`
}

// Module 返回提供 *Server 的 Fx 模块
//
// Server 在 OnStart 时启动（不等待可用），在 OnStop 时关闭。
// 容器中存在 prometheus.Registerer 时自动启用指标。
//
//	app := fx.New(
//	    tailnet.Module(cfg),
//	    fx.Invoke(func(srv *tailnet.Server) { ... }),
//	)
func Module(cfg Config, opts ...Option) fx.Option {
	return fx.Module("tailnet",
		fx.Provide(func(p Params) (*Server, error) {
			return newFromParams(p, cfg, opts...)
		}),
	)
}

func newFromParams(p Params, cfg Config, opts ...Option) (*Server, error) {
	if p.Registerer != nil {
		opts = append([]Option{WithMetrics(p.Registerer)}, opts...)
	}
	s, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start()
		},
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}
