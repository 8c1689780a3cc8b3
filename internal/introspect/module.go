package introspect

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module 返回自省服务 Fx 模块
//
// 容器中没有 *Config 时不创建服务。
func Module() fx.Option {
	return fx.Module("introspect",
		fx.Provide(NewFromParams),
		fx.Invoke(registerLifecycle),
	)
}

// Params 自省服务依赖参数
type Params struct {
	fx.In

	Config   *Config             `optional:"true"`
	Node     Node                `optional:"true"`
	Gatherer prometheus.Gatherer `optional:"true"`
}

// Output 自省服务输出
type Output struct {
	fx.Out

	Server *Server
}

// NewFromParams 从参数创建自省服务
func NewFromParams(p Params) Output {
	if p.Config == nil {
		return Output{}
	}

	cfg := *p.Config
	if cfg.Node == nil {
		cfg.Node = p.Node
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = p.Gatherer
	}
	return Output{Server: New(cfg)}
}

func registerLifecycle(lc fx.Lifecycle, server *Server) {
	if server == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return server.Stop()
		},
	})
}
