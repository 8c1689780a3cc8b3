package tailnet

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-tailnet/internal/engine"
)

// Option 构造选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 引擎实现，nil 时使用编译进来的默认引擎
	engine engine.Engine

	// 指标注册表，nil 时不收集指标
	registerer prometheus.Registerer

	// 绑定层日志
	logger *slog.Logger
}

func (o *options) apply(opts ...Option) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(o); err != nil {
			return err
		}
	}
	return nil
}

// WithEngine 指定引擎实现
//
// 未指定时使用以 -tags libtailscale 编译进来的 libtailscale 引擎。
func WithEngine(e engine.Engine) Option {
	return func(o *options) error {
		if e == nil {
			return fmt.Errorf("%w: engine must not be nil", ErrInvalidArgument)
		}
		o.engine = e
		return nil
	}
}

// WithMetrics 将指标注册到 reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithLogger 指定绑定层日志（默认为 tailnet 子系统日志）
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return fmt.Errorf("%w: logger must not be nil", ErrInvalidArgument)
		}
		o.logger = l
		return nil
	}
}
