package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const namespace = "tailnet"

// 结果标签
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// 字节方向标签
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Collector 绑定层指标收集器
type Collector struct {
	dials        *prometheus.CounterVec
	listens      *prometheus.CounterVec
	accepts      *prometheus.CounterVec
	engineErrors *prometheus.CounterVec
	connBytes    *prometheus.CounterVec
	openConns    prometheus.Gauge
	openLns      prometheus.Gauge
}

// New 创建收集器并注册到 reg
//
// reg 为 nil 时返回 nil（禁用指标）。重复注册同名指标时复用已注册的实例，
// 同一进程中的多个 Server 可以共享一个 Registerer。其他注册冲突（如同名
// 但描述不同的指标）返回错误，本次新注册的指标全部撤销。
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		return nil, nil
	}

	c := &Collector{
		dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dials_total",
			Help:      "Outbound dials by network and result.",
		}, []string{"network", "result"}),
		listens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listens_total",
			Help:      "Listen calls by network and result.",
		}, []string{"network", "result"}),
		accepts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accepts_total",
			Help:      "Accepted connections by result.",
		}, []string{"result"}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Non-zero engine statuses by operation.",
		}, []string{"op"}),
		connBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conn_bytes_total",
			Help:      "Bytes transferred on connections by direction.",
		}, []string{"direction"}),
		openConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_conns",
			Help:      "Connections currently open.",
		}),
		openLns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_listeners",
			Help:      "Listeners currently open.",
		}),
	}

	var (
		added []prometheus.Collector
		errs  error
		err   error
	)
	c.dials, err = register(reg, c.dials, &added)
	errs = multierr.Append(errs, err)
	c.listens, err = register(reg, c.listens, &added)
	errs = multierr.Append(errs, err)
	c.accepts, err = register(reg, c.accepts, &added)
	errs = multierr.Append(errs, err)
	c.engineErrors, err = register(reg, c.engineErrors, &added)
	errs = multierr.Append(errs, err)
	c.connBytes, err = register(reg, c.connBytes, &added)
	errs = multierr.Append(errs, err)
	c.openConns, err = register(reg, c.openConns, &added)
	errs = multierr.Append(errs, err)
	c.openLns, err = register(reg, c.openLns, &added)
	errs = multierr.Append(errs, err)

	if errs != nil {
		for _, col := range added {
			reg.Unregister(col)
		}
		return nil, fmt.Errorf("register metrics: %w", errs)
	}
	return c, nil
}

// register 注册指标，已存在时返回已注册的实例
//
// 新注册的实例追加到 added，供失败时撤销。
func register[T prometheus.Collector](reg prometheus.Registerer, col T, added *[]prometheus.Collector) (T, error) {
	err := reg.Register(col)
	if err == nil {
		*added = append(*added, col)
		return col, nil
	}
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return col, err
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Dial 记录一次拨号
func (c *Collector) Dial(network string, err error) {
	if c == nil {
		return
	}
	c.dials.WithLabelValues(network, result(err)).Inc()
}

// Listen 记录一次监听
func (c *Collector) Listen(network string, err error) {
	if c == nil {
		return
	}
	c.listens.WithLabelValues(network, result(err)).Inc()
}

// Accept 记录一次接受
func (c *Collector) Accept(err error) {
	if c == nil {
		return
	}
	c.accepts.WithLabelValues(result(err)).Inc()
}

// EngineError 记录一次引擎非零状态
func (c *Collector) EngineError(op string) {
	if c == nil {
		return
	}
	c.engineErrors.WithLabelValues(op).Inc()
}

// ConnBytes 记录连接上的字节数
func (c *Collector) ConnBytes(direction string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.connBytes.WithLabelValues(direction).Add(float64(n))
}

// ConnOpened 打开连接数加一
func (c *Collector) ConnOpened() {
	if c == nil {
		return
	}
	c.openConns.Inc()
}

// ConnClosed 打开连接数减一
func (c *Collector) ConnClosed() {
	if c == nil {
		return
	}
	c.openConns.Dec()
}

// ListenerOpened 打开监听数加一
func (c *Collector) ListenerOpened() {
	if c == nil {
		return
	}
	c.openLns.Inc()
}

// ListenerClosed 打开监听数减一
func (c *Collector) ListenerClosed() {
	if c == nil {
		return
	}
	c.openLns.Dec()
}
