package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	tailnet "github.com/dep2p/go-tailnet"
	"github.com/dep2p/go-tailnet/internal/util/addrutil"
)

// ============================================================================
//                              回显服务
// ============================================================================

// EchoServerCmd 回显服务
type EchoServerCmd struct {
	Addr       string  `arg:"" optional:"" default:":7" help:"监听地址（默认 :7）。"`
	Network    string  `help:"网络类型。" enum:"tcp,tcp4,tcp6" default:"tcp"`
	Funnel     bool    `help:"经 Funnel 在公网监听（端口须为 443、8443 或 10000）。"`
	FunnelOnly bool    `help:"只接受来自公网的连接。"`
	RetryRate  float64 `help:"接受失败后的重试速率（次/秒）。" default:"10"`
}

// Run 执行命令
func (c *EchoServerCmd) Run(ctx context.Context, g *Globals) error {
	return g.runNode(ctx, func(ctx context.Context, srv *tailnet.Server) error {
		var (
			ln  *tailnet.Listener
			err error
		)
		if c.Funnel {
			ln, err = srv.ListenFunnel(c.Network, c.Addr, c.FunnelOnly)
		} else {
			ln, err = srv.Listen(c.Network, c.Addr)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "回显服务已启动: %s %s\n", ln.Network(), ln.Address())

		lim := rate.NewLimiter(rate.Limit(c.RetryRate), 1)
		return serveEcho(ctx, ln, lim)
	})
}

// serveEcho 接受连接并原样回显，直到 ctx 取消
//
// 本地传输故障（*tailnet.AcceptError）按 lim 限速重试，不会结束服务；
// 交接通道被引擎关闭（EOF）后不会恢复，直接返回错误。
func serveEcho(ctx context.Context, ln *tailnet.Listener, lim *rate.Limiter) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			var ae *tailnet.AcceptError
			switch {
			case err == nil:
			case errors.Is(err, tailnet.ErrListenerClosed):
				return nil
			case errors.Is(err, io.EOF):
				return fmt.Errorf("引擎已关闭监听 %s: %w", ln.ID(), err)
			case errors.As(err, &ae):
				log.Warn("接受连接失败", "listener", ln.ID(), "op", ae.Op, "error", err)
				if werr := lim.Wait(ctx); werr != nil {
					return nil
				}
				continue
			default:
				return err
			}

			if ip, err := ln.RemoteAddr(conn); err == nil {
				fmt.Fprintf(stdout, "连接: %s (%s)\n", ip, addrutil.AddrType(ip))
			} else {
				log.Debug("查询对端地址失败", "conn", conn.ID(), "error", err)
			}

			g.Go(func() error {
				echo(conn)
				return nil
			})
		}
	})

	return g.Wait()
}

// echo 回显一个连接，直到对端关闭
func echo(conn *tailnet.Conn) {
	defer conn.Close()

	n, err := io.Copy(conn, conn)
	if err != nil && !errors.Is(err, tailnet.ErrConnClosed) {
		log.Debug("回显结束", "conn", conn.ID(), "bytes", n, "error", err)
		return
	}
	log.Debug("回显结束", "conn", conn.ID(), "bytes", n)
}

// ============================================================================
//                              回显客户端
// ============================================================================

// EchoClientCmd 回显客户端
type EchoClientCmd struct {
	Addr    string `arg:"" help:"服务地址（host:port）。"`
	Message string `arg:"" optional:"" help:"发送的内容（默认随机生成）。"`
	Network string `help:"网络类型。" enum:"tcp,tcp4,tcp6" default:"tcp"`
}

// Run 执行命令
func (c *EchoClientCmd) Run(ctx context.Context, g *Globals) error {
	return g.runNode(ctx, func(ctx context.Context, srv *tailnet.Server) error {
		reply, err := echoOnce(srv, c.Network, c.Addr, c.message())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, reply)
		return err
	})
}

func (c *EchoClientCmd) message() string {
	if c.Message != "" {
		return c.Message
	}
	return "hello " + uuid.NewString()
}

// echoOnce 发送 msg，半关闭后读取全部回显
func echoOnce(srv *tailnet.Server, network, addr, msg string) (string, error) {
	log.Debug("连接回显服务", "addr", addr, "type", addrutil.HostType(addr))
	conn, err := srv.Dial(network, addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := io.Copy(conn, strings.NewReader(msg)); err != nil {
		return "", err
	}
	if err := conn.CloseWrite(); err != nil {
		return "", err
	}

	var b strings.Builder
	if _, err := io.Copy(&b, conn); err != nil {
		return "", err
	}
	return b.String(), nil
}
