package main

import (
	"context"
	"fmt"

	tailnet "github.com/dep2p/go-tailnet"
	"github.com/dep2p/go-tailnet/pkg/localapi"
)

// IPsCmd 等待节点可用并打印地址
type IPsCmd struct{}

// Run 执行命令
func (c *IPsCmd) Run(ctx context.Context, g *Globals) error {
	return g.runNode(ctx, func(_ context.Context, srv *tailnet.Server) error {
		if err := srv.Up(); err != nil {
			return err
		}

		addrs, err := srv.LocalAddrs()
		if err != nil {
			return err
		}
		for _, a := range addrs {
			fmt.Fprintln(stdout, a)
		}

		domains, err := srv.CertDomains()
		if err != nil {
			return err
		}
		for _, d := range domains {
			fmt.Fprintln(stdout, d)
		}
		return nil
	})
}

// LoopbackCmd 启动本地回环服务
type LoopbackCmd struct {
	Once bool `help:"打印节点状态后立即退出。"`
}

// Run 执行命令
func (c *LoopbackCmd) Run(ctx context.Context, g *Globals) error {
	return g.runNode(ctx, func(ctx context.Context, srv *tailnet.Server) error {
		info, err := srv.Loopback()
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "回环服务: %s\n", info.Addr)
		fmt.Fprintf(stdout, "SOCKS5 代理: socks5://%s:<proxy-cred>@%s\n", localapi.ProxyUser, info.Addr)

		client := localapi.NewClient(info.Addr, info.LocalAPICred)
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "后端状态: %s\n", st.BackendState)
		if st.Self != nil {
			fmt.Fprintf(stdout, "本节点: %s %v\n", st.Self.DNSName, st.Self.TailscaleIPs)
		}

		if c.Once {
			return nil
		}
		<-ctx.Done()
		return nil
	})
}

// FunnelCmd 经 Funnel 公开本机 HTTP 端口
type FunnelCmd struct {
	Port int  `arg:"" help:"本机明文 HTTP 端口。"`
	Once bool `help:"启用后立即退出。"`
}

// Run 执行命令
func (c *FunnelCmd) Run(ctx context.Context, g *Globals) error {
	return g.runNode(ctx, func(ctx context.Context, srv *tailnet.Server) error {
		if err := srv.EnableFunnel(c.Port); err != nil {
			return err
		}

		domains, err := srv.CertDomains()
		if err != nil {
			return err
		}
		for _, d := range domains {
			fmt.Fprintf(stdout, "https://%s -> http://127.0.0.1:%d\n", d, c.Port)
		}

		if c.Once {
			return nil
		}
		<-ctx.Done()
		return nil
	})
}
