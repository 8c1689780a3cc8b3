// Package main 提供 tailnet 命令行入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	tailnet "github.com/dep2p/go-tailnet"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("tailnet"),
		kong.Description("在覆盖网络上运行的示例节点。\n\n认证密钥从 TS_AUTHKEY（或配置文件 auth_key_env 指定的变量）读取。"),
		kong.UsageOnError(),
		kong.Vars{"version": tailnet.VersionInfo()},
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&cli.Globals),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		parser.FatalIfErrorf(err)
		return err
	}

	cli.Globals.configureLogging()
	return kctx.Run()
}
