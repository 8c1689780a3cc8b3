package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"go.uber.org/zap"

	tailnet "github.com/dep2p/go-tailnet"
	"github.com/dep2p/go-tailnet/internal/util/logger"
)

var log = logger.Logger("tailnet/cmd")

// stdout 命令输出（测试中替换）
var stdout io.Writer = os.Stdout

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数 / TAILNET_* 环境变量：运行时覆盖
//   YAML 配置文件：持久化配置
//
// 认证密钥不接受命令行参数，避免出现在进程列表中。
//
// ═══════════════════════════════════════════════════════════════════════════

// CLI 根命令
type CLI struct {
	Globals

	EchoServer EchoServerCmd `cmd:"" help:"在覆盖网络上运行回显服务。"`
	EchoClient EchoClientCmd `cmd:"" help:"连接回显服务并打印回显内容。"`
	IPs        IPsCmd        `cmd:"" name:"ips" help:"等待节点可用并打印覆盖网络地址。"`
	Loopback   LoopbackCmd   `cmd:"" help:"启动本地回环服务（SOCKS5 + LocalAPI）。"`
	Funnel     FunnelCmd     `cmd:"" help:"经 Funnel 把本机 HTTP 端口公开到公网。"`
	Version    VersionCmd    `cmd:"" help:"显示版本信息。"`
}

// Globals 所有子命令共享的参数
type Globals struct {
	Config      string `short:"c" help:"YAML 配置文件路径。" type:"path" placeholder:"PATH"`
	StateDir    string `help:"状态目录（默认: $XDG_STATE_HOME/tailnet/<hostname>）。" type:"path" env:"TAILNET_STATE_DIR" placeholder:"DIR"`
	Hostname    string `help:"节点主机名。" env:"TAILNET_HOSTNAME"`
	ControlURL  string `help:"控制面地址。" env:"TAILNET_CONTROL_URL" placeholder:"URL"`
	Ephemeral   bool   `help:"注册为临时节点，断开后自动注销。" env:"TAILNET_EPHEMERAL"`
	EngineLog   string `help:"引擎日志去向（${enum}）。" enum:"default,discard,engine" default:"default"`
	Debug       bool   `short:"d" help:"输出调试日志。"`
	MetricsAddr string `help:"自省与指标服务地址，为空时不启动。" placeholder:"HOST:PORT"`
}

// configureLogging 按参数调整日志级别
func (g *Globals) configureLogging() {
	if g.Debug {
		logger.SetGlobalLevel(slog.LevelDebug)
	}
}

// zapLogger Fx 事件日志，仅在调试时输出
func (g *Globals) zapLogger() *zap.Logger {
	if !g.Debug {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// nodeConfig 合并配置文件与命令行参数
//
// 优先级（从高到低）：
//  1. 命令行参数 / TAILNET_* 环境变量
//  2. 配置文件
//  3. 默认值
func (g *Globals) nodeConfig(getenv func(string) string) (tailnet.Config, error) {
	fc := &tailnet.FileConfig{}
	if g.Config != "" {
		data, err := os.ReadFile(g.Config) //nolint:gosec // G304: 用户指定的配置文件路径是预期行为
		if err != nil {
			return tailnet.Config{}, fmt.Errorf("读取配置文件: %w", err)
		}
		if fc, err = tailnet.ParseFileConfig(data); err != nil {
			return tailnet.Config{}, err
		}
	}

	if g.StateDir != "" {
		fc.StateDir = g.StateDir
	}
	if g.Hostname != "" {
		fc.Hostname = g.Hostname
	}
	if g.ControlURL != "" {
		fc.ControlURL = g.ControlURL
	}
	if g.Ephemeral {
		fc.Ephemeral = true
	}
	if g.EngineLog != "" && g.EngineLog != "default" {
		fc.Log = g.EngineLog
	}
	if fc.StateDir == "" {
		fc.StateDir = defaultStateDir(fc.Hostname)
	}

	return fc.Config(getenv)
}

// defaultStateDir 默认状态目录
//
//	Linux:   $XDG_STATE_HOME/tailnet/<hostname> 或 ~/.local/state/tailnet/<hostname>
//	macOS:   ~/Library/Application Support/tailnet/<hostname>
func defaultStateDir(hostname string) string {
	if hostname == "" {
		hostname = "default"
	}
	return filepath.Join(xdg.StateHome, "tailnet", hostname)
}

// VersionCmd 显示版本信息
type VersionCmd struct{}

// Run 执行命令
func (VersionCmd) Run() error {
	_, err := fmt.Fprintln(stdout, tailnet.VersionInfo())
	return err
}
