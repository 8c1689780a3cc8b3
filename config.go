package tailnet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ════════════════════════════════════════════════════════════════════════════
//                              节点配置
// ════════════════════════════════════════════════════════════════════════════

// Config 节点配置
//
// 所有字段都是可选的，零值表示使用引擎默认值（不调用对应的设置函数）。
// 配置在 New 中按固定顺序一次性应用：
// Dir、Hostname、AuthKey、ControlURL、Ephemeral、LogSink。
type Config struct {
	// Dir 状态目录，相对路径在应用时转为绝对路径
	Dir string

	// Hostname 节点在覆盖网络中的主机名
	Hostname string

	// AuthKey 认证密钥，不会出现在日志中
	AuthKey string

	// ControlURL 控制面地址（http 或 https）
	ControlURL string

	// Ephemeral 临时节点，断开后自动注销
	//
	// 只有为 true 时才会调用引擎设置函数。
	Ephemeral bool

	// LogSink 引擎日志输出
	//
	//   - nil: 引擎默认行为
	//   - DiscardLogs: 丢弃全部日志
	//   - *os.File: 直接交给引擎写入
	//   - 其他 io.Writer: 经管道转发，直到 Server 关闭
	LogSink io.Writer
}

// DiscardLogs 丢弃引擎日志的 LogSink
var DiscardLogs io.Writer = discardLogs{}

type discardLogs struct{}

func (discardLogs) Write(p []byte) (int, error) { return len(p), nil }

// Validate 一次性检查全部字段，返回所有违规项
//
// 每个违规项是一个 *ConfigError，多个违规项由 multierr 合并，
// 可用 multierr.Errors 拆分。返回的错误总是匹配 ErrInvalidConfig。
func (c Config) Validate() error {
	var err error

	for _, f := range []struct{ name, value string }{
		{"dir", c.Dir},
		{"hostname", c.Hostname},
		{"authkey", c.AuthKey},
		{"control_url", c.ControlURL},
	} {
		if strings.IndexByte(f.value, 0) >= 0 {
			err = multierr.Append(err, &ConfigError{
				Field: f.name,
				Err:   fmt.Errorf("%w: contains NUL byte", ErrNotRepresentable),
			})
		}
	}

	if c.Dir != "" && !utf8.ValidString(c.Dir) {
		err = multierr.Append(err, &ConfigError{
			Field: "dir",
			Err:   fmt.Errorf("%w: not valid UTF-8", ErrNotRepresentable),
		})
	}

	if c.ControlURL != "" && strings.IndexByte(c.ControlURL, 0) < 0 {
		if verr := validateControlURL(c.ControlURL); verr != nil {
			err = multierr.Append(err, &ConfigError{Field: "control_url", Err: verr})
		}
	}

	return err
}

func validateControlURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidControlURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not http or https", ErrInvalidControlURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidControlURL)
	}
	return nil
}

// String 返回可安全记录的配置摘要（不含认证密钥）
func (c Config) String() string {
	var b strings.Builder
	b.WriteString("{")
	fmt.Fprintf(&b, "dir=%q hostname=%q", c.Dir, c.Hostname)
	if c.AuthKey != "" {
		b.WriteString(" authkey=<redacted>")
	}
	if c.ControlURL != "" {
		fmt.Fprintf(&b, " control_url=%q", c.ControlURL)
	}
	if c.Ephemeral {
		b.WriteString(" ephemeral")
	}
	if c.LogSink != nil {
		fmt.Fprintf(&b, " logsink=%s", logSinkKind(c.LogSink))
	}
	b.WriteString("}")
	return b.String()
}

// ════════════════════════════════════════════════════════════════════════════
//                              文件配置
// ════════════════════════════════════════════════════════════════════════════

// DefaultAuthKeyEnv 默认的认证密钥环境变量
const DefaultAuthKeyEnv = "TS_AUTHKEY"

// 文件配置中 log 字段的取值
const (
	FileLogDefault = ""
	FileLogDiscard = "discard"
	FileLogEngine  = "engine"
)

// FileConfig 文件配置（YAML，JSON 作为 YAML 子集同样可用）
//
// 认证密钥不写入文件，AuthKeyEnv 指定读取密钥的环境变量。
// 文件的读取由应用层负责，库只负责解析：
//
//	data, _ := os.ReadFile("tailnet.yaml")
//	fc, _ := tailnet.ParseFileConfig(data)
//	cfg, _ := fc.Config(os.Getenv)
//	srv, _ := tailnet.New(cfg)
type FileConfig struct {
	// StateDir 状态目录
	StateDir string `yaml:"state_dir,omitempty"`

	// Hostname 主机名
	Hostname string `yaml:"hostname,omitempty"`

	// ControlURL 控制面地址
	ControlURL string `yaml:"control_url,omitempty"`

	// Ephemeral 临时节点
	Ephemeral bool `yaml:"ephemeral,omitempty"`

	// AuthKeyEnv 认证密钥所在的环境变量，默认 TS_AUTHKEY
	AuthKeyEnv string `yaml:"auth_key_env,omitempty"`

	// Log 引擎日志：""（默认）、"discard" 或 "engine"（转发到 tailnet/engine 子系统）
	Log string `yaml:"log,omitempty"`
}

// ParseFileConfig 解析文件配置，拒绝未知字段
//
// 空输入得到零值配置。
func ParseFileConfig(data []byte) (*FileConfig, error) {
	fc := &FileConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return fc, nil
}

// Config 转换为节点配置
//
// getenv 用于读取认证密钥，通常为 os.Getenv；为 nil 时使用 os.Getenv。
// 返回的配置已经过 Validate。
func (fc *FileConfig) Config(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := fc.AuthKeyEnv
	if env == "" {
		env = DefaultAuthKeyEnv
	}

	cfg := Config{
		Dir:        fc.StateDir,
		Hostname:   fc.Hostname,
		AuthKey:    getenv(env),
		ControlURL: fc.ControlURL,
		Ephemeral:  fc.Ephemeral,
	}

	var err error
	switch fc.Log {
	case FileLogDefault:
	case FileLogDiscard:
		cfg.LogSink = DiscardLogs
	case FileLogEngine:
		cfg.LogSink = LogTo(engineLogger)
	default:
		err = &ConfigError{Field: "log", Err: fmt.Errorf("%w: unknown log mode %q", ErrInvalidArgument, fc.Log)}
	}

	if verr := cfg.Validate(); verr != nil {
		err = multierr.Append(err, verr)
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
