// Package tailnet 将外部编译的覆盖网络引擎呈现为普通的套接字端点
//
// 引擎（libtailscale）只暴露一组固定的 C 调用：创建实例、配置、启动、
// 拨号、监听、查询地址。本包把这组调用包装成 Go 的资源类型，每个资源
// 有唯一的所有者，并且恰好释放一次。
//
// # 核心概念
//
//   - Server: 一个引擎实例，即覆盖网络上的一个节点
//   - Listener: 交接通道的调用方一端，引擎通过它推送入站连接
//   - Conn: 一条已建立的连接，底层是一个普通的流描述符
//
// # 快速开始
//
//	import "github.com/dep2p/go-tailnet"
//
//	// 1. 创建节点（配置在 New 中一次性应用）
//	srv, err := tailnet.New(tailnet.Config{
//	    Hostname:  "echo",
//	    AuthKey:   os.Getenv("TS_AUTHKEY"),
//	    Ephemeral: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//
//	// 2. 监听（首次使用隐式启动引擎）
//	ln, err := srv.Listen("tcp", ":1999")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ln.Close()
//
//	// 3. 每个连接一个 goroutine
//	for {
//	    conn, err := ln.Accept()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    go func() {
//	        defer conn.Close()
//	        io.Copy(conn, conn)
//	    }()
//	}
//
// # 生命周期
//
//	NotStarted ──Start/Up/Dial/Listen──▶ Starting ──▶ Started
//	     │                                               │
//	     └──────────────────── Close ───────────────────▶ Closed
//
// 配置只能在启动之前设置，New 在返回前已经应用完全部配置，因此不存在
// "启动后再配置"的路径。Start 可以重复调用，每次调用都会到达引擎。
//
// # 并发
//
// 所有操作都在系统调用层面阻塞，本包不设超时。同一个 Server 上的
// Dial、Listen、地址查询可以并发调用；Close 不能与进行中的
// Dial、Listen、Accept 并发，调用方需要在外部同步。唯一的例外是
// Close 可以取消进行中的 Up。
//
// # 错误
//
// 错误分为五类，均可用 errors.Is / errors.As 判断：
//
//   - *ConfigError: 配置值非法或被引擎拒绝（ErrInvalidConfig）
//   - *EngineError: 引擎调用返回非零状态，携带引擎自己的错误描述
//   - *AcceptError: 接受连接时辅助数据缺失或畸形（ErrRecvmsg、ErrControlMessage）
//   - *IOError: 已建立连接上的读写失败
//   - 使用错误: 在已关闭的资源上操作（ErrServerClosed、ErrListenerClosed、ErrConnClosed）
//
// # 文件组织
//
//   - tailnet.go: 版本信息
//   - errors.go: 错误定义
//   - config.go: 节点配置与文件配置
//   - options.go: 构造选项
//   - server*.go: Server 的生命周期、数据面与辅助功能
//   - errmsg.go: 引擎错误描述的获取
//   - listener.go, conn.go: 监听与连接
//   - logsink.go: 引擎日志输出
//   - fx.go: Fx 模块
package tailnet
