// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供指标与 JSON 格式的诊断信息。
// 默认绑定到 127.0.0.1，不暴露到网络。
//
// # 端点
//
//	GET /metrics               - Prometheus 指标
//	GET /debug/introspect      - 完整诊断报告 (JSON)
//	GET /debug/introspect/node - 节点信息
//	GET /debug/pprof/*         - Go pprof 端点
//	GET /health                - 健康检查
//
// # 使用示例
//
//	server := introspect.New(introspect.Config{
//	    Addr:     "127.0.0.1:9090",
//	    Node:     srv,
//	    Gatherer: registry,
//	})
//	server.Start(ctx)
//	defer server.Stop()
package introspect
