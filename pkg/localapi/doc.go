// Package localapi 访问节点本地回环服务
//
// Server.Loopback 启动的回环服务在同一个 127.0.0.1 端口上同时提供两种协议：
//
//   - LocalAPI：HTTP 接口，请求需带 "Sec-Tailscale: localapi" 头，
//     并以 LocalAPI 凭据作为基本认证密码
//   - SOCKS5 代理：用户名 "tsnet"，密码为代理凭据，经覆盖网络转发连接
//
// # 快速开始
//
//	info, err := srv.Loopback()
//	client := localapi.NewClient(info.Addr, info.LocalAPICred)
//	st, err := client.Status(ctx)
//	fmt.Println(st.Self.DNSName)
//
// 经代理访问覆盖网络上的 HTTP 服务：
//
//	hc, err := localapi.ProxyHTTPClient(info.Addr, info.ProxyCred)
//	resp, err := hc.Get("http://peer:8080/")
package localapi
