package localapi

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/net/proxy"
)

// ProxyUser 回环 SOCKS5 代理的用户名
const ProxyUser = "tsnet"

// ProxyDialer 返回经回环 SOCKS5 代理拨号的 Dialer
//
// 目标地址在节点上解析，可以使用覆盖网络内的主机名。
func ProxyDialer(addr, cred string) (proxy.ContextDialer, error) {
	d, err := proxy.SOCKS5("tcp", addr, &proxy.Auth{User: ProxyUser, Password: cred}, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("localapi: socks5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("localapi: socks5 dialer does not support contexts")
	}
	return cd, nil
}

// ProxyHTTPClient 返回所有请求都经回环代理发出的 http.Client
func ProxyHTTPClient(addr, cred string) (*http.Client, error) {
	d, err := ProxyDialer(addr, cred)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
				return d.DialContext(ctx, network, address)
			},
			DisableKeepAlives: true,
		},
	}, nil
}
