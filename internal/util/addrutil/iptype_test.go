package addrutil

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddrType(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"100.64.0.1", "tailnet"},
		{"100.127.255.254", "tailnet"},
		{"fd7a:115c:a1e0::1", "tailnet"},
		{"::ffff:100.64.0.7", "tailnet"},
		{"127.0.0.1", "loopback"},
		{"::1", "loopback"},
		{"10.1.2.3", "private"},
		{"192.168.1.1", "private"},
		{"fe80::1", "private"},
		{"fd00::1", "private"},
		{"8.8.8.8", "public"},
		{"100.128.0.1", "public"},
		{"2001:4860::8888", "public"},
		{"0.0.0.0", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, AddrType(netip.MustParseAddr(tt.addr)))
		})
	}

	assert.Equal(t, "unknown", AddrType(netip.Addr{}))

	t.Log("✅ 地址分类测试通过")
}

func TestHostType(t *testing.T) {
	assert.Equal(t, "tailnet", HostType("100.64.0.1:80"))
	assert.Equal(t, "tailnet", HostType("[fd7a:115c:a1e0::2]:443"))
	assert.Equal(t, "loopback", HostType("127.0.0.1"))
	assert.Equal(t, "dns", HostType("web.tailnet-test.ts.net:443"))
	assert.Equal(t, "dns", HostType("web"))
	assert.Equal(t, "unknown", HostType(":80"))
	assert.Equal(t, "unknown", HostType(""))

	t.Log("✅ 主机分类测试通过")
}
