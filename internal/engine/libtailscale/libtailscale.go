//go:build cgo && libtailscale

package libtailscale

/*
#cgo LDFLAGS: -ltailscale
#include <stdlib.h>
#include "tailscale.h"

// 未在 tailscale.h 中声明，由 libtailscale 的 Go 部分直接导出
extern int TsnetEnableFunnelToLocalhostPlaintextHttp1(int sd, int localhostPort);
*/
import "C"

import (
	"unsafe"

	"github.com/dep2p/go-tailnet/internal/engine"
)

// Engine libtailscale 引擎，无状态，零值可用
type Engine struct{}

var _ engine.Engine = Engine{}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

func (Engine) New() engine.Handle {
	return engine.Handle(C.tailscale_new())
}

func (Engine) Start(h engine.Handle) int {
	return int(C.tailscale_start(C.tailscale(h)))
}

func (Engine) Up(h engine.Handle) int {
	return int(C.tailscale_up(C.tailscale(h)))
}

func (Engine) Close(h engine.Handle) int {
	return int(C.tailscale_close(C.tailscale(h)))
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置
// ════════════════════════════════════════════════════════════════════════════

func (Engine) SetDir(h engine.Handle, dir string) int {
	return withCString(dir, func(s *C.char) C.int {
		return C.tailscale_set_dir(C.tailscale(h), s)
	})
}

func (Engine) SetHostname(h engine.Handle, hostname string) int {
	return withCString(hostname, func(s *C.char) C.int {
		return C.tailscale_set_hostname(C.tailscale(h), s)
	})
}

func (Engine) SetAuthKey(h engine.Handle, authKey string) int {
	return withCString(authKey, func(s *C.char) C.int {
		return C.tailscale_set_authkey(C.tailscale(h), s)
	})
}

func (Engine) SetControlURL(h engine.Handle, controlURL string) int {
	return withCString(controlURL, func(s *C.char) C.int {
		return C.tailscale_set_control_url(C.tailscale(h), s)
	})
}

func (Engine) SetEphemeral(h engine.Handle, ephemeral bool) int {
	return int(C.tailscale_set_ephemeral(C.tailscale(h), cBool(ephemeral)))
}

func (Engine) SetLogFD(h engine.Handle, fd int) int {
	return int(C.tailscale_set_logfd(C.tailscale(h), C.int(fd)))
}

// ════════════════════════════════════════════════════════════════════════════
//                              诊断
// ════════════════════════════════════════════════════════════════════════════

func (Engine) ErrMsg(h engine.Handle, buf []byte) int {
	p, n := cBuf(buf)
	return int(C.tailscale_errmsg(C.tailscale(h), p, n))
}

// ════════════════════════════════════════════════════════════════════════════
//                              数据面
// ════════════════════════════════════════════════════════════════════════════

func (Engine) Dial(h engine.Handle, network, addr string) (int, int) {
	cn, ca := C.CString(network), C.CString(addr)
	defer C.free(unsafe.Pointer(cn))
	defer C.free(unsafe.Pointer(ca))

	var out C.tailscale_conn = -1
	st := C.tailscale_dial(C.tailscale(h), cn, ca, &out)
	return int(st), int(out)
}

func (Engine) Listen(h engine.Handle, network, addr string) (int, int) {
	cn, ca := C.CString(network), C.CString(addr)
	defer C.free(unsafe.Pointer(cn))
	defer C.free(unsafe.Pointer(ca))

	var out C.tailscale_listener = -1
	st := C.tailscale_listen(C.tailscale(h), cn, ca, &out)
	return int(st), int(out)
}

func (Engine) ListenFunnel(h engine.Handle, network, addr string, funnelOnly bool) (int, int) {
	cn, ca := C.CString(network), C.CString(addr)
	defer C.free(unsafe.Pointer(cn))
	defer C.free(unsafe.Pointer(ca))

	var out C.tailscale_listener = -1
	st := C.tailscale_listen_funnel(C.tailscale(h), cn, ca, cBool(funnelOnly), &out)
	return int(st), int(out)
}

func (Engine) GetRemoteAddr(listenerFd, connFd int, buf []byte) int {
	p, n := cBuf(buf)
	return int(C.tailscale_getremoteaddr(C.tailscale_listener(listenerFd), C.tailscale_conn(connFd), p, n))
}

func (Engine) GetIPs(h engine.Handle, buf []byte) int {
	p, n := cBuf(buf)
	return int(C.tailscale_getips(C.tailscale(h), p, n))
}

func (Engine) CertDomains(h engine.Handle, buf []byte) int {
	p, n := cBuf(buf)
	return int(C.tailscale_cert_domains(C.tailscale(h), p, n))
}

// ════════════════════════════════════════════════════════════════════════════
//                              辅助功能
// ════════════════════════════════════════════════════════════════════════════

func (Engine) Loopback(h engine.Handle, addr, proxyCred, localAPICred []byte) int {
	if len(proxyCred) < engine.CredentialSize || len(localAPICred) < engine.CredentialSize {
		panic("libtailscale: credential buffers must hold 33 bytes")
	}
	ap, an := cBuf(addr)
	pp, _ := cBuf(proxyCred)
	lp, _ := cBuf(localAPICred)
	return int(C.tailscale_loopback(C.tailscale(h), ap, an, pp, lp))
}

func (Engine) EnableFunnelToLocalhostPlaintextHTTP1(h engine.Handle, port int) int {
	return int(C.TsnetEnableFunnelToLocalhostPlaintextHttp1(C.int(h), C.int(port)))
}

// ════════════════════════════════════════════════════════════════════════════
//                              内部工具
// ════════════════════════════════════════════════════════════════════════════

func withCString(s string, fn func(*C.char) C.int) int {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	return int(fn(cs))
}

// cBuf 返回指向 buf 首字节的指针与长度，空切片为 (nil, 0)
func cBuf(buf []byte) (*C.char, C.size_t) {
	if len(buf) == 0 {
		return nil, 0
	}
	return (*C.char)(unsafe.Pointer(&buf[0])), C.size_t(len(buf))
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}
