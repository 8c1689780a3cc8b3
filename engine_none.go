//go:build !(cgo && libtailscale)

package tailnet

import "github.com/dep2p/go-tailnet/internal/engine"

// defaultEngine 未编译 libtailscale 时没有默认引擎，需通过 WithEngine 指定
func defaultEngine() engine.Engine {
	return nil
}
