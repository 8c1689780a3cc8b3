//go:build cgo && libtailscale

package tailnet

import (
	"github.com/dep2p/go-tailnet/internal/engine"
	"github.com/dep2p/go-tailnet/internal/engine/libtailscale"
)

func defaultEngine() engine.Engine {
	return libtailscale.Engine{}
}
