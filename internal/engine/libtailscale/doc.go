// Package libtailscale 通过 cgo 调用 libtailscale 实现 engine.Engine
//
// 只在 cgo 且设置了构建标签 libtailscale 时编译。需要预先编译好的
// libtailscale（c-archive 或 c-shared）及其头文件 tailscale.h：
//
//	CGO_CFLAGS="-I/path/to/libtailscale" \
//	CGO_LDFLAGS="-L/path/to/libtailscale -ltailscale" \
//	go build -tags libtailscale ./...
//
// 每个字符串参数在调用前经 C.CString 复制、调用后释放；输出缓冲区直接
// 传递调用方的 []byte，引擎不会越过其长度写入。
package libtailscale
