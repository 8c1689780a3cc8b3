// Package metrics 提供 tailnet 绑定层的 Prometheus 指标
//
// Collector 记录数据面操作的结果与当前打开的资源数：
//   - 拨号、监听、接受的成功/失败次数
//   - 按操作划分的引擎错误次数
//   - 打开的连接与监听数量
//   - 连接上读写的字节数
//
// # 快速开始
//
//	reg := prometheus.NewRegistry()
//	m, err := metrics.New(reg)
//	if err != nil {
//	    return err
//	}
//
//	m.Dial("tcp", nil)
//	m.ConnOpened()
//	m.ConnBytes(metrics.DirectionIn, 512)
//
// nil *Collector 的所有方法都是空操作，调用方无需判断是否启用。
package metrics
