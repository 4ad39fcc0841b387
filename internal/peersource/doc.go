// Package peersource 提供基于配置的节点来源
//
// 内置节点来源：
//   - Static: 配置文件中的静态节点列表
//   - File: JSON 节点列表文件，每次查询时重新读取
//   - Multi: 合并多个来源，按身份去重
//
// 嵌入到节点管理器的场景下，调用方通过 dnspub.WithPeerSource 提供自己的
// pkgif.PeerSource，不使用本包。
package peersource
