// Package store 保存每个域名最近一次发布的序号状态
//
// 发布周期用 State.Next 决定新树的序号：顶层哈希不变时复用原序号，
// 变化时加一。持久化实现基于 BadgerDB，未配置数据目录时退化为内存实现。
//
// 键空间：
//
//	dnspub/seq/<domain> → JSON(State)
package store
