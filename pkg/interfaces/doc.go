// Package interfaces 定义 dnspub 的公共接口
//
// 采用扁平命名（无层级前缀），核心流程只依赖本包中的接口：
//
// # 发布
//
//   - dns.go         - Publisher（部署 / 删除 / 收集记录）、RecordBackend（厂商 CRUD）、
//     RecordTree、记录与变更类型，以及 RootTTL / TreeNodeTTL / RootName
//
// # 来源与查询
//
//   - peersource.go  - PeerSource（节点管理器提供的可连接节点）、TXTLookup（TXT 查询）
//
// # 实现位置
//
//	┌──────────────────┬──────────────────────────────────────────────┐
//	│ 接口             │ 实现                                          │
//	├──────────────────┼──────────────────────────────────────────────┤
//	│ Publisher        │ internal/publish                              │
//	│ RecordBackend    │ internal/provider/{aliyun,route53,rfc2136,    │
//	│                  │ memory}                                       │
//	│ RecordTree       │ internal/dnstree.Tree                         │
//	│ PeerSource       │ internal/peersource，或由嵌入方提供           │
//	│ TXTLookup        │ internal/resolver、memory 后端                │
//	└──────────────────┴──────────────────────────────────────────────┘
package interfaces
