// Package dnspub 把节点管理器中的可连接节点发布为签名的 DNS 发现树
//
// 发现树是一组 TXT 记录：根记录签名并指向顶层分支，分支按哈希引用
// 子条目，叶子保存节点身份与地址，链接指向其他树。客户端只需要
// tree://<公钥>@<域名> 就能遍历并校验整棵树。
//
// # 快速开始
//
//	import "github.com/dep2p/go-dnspub"
//
//	cfg, err := config.LoadFile("dnspub.json")
//	if err != nil {
//	    return err
//	}
//	node, err := dnspub.Start(ctx, dnspub.WithConfig(cfg))
//	if errors.Is(err, dnspub.ErrPublishDisabled) {
//	    return nil // 未启用发布
//	}
//	if err != nil {
//	    return err
//	}
//	defer node.Stop(context.Background())
//
// 嵌入到节点管理器时，用 WithPeerSource 提供当前可连接的节点：
//
//	node, err := dnspub.Start(ctx,
//	    dnspub.WithConfig(cfg),
//	    dnspub.WithPeerSource(pkgif.PeerSourceFunc(manager.Connectable)),
//	)
//
// # 发布流程
//
//	┌──────────────┐   ┌──────────────┐   ┌──────────────┐   ┌──────────────┐
//	│  PeerSource  │ → │ dnstree 构建 │ → │ publish 差异 │ → │ 厂商 Backend │
//	└──────────────┘   └──────────────┘   └──────────────┘   └──────────────┘
//	        ↑                                                          │
//	        └──────────── scheduler 固定延迟（上次结束后 delay）───────┘
//
// 每个周期：
//   - 查询节点并合并为规范的节点描述
//   - 序号存储决定序号：树不变沿用原序号，变化则加一
//   - 按 Add → Root → Remove 的顺序写入，值不变的记录不重写
//
// # 文件组织
//
//   - dnspub.go: 入口函数 New / Start 与版本信息
//   - node.go: Node 门面
//   - options.go: 用户选项
//   - errors.go: 公共错误
package dnspub
