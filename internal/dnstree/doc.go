// Package dnstree 实现 DNS 发现树的编码、构建与解析
//
// # 条目格式
//
// 每个条目对应一条 DNS TXT 记录：
//
//	tree-root-v1:e=<hash> seq=<n> sig=<base64url>   根（域名顶点，TTL 30 分钟）
//	tree-branch:<hash>,<hash>,...                    分支（TTL 4 周）
//	node:<base32>                                    叶子，编码后的节点记录
//	pnode:<base32>                                   私有叶子，使用共享密钥加密
//	tree://<base32 公钥>@<domain>                    链接，指向另一棵树
//
// 条目名字为其文本的 Keccak-256 摘要前 16 字节的 base32 编码（26 字符），
// 记录部署在 <小写哈希>.<domain>。树只是 哈希 -> 条目 的映射，
// 没有父子指针，差异比较是纯集合运算。
//
// # 树形
//
// 叶子按摘要前 8 字节分配到 ceil(n/M) 个桶中，M 为一条分支能容纳的
// 最大子节点数。每个桶形成一个分支引用，上层按桶序号分组，
// 直到顶层（加上链接）能放入一个分支。替换一个节点只影响它所在桶
// 到根的路径。
//
// # 使用示例
//
//	b, _ := dnstree.NewBuilder(key)
//	tree, err := b.MakeTree(seq, dnstree.Merge(records), links, false)
//	records := tree.ToTXT()
package dnstree
