// Package types 定义 dnspub 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 dnspub 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - node.go - NodeID（Base58 文本形式）与 NodeRecord（节点身份、IPv4/IPv6、端口）
//
// # 使用示例
//
//	rec, err := types.NewNodeRecord("3mJr7AoUXx2Wqd", "203.0.113.7", "", 18888)
//	if err != nil {
//	    return err
//	}
//	if !rec.Publishable() {
//	    return nil // 没有地址的节点不会进入发现树
//	}
package types
