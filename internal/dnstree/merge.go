package dnstree

import (
	"sort"

	"github.com/dep2p/go-dnspub/pkg/types"
)

// Merge 把节点记录投影为按地址族拆分的 node: 文本
//
// 每个节点产生一到两条描述（IPv4 一条、IPv6 一条），没有可用地址
// 或身份无效的节点被跳过。输出已排序并去重。MakeTree 会把同一身份
// 的变体重新合并为一个叶子。
func Merge(records []types.NodeRecord) []string {
	seen := make(map[string]bool, len(records)*2)
	out := make([]string, 0, len(records)*2)

	add := func(r types.NodeRecord) {
		s, err := EncodeNode(r)
		if err != nil {
			logger.Debug("跳过无法编码的节点", "node", r.String(), "error", err)
			return
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, r := range records {
		if !r.Publishable() {
			continue
		}
		if r.HasIPv4() {
			add(types.NodeRecord{ID: r.ID, IPv4: r.IPv4, Port: r.Port})
		}
		if r.HasIPv6() {
			add(types.NodeRecord{ID: r.ID, IPv6: r.IPv6, Port: r.Port})
		}
	}
	sort.Strings(out)
	return out
}
