package publish

import (
	"sort"

	"github.com/dep2p/go-dnspub/internal/dnstree"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// Plan 一次部署的变更计划
//
// 三个阶段严格按顺序执行：Add → Root → Remove。
type Plan struct {
	// Add 新增（或内容不符需要覆盖）的非根记录
	Add []pkgif.RecordChange

	// Root 根记录的新建或更新，nil 表示根未变化
	Root *pkgif.RecordChange

	// Remove 不再被引用的树记录
	Remove []pkgif.RecordChange
}

// Empty 计划是否没有任何写入
func (p Plan) Empty() bool {
	return p.Len() == 0
}

// Len 返回变更总数
func (p Plan) Len() int {
	n := len(p.Add) + len(p.Remove)
	if p.Root != nil {
		n++
	}
	return n
}

// Diff 计算从 current 到 next 的变更计划
//
// 只比较名字与值：值相同的记录不会重写。不属于发现树的名字
// （既不是根也不是条目哈希）永远不会被删除。结果按名字排序。
func Diff(current map[string]pkgif.Record, next map[string]string) Plan {
	var plan Plan

	for _, name := range sortedKeys(next) {
		value := next[name]
		ttl := pkgif.TreeNodeTTL
		if name == pkgif.RootName {
			ttl = pkgif.RootTTL
		}

		change := pkgif.RecordChange{Action: pkgif.ChangeCreate, Name: name, Value: value, TTL: ttl}
		if old, ok := current[name]; ok {
			if old.Value == value {
				continue
			}
			change.Action = pkgif.ChangeUpdate
			change.Old = old
		}

		if name == pkgif.RootName {
			c := change
			plan.Root = &c
		} else {
			plan.Add = append(plan.Add, change)
		}
	}

	for _, name := range sortedKeys(current) {
		if _, keep := next[name]; keep || !dnstree.IsEntryName(name) {
			continue
		}
		old := current[name]
		plan.Remove = append(plan.Remove, pkgif.RecordChange{
			Action: pkgif.ChangeDelete,
			Name:   name,
			Value:  old.Value,
			TTL:    old.TTL,
			Old:    old,
		})
	}
	return plan
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
