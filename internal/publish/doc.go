// Package publish 实现发现树到 DNS 的差异同步
//
// Publisher 读取域名下的线上 TXT 记录，与新树比较后按三个阶段写入：
//
//	Add    → 新条目（尚未被根引用）
//	Root   → 根记录（切换到新树）
//	Remove → 旧树独有的条目
//
// 这样在任何时刻线上根都指向一棵完整的树。值未变化的记录不会重写，
// 对同一棵树重复部署不产生任何写入。不属于发现树的记录（例如
// _acme-challenge）不会被删除。
//
// 厂商 CRUD 由 pkgif.RecordBackend 提供，见 internal/provider。
package publish
