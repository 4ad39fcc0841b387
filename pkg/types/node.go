package types

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/mr-tron/base58"
)

// ============================================================================
//                              NodeID - 节点标识
// ============================================================================

// MaxNodeIDSize NodeID 最大字节数（未压缩 secp256k1 公钥去掉前缀为 64 字节）
const MaxNodeIDSize = 64

// ErrInvalidNodeID 无效的节点ID错误
var ErrInvalidNodeID = errors.New("invalid node ID: must be Base58")

// ErrInvalidNodeRecord 无效的节点记录
var ErrInvalidNodeRecord = errors.New("invalid node record")

// NodeID 节点唯一标识符（公钥原始字节）
//
// 外部表示格式为 Base58，与配置文件和日志保持一致。
type NodeID []byte

// String 返回 NodeID 的 Base58 字符串表示
func (id NodeID) String() string {
	if len(id) == 0 {
		return ""
	}
	return base58.Encode(id)
}

// ShortString 返回 Base58 前 8 个字符，用于日志
func (id NodeID) ShortString() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Key 返回可用作 map 键的字符串
func (id NodeID) Key() string {
	return string(id)
}

// IsEmpty 检查 NodeID 是否为空
func (id NodeID) IsEmpty() bool {
	return len(id) == 0
}

// Equal 比较两个 NodeID 是否相等
func (id NodeID) Equal(other NodeID) bool {
	return bytes.Equal(id, other)
}

// ParseNodeID 从 Base58 字符串解析 NodeID
func ParseNodeID(s string) (NodeID, error) {
	if s == "" {
		return nil, ErrInvalidNodeID
	}
	b, err := base58.Decode(s)
	if err != nil || len(b) == 0 || len(b) > MaxNodeIDSize {
		return nil, ErrInvalidNodeID
	}
	return NodeID(b), nil
}

// ============================================================================
//                              NodeRecord - 节点地址记录
// ============================================================================

// NodeRecord 一个可连接节点的身份与地址
//
// IPv4 保存为 4 字节形式，IPv6 保存为 16 字节形式。
// 至少包含一个地址族的记录才可以被发布。
type NodeRecord struct {
	ID   NodeID
	IPv4 net.IP
	IPv6 net.IP
	Port uint16
}

// NewNodeRecord 从文本形式构造 NodeRecord
//
// id 为 Base58 编码；ip4/ip6 可以为空字符串。
func NewNodeRecord(id, ip4, ip6 string, port int) (NodeRecord, error) {
	nodeID, err := ParseNodeID(id)
	if err != nil {
		return NodeRecord{}, err
	}
	if port <= 0 || port > 65535 {
		return NodeRecord{}, fmt.Errorf("%w: port %d out of range", ErrInvalidNodeRecord, port)
	}

	rec := NodeRecord{ID: nodeID, Port: uint16(port)}
	if ip4 != "" {
		ip := net.ParseIP(ip4).To4()
		if ip == nil {
			return NodeRecord{}, fmt.Errorf("%w: bad IPv4 %q", ErrInvalidNodeRecord, ip4)
		}
		rec.IPv4 = ip
	}
	if ip6 != "" {
		ip := net.ParseIP(ip6)
		if ip == nil || ip.To4() != nil {
			return NodeRecord{}, fmt.Errorf("%w: bad IPv6 %q", ErrInvalidNodeRecord, ip6)
		}
		rec.IPv6 = ip.To16()
	}
	return rec, nil
}

// HasIPv4 是否带有 IPv4 地址
func (r NodeRecord) HasIPv4() bool { return len(r.IPv4) > 0 }

// HasIPv6 是否带有 IPv6 地址
func (r NodeRecord) HasIPv6() bool { return len(r.IPv6) > 0 }

// Publishable 记录是否满足发布条件
func (r NodeRecord) Publishable() bool {
	return !r.ID.IsEmpty() && len(r.ID) <= MaxNodeIDSize && r.Port != 0 && (r.HasIPv4() || r.HasIPv6())
}

// Equal 比较两条记录（地址按 IP 语义比较）
func (r NodeRecord) Equal(other NodeRecord) bool {
	return r.ID.Equal(other.ID) &&
		r.Port == other.Port &&
		ipEqual(r.IPv4, other.IPv4) &&
		ipEqual(r.IPv6, other.IPv6)
}

// String 返回记录的可读形式
func (r NodeRecord) String() string {
	host := "-"
	switch {
	case r.HasIPv4() && r.HasIPv6():
		host = r.IPv4.String() + "|" + r.IPv6.String()
	case r.HasIPv4():
		host = r.IPv4.String()
	case r.HasIPv6():
		host = r.IPv6.String()
	}
	return r.ID.ShortString() + "@" + net.JoinHostPort(host, strconv.Itoa(int(r.Port)))
}

func ipEqual(a, b net.IP) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	return a.Equal(b)
}
