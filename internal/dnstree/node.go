package dnstree

import (
	"fmt"
	"net"
	"strings"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-dnspub/pkg/types"
)

// 地址标志位
const (
	flagIPv4 byte = 1 << iota
	flagIPv6

	knownFlags = flagIPv4 | flagIPv6
)

// EncodeNode 把节点记录编码为 node:<base32> 叶子文本
//
// 二进制布局：uvarint(len(id)) ‖ id ‖ flags ‖ [ipv4] ‖ [ipv6] ‖ uvarint(port)
func EncodeNode(r types.NodeRecord) (string, error) {
	raw, err := marshalNode(r)
	if err != nil {
		return "", err
	}
	return nodePrefix + b32format.EncodeToString(raw), nil
}

// DecodeNode 解析 node:<base32> 叶子文本
func DecodeNode(text string) (types.NodeRecord, error) {
	if !strings.HasPrefix(text, nodePrefix) {
		return types.NodeRecord{}, fmt.Errorf("%w: missing %q prefix", ErrDecode, nodePrefix)
	}
	raw, err := b32format.DecodeString(strings.TrimPrefix(text, nodePrefix))
	if err != nil {
		return types.NodeRecord{}, fmt.Errorf("%w: bad base32: %v", ErrDecode, err)
	}
	return unmarshalNode(raw)
}

func marshalNode(r types.NodeRecord) ([]byte, error) {
	switch {
	case r.ID.IsEmpty():
		return nil, fmt.Errorf("%w: empty node id", ErrEncode)
	case len(r.ID) > types.MaxNodeIDSize:
		return nil, fmt.Errorf("%w: node id longer than %d bytes", ErrEncode, types.MaxNodeIDSize)
	case r.Port == 0:
		return nil, fmt.Errorf("%w: port is zero", ErrEncode)
	case !r.HasIPv4() && !r.HasIPv6():
		return nil, fmt.Errorf("%w: node %s has no address", ErrEncode, r.ID.ShortString())
	}

	buf := make([]byte, 0, varint.UvarintSize(uint64(len(r.ID)))+len(r.ID)+1+net.IPv4len+net.IPv6len+3)
	buf = append(buf, varint.ToUvarint(uint64(len(r.ID)))...)
	buf = append(buf, r.ID...)

	var flags byte
	var ip4, ip6 net.IP
	if r.HasIPv4() {
		if ip4 = r.IPv4.To4(); ip4 == nil {
			return nil, fmt.Errorf("%w: bad IPv4 %v", ErrEncode, r.IPv4)
		}
		flags |= flagIPv4
	}
	if r.HasIPv6() {
		if ip6 = r.IPv6.To16(); ip6 == nil || r.IPv6.To4() != nil {
			return nil, fmt.Errorf("%w: bad IPv6 %v", ErrEncode, r.IPv6)
		}
		flags |= flagIPv6
	}
	buf = append(buf, flags)
	buf = append(buf, ip4...)
	buf = append(buf, ip6...)
	buf = append(buf, varint.ToUvarint(uint64(r.Port))...)
	return buf, nil
}

func unmarshalNode(raw []byte) (types.NodeRecord, error) {
	var rec types.NodeRecord

	idLen, n, err := varint.FromUvarint(raw)
	if err != nil {
		return rec, fmt.Errorf("%w: id length: %v", ErrDecode, err)
	}
	raw = raw[n:]
	if idLen == 0 || idLen > types.MaxNodeIDSize {
		return rec, fmt.Errorf("%w: id length %d out of range", ErrDecode, idLen)
	}
	if uint64(len(raw)) < idLen+1 {
		return rec, fmt.Errorf("%w: truncated id", ErrDecode)
	}
	rec.ID = types.NodeID(append([]byte(nil), raw[:idLen]...))
	raw = raw[idLen:]

	flags := raw[0]
	raw = raw[1:]
	if flags&^knownFlags != 0 || flags == 0 {
		return rec, fmt.Errorf("%w: invalid address flags %#x", ErrDecode, flags)
	}
	if flags&flagIPv4 != 0 {
		if len(raw) < net.IPv4len {
			return rec, fmt.Errorf("%w: truncated IPv4", ErrDecode)
		}
		rec.IPv4 = net.IP(append([]byte(nil), raw[:net.IPv4len]...))
		raw = raw[net.IPv4len:]
	}
	if flags&flagIPv6 != 0 {
		if len(raw) < net.IPv6len {
			return rec, fmt.Errorf("%w: truncated IPv6", ErrDecode)
		}
		rec.IPv6 = net.IP(append([]byte(nil), raw[:net.IPv6len]...))
		raw = raw[net.IPv6len:]
	}

	port, n, err := varint.FromUvarint(raw)
	if err != nil {
		return rec, fmt.Errorf("%w: port: %v", ErrDecode, err)
	}
	if port == 0 || port > 65535 {
		return rec, fmt.Errorf("%w: port %d out of range", ErrDecode, port)
	}
	if len(raw) != n {
		return rec, fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(raw)-n)
	}
	rec.Port = uint16(port)
	return rec, nil
}
