package types

import (
	"net"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNodeID(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	id, err := ParseNodeID(base58.Encode(raw))
	require.NoError(t, err)
	assert.Equal(t, NodeID(raw), id)
	assert.Equal(t, base58.Encode(raw), id.String())

	_, err = ParseNodeID("")
	assert.ErrorIs(t, err, ErrInvalidNodeID)

	_, err = ParseNodeID("0OIl")
	assert.ErrorIs(t, err, ErrInvalidNodeID)

	_, err = ParseNodeID(base58.Encode(make([]byte, MaxNodeIDSize+1)))
	assert.ErrorIs(t, err, ErrInvalidNodeID)
}

func TestNewNodeRecord(t *testing.T) {
	id := base58.Encode([]byte{0xAA, 0xBB})

	rec, err := NewNodeRecord(id, "10.0.0.1", "", 30303)
	require.NoError(t, err)
	assert.Len(t, rec.IPv4, net.IPv4len)
	assert.True(t, rec.HasIPv4())
	assert.False(t, rec.HasIPv6())
	assert.True(t, rec.Publishable())

	rec, err = NewNodeRecord(id, "", "::1", 30304)
	require.NoError(t, err)
	assert.Len(t, rec.IPv6, net.IPv6len)

	_, err = NewNodeRecord(id, "::1", "", 1)
	assert.ErrorIs(t, err, ErrInvalidNodeRecord)

	_, err = NewNodeRecord(id, "", "10.0.0.1", 1)
	assert.ErrorIs(t, err, ErrInvalidNodeRecord)

	_, err = NewNodeRecord(id, "10.0.0.1", "", 0)
	assert.ErrorIs(t, err, ErrInvalidNodeRecord)
}

func TestNodeRecord_Publishable(t *testing.T) {
	rec := NodeRecord{ID: NodeID{1}, Port: 1}
	assert.False(t, rec.Publishable(), "无地址不可发布")

	rec.IPv4 = net.IPv4(1, 2, 3, 4).To4()
	assert.True(t, rec.Publishable())

	rec.ID = nil
	assert.False(t, rec.Publishable(), "空 ID 不可发布")
}

func TestNodeRecord_Equal(t *testing.T) {
	a := NodeRecord{ID: NodeID{1}, IPv4: net.IPv4(1, 2, 3, 4), Port: 7}
	b := NodeRecord{ID: NodeID{1}, IPv4: net.IPv4(1, 2, 3, 4).To4(), Port: 7}
	assert.True(t, a.Equal(b), "4 字节与 16 字节形式等价")

	b.Port = 8
	assert.False(t, a.Equal(b))
}
