package dnstree

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dnspub/pkg/types"
)

// ============================================================================
//                              节点编解码
// ============================================================================

func TestEncodeNode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  types.NodeRecord
	}{
		{"ipv4", types.NodeRecord{ID: types.NodeID{1, 2, 3}, IPv4: net.IPv4(1, 2, 3, 4).To4(), Port: 30303}},
		{"ipv6", types.NodeRecord{ID: types.NodeID{9}, IPv6: net.ParseIP("2001:db8::1"), Port: 18888}},
		{"dual stack", types.NodeRecord{
			ID:   types.NodeID(bytes.Repeat([]byte{0xEE}, types.MaxNodeIDSize)),
			IPv4: net.IPv4(192, 168, 1, 1).To4(),
			IPv6: net.ParseIP("fe80::1"),
			Port: 65535,
		}},
		{"port one", types.NodeRecord{ID: types.NodeID{7}, IPv4: net.IPv4(127, 0, 0, 1).To4(), Port: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := EncodeNode(tt.rec)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(text, nodePrefix))

			got, err := DecodeNode(text)
			require.NoError(t, err)
			assert.True(t, tt.rec.Equal(got), "got %s want %s", got, tt.rec)

			again, err := EncodeNode(got)
			require.NoError(t, err)
			assert.Equal(t, text, again)
		})
	}
}

func TestEncodeNode_Invalid(t *testing.T) {
	ip := net.IPv4(1, 1, 1, 1).To4()
	tests := []struct {
		name string
		rec  types.NodeRecord
	}{
		{"empty id", types.NodeRecord{IPv4: ip, Port: 1}},
		{"long id", types.NodeRecord{ID: make(types.NodeID, types.MaxNodeIDSize+1), IPv4: ip, Port: 1}},
		{"zero port", types.NodeRecord{ID: types.NodeID{1}, IPv4: ip}},
		{"no address", types.NodeRecord{ID: types.NodeID{1}, Port: 1}},
		{"v4 in v6 slot", types.NodeRecord{ID: types.NodeID{1}, IPv6: net.IPv4(1, 1, 1, 1), Port: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeNode(tt.rec)
			assert.ErrorIs(t, err, ErrEncode)
		})
	}
}

func TestDecodeNode_Malformed(t *testing.T) {
	raw := func(parts ...[]byte) string {
		return nodePrefix + b32format.EncodeToString(bytes.Join(parts, nil))
	}
	port := varint.ToUvarint(30303)
	ip4 := []byte{1, 2, 3, 4}

	tests := []struct {
		name string
		text string
	}{
		{"wrong prefix", "enr:abc"},
		{"bad base32", nodePrefix + "!!!!"},
		{"empty", nodePrefix},
		{"zero id length", raw([]byte{0}, []byte{flagIPv4}, ip4, port)},
		{"id too long", raw(varint.ToUvarint(types.MaxNodeIDSize+1), make([]byte, types.MaxNodeIDSize+1), []byte{flagIPv4}, ip4, port)},
		{"truncated id", raw([]byte{5}, []byte{1, 2})},
		{"no flags", raw([]byte{1}, []byte{9}, []byte{0}, port)},
		{"unknown flag", raw([]byte{1}, []byte{9}, []byte{0x04}, port)},
		{"truncated ipv4", raw([]byte{1}, []byte{9}, []byte{flagIPv4}, []byte{1, 2})},
		{"truncated ipv6", raw([]byte{1}, []byte{9}, []byte{flagIPv6}, make([]byte, 8))},
		{"missing port", raw([]byte{1}, []byte{9}, []byte{flagIPv4}, ip4)},
		{"zero port", raw([]byte{1}, []byte{9}, []byte{flagIPv4}, ip4, []byte{0})},
		{"port overflow", raw([]byte{1}, []byte{9}, []byte{flagIPv4}, ip4, varint.ToUvarint(70000))},
		{"trailing bytes", raw([]byte{1}, []byte{9}, []byte{flagIPv4}, ip4, port, []byte{0xFF})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeNode(tt.text)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

// ============================================================================
//                              私有叶子
// ============================================================================

func TestLeafCipher(t *testing.T) {
	c, err := NewLeafCipher([]byte("shared secret"))
	require.NoError(t, err)

	rec := testNode(3)
	text, err := c.EncodeNode(rec)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, privateNodePrefix))

	t.Run("deterministic", func(t *testing.T) {
		again, err := c.EncodeNode(rec)
		require.NoError(t, err)
		assert.Equal(t, text, again)

		other, err := c.EncodeNode(testNode(4))
		require.NoError(t, err)
		assert.NotEqual(t, text, other)
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := c.DecodeNode(text)
		require.NoError(t, err)
		assert.True(t, rec.Equal(got))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewLeafCipher([]byte("another secret"))
		require.NoError(t, err)
		_, err = other.DecodeNode(text)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("public decoder rejects", func(t *testing.T) {
		_, err := DecodeNode(text)
		assert.ErrorIs(t, err, ErrDecode)
		_, err = ParseEntry(text, nil)
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := c.DecodeNode(privateNodePrefix + b32format.EncodeToString([]byte{1, 2, 3}))
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("empty secret", func(t *testing.T) {
		_, err := NewLeafCipher(nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

// ============================================================================
//                              Merge
// ============================================================================

func TestMerge(t *testing.T) {
	dual := types.NodeRecord{
		ID:   types.NodeID{0xAB},
		IPv4: net.IPv4(10, 0, 0, 1).To4(),
		IPv6: net.ParseIP("2001:db8::1"),
		Port: 30303,
	}
	v4 := testNode(1)

	out := Merge([]types.NodeRecord{
		dual,
		v4,
		v4,
		{ID: types.NodeID{1}, Port: 1},
		{IPv4: net.IPv4(1, 1, 1, 1).To4(), Port: 1},
	})

	require.Len(t, out, 3)
	assert.IsNonDecreasing(t, out)
	assert.Contains(t, out, mustEncode(t, v4))
	assert.Contains(t, out, mustEncode(t, types.NodeRecord{ID: dual.ID, IPv4: dual.IPv4, Port: dual.Port}))
	assert.Contains(t, out, mustEncode(t, types.NodeRecord{ID: dual.ID, IPv6: dual.IPv6, Port: dual.Port}))

	assert.Empty(t, Merge(nil))
}
