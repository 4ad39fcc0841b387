package dnstree

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dnspub/pkg/types"
)

// testKey 固定私钥，保证测试输出稳定
func testKey(t *testing.T, seed byte) *secp256k1.PrivateKey {
	t.Helper()
	raw := make([]byte, 32)
	raw[31] = seed
	raw[0] = 0x42
	return secp256k1.PrivKeyFromBytes(raw)
}

func testBuilder(t *testing.T, opts ...BuilderOption) *Builder {
	t.Helper()
	b, err := NewBuilder(testKey(t, 1), opts...)
	require.NoError(t, err)
	return b
}

// testNode 生成第 i 个 IPv4 节点
func testNode(i int) types.NodeRecord {
	id := make([]byte, 8)
	binary.BigEndian.PutUint64(id, uint64(i)+1)
	return types.NodeRecord{
		ID:   types.NodeID(id),
		IPv4: net.IPv4(10, byte(i>>16), byte(i>>8), byte(i)).To4(),
		Port: 30303,
	}
}

func testNodes(t *testing.T, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := EncodeNode(testNode(i))
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func mustEncode(t *testing.T, r types.NodeRecord) string {
	t.Helper()
	s, err := EncodeNode(r)
	require.NoError(t, err)
	return s
}
