package dnstree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootEntry_SignVerify(t *testing.T) {
	key := testKey(t, 1)
	root := &RootEntry{E: entryHash("tree-branch:"), Seq: 42}
	root.sign(key)
	require.Len(t, root.Sig, compactSigSize)

	assert.True(t, root.Verify(key.PubKey()))
	assert.False(t, root.Verify(testKey(t, 2).PubKey()))

	parsed, err := ParseRoot(root.String())
	require.NoError(t, err)
	assert.Equal(t, root.E, parsed.E)
	assert.Equal(t, uint64(42), parsed.Seq)
	assert.True(t, parsed.Verify(key.PubKey()))

	signer, err := parsed.Signer()
	require.NoError(t, err)
	assert.True(t, signer.IsEqual(key.PubKey()))

	// 修改序号后签名失效
	parsed.Seq++
	assert.False(t, parsed.Verify(key.PubKey()))
}

func TestParseRoot_Malformed(t *testing.T) {
	key := testKey(t, 1)
	good := &RootEntry{E: entryHash("x"), Seq: 1}
	good.sign(key)
	sig := b64format.EncodeToString(good.Sig)

	tests := []string{
		"tree-branch:" + good.E,
		rootPrefix + "e=" + good.E + " seq=1",
		rootPrefix + "e=short seq=1 sig=" + sig,
		rootPrefix + "e=" + good.E + " seq=-1 sig=" + sig,
		rootPrefix + "e=" + good.E + " seq=1 sig=AAAA",
		rootPrefix + "seq=1 e=" + good.E + " sig=" + sig,
		rootPrefix + "e=" + good.E + " seq=1 sig=" + sig + " extra=1",
	}
	for _, text := range tests {
		_, err := ParseRoot(text)
		assert.ErrorIs(t, err, ErrDecode, text)
	}
}

func TestLink(t *testing.T) {
	pub := testKey(t, 7).PubKey()
	l, err := NewLink(pub, "nodes.example.org.")
	require.NoError(t, err)
	assert.Equal(t, "nodes.example.org", l.Domain)

	text := l.String()
	assert.True(t, strings.HasPrefix(text, linkPrefix))
	assert.True(t, strings.HasSuffix(text, "@nodes.example.org"))

	parsed, err := ParseLink(text)
	require.NoError(t, err)
	assert.True(t, parsed.PubKey.IsEqual(pub))
	assert.Equal(t, text, parsed.String())

	for _, bad := range []string{
		"enrtree://AAAA@example.org",
		linkPrefix + "nodomain",
		linkPrefix + "AAAA@example.org",
		linkPrefix + "!!!@example.org",
		strings.TrimSuffix(text, "nodes.example.org"),
	} {
		_, err := ParseLink(bad)
		assert.ErrorIs(t, err, ErrInvalidURL, bad)
	}

	_, err = NewLink(nil, "example.org")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestParseEntry(t *testing.T) {
	leafText := mustEncode(t, testNode(1))
	h := entryHash(leafText)

	e, err := ParseEntry(leafText, nil)
	require.NoError(t, err)
	leaf, ok := e.(*LeafEntry)
	require.True(t, ok)
	assert.True(t, testNode(1).Equal(leaf.Node))
	assert.Equal(t, leafText, leaf.String())

	e, err = ParseEntry(branchPrefix+h+","+strings.ToLower(h), nil)
	require.NoError(t, err)
	assert.Len(t, e.(*BranchEntry).Children, 2)

	link, err := NewLink(testKey(t, 3).PubKey(), "a.example.org")
	require.NoError(t, err)
	e, err = ParseEntry(link.String(), nil)
	require.NoError(t, err)
	assert.IsType(t, &LinkEntry{}, e)

	for _, bad := range []string{
		"",
		"v=spf1 -all",
		branchPrefix,
		branchPrefix + h + ",",
		branchPrefix + "tooshort",
		linkPrefix + "bad",
	} {
		_, err := ParseEntry(bad, nil)
		assert.ErrorIs(t, err, ErrDecode, bad)
	}
}

func TestIsHash(t *testing.T) {
	h := entryHash("anything")
	assert.Len(t, h, HashLen)
	assert.True(t, IsHash(h))
	assert.True(t, IsHash(strings.ToLower(h)))
	assert.False(t, IsHash(h[:HashLen-1]))
	assert.False(t, IsHash(strings.Repeat("1", HashLen)))

	assert.True(t, IsEntryName(rootName))
	assert.True(t, IsEntryName(strings.ToLower(h)))
	assert.False(t, IsEntryName("_acme-challenge"))
	assert.False(t, IsEntryName("www"))
}
