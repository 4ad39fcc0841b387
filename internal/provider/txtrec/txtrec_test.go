package txtrec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

func TestFQDNRelative(t *testing.T) {
	assert.Equal(t, "nodes.example.org", FQDN(pkgif.RootName, "Nodes.Example.org."))
	assert.Equal(t, "abc.nodes.example.org", FQDN("abc", "nodes.example.org"))

	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"nodes.example.org.", pkgif.RootName, true},
		{"ABC.nodes.example.org", "abc", true},
		{"a.b.nodes.example.org", "", false},
		{"other.org", "", false},
		{".nodes.example.org", "", false},
	}
	for _, tt := range tests {
		got, ok := Relative(tt.name, "nodes.example.org")
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"short"}, Split("short"))
	assert.Equal(t, []string{""}, Split(""))

	long := strings.Repeat("a", 255) + strings.Repeat("b", 255) + "c"
	parts := Split(long)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 255)
	assert.Len(t, parts[1], 255)
	assert.Equal(t, "c", parts[2])
	assert.Equal(t, long, strings.Join(parts, ""))

	assert.Len(t, Split(strings.Repeat("x", 510)), 2)
}

func TestQuoteUnquote(t *testing.T) {
	values := []string{
		"tree-root-v1:e=AAAA seq=1 sig=xyz",
		`with "quotes" and \backslash`,
		strings.Repeat("tree-branch:ABCDEFGHIJKLMNOPQRSTUVWXYZ,", 14),
	}
	for _, v := range values {
		q := Quote(v)
		assert.True(t, strings.HasPrefix(q, `"`))
		got, err := Unquote(q)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	assert.Equal(t, `"a" "b"`, Quote("a")+` "b"`)
	got, err := Unquote(`"a"  "b"`)
	require.NoError(t, err)
	assert.Equal(t, "ab", got)

	got, err = Unquote("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestUnquote_Malformed(t *testing.T) {
	for _, s := range []string{`"open`, `"a" b`, `"trailing\`} {
		_, err := Unquote(s)
		assert.ErrorIs(t, err, ErrBadQuoting, s)
	}
}
