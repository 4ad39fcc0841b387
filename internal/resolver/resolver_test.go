package resolver

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/miekg/dns"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dnspub/internal/dnstree"
	"github.com/dep2p/go-dnspub/internal/provider/txtrec"
	"github.com/dep2p/go-dnspub/pkg/types"
)

// txtServer 按 完整域名 -> 值 应答 TXT 查询
type txtServer struct {
	mu       sync.RWMutex
	records  map[string]string
	queries  atomic.Int32
	truncate map[string]bool
	servfail bool
}

func (s *txtServer) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	s.queries.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := new(dns.Msg)
	m.SetReply(r)
	if s.servfail {
		m.Rcode = dns.RcodeServerFailure
		_ = w.WriteMsg(m)
		return
	}

	q := r.Question[0]
	name := strings.ToLower(q.Name)
	value, ok := s.records[name]
	switch {
	case !ok:
		m.Rcode = dns.RcodeNameError
	case s.truncate[name] && w.LocalAddr().Network() == "udp":
		m.Truncated = true
	default:
		m.Answer = append(m.Answer, &dns.TXT{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 60},
			Txt: txtrec.Split(value),
		})
	}
	_ = w.WriteMsg(m)
}

// startServer 在同一端口上启动 UDP 与 TCP 服务
func startServer(t *testing.T, h dns.Handler) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	ln, err := net.Listen("tcp", pc.LocalAddr().String())
	require.NoError(t, err)

	for _, srv := range []*dns.Server{
		{PacketConn: pc, Handler: h},
		{Listener: ln, Handler: h},
	} {
		started := make(chan struct{})
		srv.NotifyStartedFunc = func() { close(started) }
		go func() { _ = srv.ActivateAndServe() }()
		<-started
		t.Cleanup(func() { _ = srv.Shutdown() })
	}
	return pc.LocalAddr().String()
}

func newResolver(t *testing.T, addr string, cacheSize int) *Resolver {
	t.Helper()
	r, err := New(Config{Servers: []string{addr}, Timeout: 2 * time.Second, CacheSize: cacheSize, CacheTTL: time.Minute})
	require.NoError(t, err)
	return r
}

func TestResolver_LookupTXT(t *testing.T) {
	long := strings.Repeat("x", 300)
	srv := &txtServer{records: map[string]string{
		"a.example.org.":   "hello",
		"big.example.org.": long,
	}}
	r := newResolver(t, startServer(t, srv), 16)
	ctx := context.Background()

	got, err := r.LookupTXT(ctx, "A.example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, got)

	got, err = r.LookupTXT(ctx, "big.example.org.")
	require.NoError(t, err)
	assert.Equal(t, []string{long}, got)

	_, err = r.LookupTXT(ctx, "missing.example.org")
	assert.ErrorIs(t, err, dnstree.ErrNoRecords)
}

func TestResolver_Cache(t *testing.T) {
	srv := &txtServer{records: map[string]string{"a.example.org.": "v1"}}
	r := newResolver(t, startServer(t, srv), 16)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.LookupTXT(ctx, "a.example.org")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), srv.queries.Load())

	srv.mu.Lock()
	srv.records["a.example.org."] = "v2"
	srv.mu.Unlock()
	r.Purge()

	got, err := r.LookupTXT(ctx, "a.example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, got)
}

func TestResolver_TruncatedFallsBackToTCP(t *testing.T) {
	srv := &txtServer{
		records:  map[string]string{"t.example.org.": "over tcp"},
		truncate: map[string]bool{"t.example.org.": true},
	}
	r := newResolver(t, startServer(t, srv), 0)

	got, err := r.LookupTXT(context.Background(), "t.example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{"over tcp"}, got)
	assert.Equal(t, int32(2), srv.queries.Load())
}

func TestResolver_ServerFailover(t *testing.T) {
	bad := startServer(t, &txtServer{servfail: true})
	good := startServer(t, &txtServer{records: map[string]string{"a.example.org.": "ok"}})

	r, err := New(Config{Servers: []string{bad, good}, Timeout: 2 * time.Second})
	require.NoError(t, err)

	got, err := r.LookupTXT(context.Background(), "a.example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, got)
}

func TestResolver_ResolvesPublishedTree(t *testing.T) {
	raw := make([]byte, 32)
	raw[0], raw[31] = 0x42, 7
	key := secp256k1.PrivKeyFromBytes(raw)

	var records []types.NodeRecord
	for i := 1; i <= 20; i++ {
		id := base58.Encode([]byte{0x02, byte(i), byte(i), byte(i)})
		rec, err := types.NewNodeRecord(id, "10.0.0."+strconv.Itoa(i), "", 18888+i)
		require.NoError(t, err)
		records = append(records, rec)
	}

	b, err := dnstree.NewBuilder(key)
	require.NoError(t, err)
	tree, err := b.MakeTree(5, dnstree.Merge(records), nil, false)
	require.NoError(t, err)

	const domain = "nodes.example.org"
	srv := &txtServer{records: make(map[string]string)}
	for name, value := range tree.ToTXT() {
		srv.records[dns.Fqdn(txtrec.FQDN(name, domain))] = value
	}

	r := newResolver(t, startServer(t, srv), 128)
	resolved, err := dnstree.Resolve(context.Background(), r, tree.URL(domain))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), resolved.Root.Seq)
	assert.Len(t, resolved.Nodes, 20)
	assert.Equal(t, tree.Len(), resolved.Entries)
}

func TestNew_CacheDisabled(t *testing.T) {
	r, err := New(Config{Servers: []string{"127.0.0.1:53"}})
	require.NoError(t, err)
	assert.Nil(t, r.cache)
}
