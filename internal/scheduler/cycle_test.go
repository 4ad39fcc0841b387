package scheduler

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dnspub/internal/dnstree"
	"github.com/dep2p/go-dnspub/internal/metrics"
	"github.com/dep2p/go-dnspub/internal/provider/memory"
	"github.com/dep2p/go-dnspub/internal/publish"
	"github.com/dep2p/go-dnspub/internal/store"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/types"
)

const testDomain = "nodes.example.org"

// recordingReporter 记录周期结果
type recordingReporter struct {
	mu      sync.Mutex
	results []string
	seq     uint64
}

func (r *recordingReporter) CycleFinished(result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingReporter) RecordChanges(string, string, int) {}

func (r *recordingReporter) TreePublished(_ string, seq uint64, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = seq
}

func (r *recordingReporter) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.results) == 0 {
		return ""
	}
	return r.results[len(r.results)-1]
}

// peerSet 可变的节点来源
type peerSet struct {
	mu    sync.Mutex
	nodes []types.NodeRecord
	err   error
}

func (p *peerSet) set(nodes ...types.NodeRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = nodes
}

func (p *peerSet) ConnectableNodes(context.Context) ([]types.NodeRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nodes, p.err
}

func testRecord(t *testing.T, i int) types.NodeRecord {
	t.Helper()
	id := base58.Encode([]byte{0x03, byte(i), byte(i >> 8), 0x7f})
	rec, err := types.NewNodeRecord(id, "10.1.0."+strconv.Itoa(i), "", 18888)
	require.NoError(t, err)
	return rec
}

func testBuilder(t *testing.T) *dnstree.Builder {
	t.Helper()
	raw := make([]byte, 32)
	raw[0], raw[31] = 0x42, 9
	b, err := dnstree.NewBuilder(secp256k1.PrivKeyFromBytes(raw))
	require.NoError(t, err)
	return b
}

type cycleFixture struct {
	backend  *memory.Backend
	store    *store.MemoryStore
	peers    *peerSet
	reporter *recordingReporter
	builder  *dnstree.Builder
	cycle    *Cycle
}

func newCycleFixture(t *testing.T) *cycleFixture {
	f := &cycleFixture{
		backend:  memory.New(),
		store:    store.NewMemory(),
		peers:    &peerSet{},
		reporter: &recordingReporter{},
		builder:  testBuilder(t),
	}
	f.cycle = NewCycle(
		CycleConfig{Domain: testDomain},
		f.builder, f.peers, publish.New(f.backend, publish.DefaultConfig()), f.store,
		WithCycleMetrics(f.reporter),
	)
	return f
}

func (f *cycleFixture) state(t *testing.T) store.State {
	t.Helper()
	st, found, err := f.store.Load(context.Background(), testDomain)
	require.NoError(t, err)
	require.True(t, found)
	return st
}

func TestCycle_PublishThenUnchanged(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()
	f.peers.set(testRecord(t, 1), testRecord(t, 2), testRecord(t, 3))

	result, err := f.cycle.RunResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, metrics.ResultPublished, result)
	assert.Equal(t, uint64(1), f.state(t).Seq)
	assert.Equal(t, uint64(1), f.reporter.seq)

	f.backend.ResetCounts()
	result, err = f.cycle.RunResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, metrics.ResultUnchanged, result)
	assert.Zero(t, f.backend.Counts().Total(), "unchanged peers produce no writes")
	assert.Equal(t, uint64(1), f.state(t).Seq, "unchanged tree keeps its sequence")

	f.peers.set(testRecord(t, 1), testRecord(t, 2), testRecord(t, 4))
	result, err = f.cycle.RunResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, metrics.ResultPublished, result)
	assert.Equal(t, uint64(2), f.state(t).Seq)

	root, err := dnstree.ParseRoot(f.backend.TXT(testDomain)[pkgif.RootName])
	require.NoError(t, err)
	assert.Equal(t, uint64(2), root.Seq)
	assert.Equal(t, f.state(t).Top, root.E)
}

func TestCycle_ResolvableAfterPublish(t *testing.T) {
	f := newCycleFixture(t)
	f.peers.set(testRecord(t, 1), testRecord(t, 2))
	require.NoError(t, f.cycle.Run(context.Background()))

	url := (&dnstree.LinkEntry{Domain: testDomain, PubKey: f.builder.PublicKey()}).String()
	resolved, err := dnstree.Resolve(context.Background(), f.backend, url)
	require.NoError(t, err)
	assert.Len(t, resolved.Nodes, 2)
}

func TestCycle_SkipsWithoutPeers(t *testing.T) {
	f := newCycleFixture(t)

	result, err := f.cycle.RunResult(context.Background())
	require.NoError(t, err)
	assert.Equal(t, metrics.ResultSkipped, result)
	assert.Zero(t, f.backend.Counts().Total())
	assert.Empty(t, f.backend.TXT(testDomain))
}

func TestCycle_Failures(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()

	f.peers.err = errors.New("peer manager unavailable")
	_, err := f.cycle.RunResult(ctx)
	assert.ErrorIs(t, err, f.peers.err)
	assert.Equal(t, metrics.ResultFailed, f.reporter.last())

	f.peers.err = nil
	f.peers.set(testRecord(t, 1))
	f.backend.FailOn(func(pkgif.RecordChange) error { return errors.New("quota exceeded") })
	_, err = f.cycle.RunResult(ctx)
	assert.ErrorIs(t, err, publish.ErrVendor)
	assert.Equal(t, metrics.ResultFailed, f.reporter.last())

	_, found, err := f.store.Load(ctx, testDomain)
	require.NoError(t, err)
	assert.False(t, found, "state is saved only after a successful deploy")
}

func TestCycle_LostStateSameTree(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()
	f.peers.set(testRecord(t, 1), testRecord(t, 2))

	// 其他实例已发布同一棵树，序号为 10
	live, err := f.builder.MakeTree(10, dnstree.Merge(f.peers.nodes), nil, false)
	require.NoError(t, err)
	f.backend.Seed(testDomain, live.ToTXT(), 60)

	result, err := f.cycle.RunResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, metrics.ResultUnchanged, result)
	assert.Zero(t, f.backend.Counts().Total())
	assert.Equal(t, uint64(10), f.state(t).Seq)
}

func TestCycle_LostStateNewerTree(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()

	live, err := f.builder.MakeTree(10, dnstree.Merge([]types.NodeRecord{testRecord(t, 9)}), nil, false)
	require.NoError(t, err)
	f.backend.Seed(testDomain, live.ToTXT(), 60)

	f.peers.set(testRecord(t, 1), testRecord(t, 2))
	result, err := f.cycle.RunResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, metrics.ResultPublished, result)
	assert.Equal(t, uint64(11), f.state(t).Seq)

	root, err := dnstree.ParseRoot(f.backend.TXT(testDomain)[pkgif.RootName])
	require.NoError(t, err)
	assert.Equal(t, uint64(11), root.Seq)
}

func TestCycle_PrivateLeaves(t *testing.T) {
	raw := make([]byte, 32)
	raw[0], raw[31] = 0x42, 9
	b, err := dnstree.NewBuilder(secp256k1.PrivKeyFromBytes(raw), dnstree.WithSharedSecret([]byte("s3cret")))
	require.NoError(t, err)

	backend := memory.New()
	peers := &peerSet{}
	peers.set(testRecord(t, 1))
	c := NewCycle(CycleConfig{Domain: testDomain, Private: true}, b, peers,
		publish.New(backend, publish.DefaultConfig()), store.NewMemory())
	require.NoError(t, c.Run(context.Background()))

	cipher, err := dnstree.NewLeafCipher([]byte("s3cret"))
	require.NoError(t, err)
	url := (&dnstree.LinkEntry{Domain: testDomain, PubKey: b.PublicKey()}).String()
	resolved, err := dnstree.Resolve(context.Background(), backend, url, dnstree.WithResolveSecret(cipher))
	require.NoError(t, err)
	require.Len(t, resolved.Nodes, 1)
	assert.True(t, resolved.Nodes[0].Equal(testRecord(t, 1)))
}

func TestCycle_Preview(t *testing.T) {
	f := newCycleFixture(t)
	ctx := context.Background()
	f.peers.set(testRecord(t, 1), testRecord(t, 2))

	preview, err := f.cycle.Preview(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), preview.Seq())
	assert.Len(t, preview.Nodes(), 2)
	assert.Zero(t, f.backend.Counts().Total(), "preview never writes")

	require.NoError(t, f.cycle.Run(ctx))
	assert.Equal(t, preview.ToTXT(), f.backend.TXT(testDomain))

	again, err := f.cycle.Preview(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), again.Seq(), "unchanged peers keep the sequence")
	assert.Equal(t, testDomain, f.cycle.Domain())
}

func TestCycle_RejectsConcurrentRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	peers := &peerSet{}
	peers.set(testRecord(t, 1), testRecord(t, 2))

	backend := memory.New()
	c := NewCycle(
		CycleConfig{Domain: testDomain},
		testBuilder(t),
		pkgif.PeerSourceFunc(func(ctx context.Context) ([]types.NodeRecord, error) {
			close(entered)
			<-release
			return peers.ConnectableNodes(ctx)
		}),
		publish.New(backend, publish.DefaultConfig()), store.NewMemory(),
	)

	first := make(chan error, 1)
	go func() {
		_, err := c.RunResult(context.Background())
		first <- err
	}()
	<-entered

	// 第一次发布尚未完成，第二次立即返回 ErrBusy 且不写入
	result, err := c.RunResult(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, result)
	assert.Zero(t, backend.Counts().Total())

	close(release)
	require.NoError(t, <-first)
	assert.NotZero(t, backend.Counts().Create)
}
