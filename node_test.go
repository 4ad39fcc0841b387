package dnspub

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/dnstree"
	"github.com/dep2p/go-dnspub/internal/metrics"
	"github.com/dep2p/go-dnspub/internal/provider/memory"
	"github.com/dep2p/go-dnspub/internal/scheduler"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/types"
)

const testDomain = "nodes.example.org"

func testConfig() *config.Config {
	key := make([]byte, 32)
	key[0], key[31] = 0x42, 5

	cfg := config.NewConfig()
	cfg.Publish.Enable = true
	cfg.Publish.Type = config.DNSTypeMemory
	cfg.Publish.Domain = testDomain
	cfg.Publish.PrivateKey = hex.EncodeToString(key)
	cfg.Storage.DataDir = ""
	return cfg
}

func testPeers(n int) pkgif.PeerSource {
	return pkgif.PeerSourceFunc(func(context.Context) ([]types.NodeRecord, error) {
		out := make([]types.NodeRecord, 0, n)
		for i := 1; i <= n; i++ {
			rec, err := types.NewNodeRecord(base58.Encode([]byte{0x20, byte(i)}), "10.2.0."+strconv.Itoa(i), "", 18888)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	})
}

func TestNew_Errors(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrNoConfig)

	_, err = New(WithConfig(nil))
	assert.ErrorIs(t, err, ErrNoConfig)

	cfg := testConfig()
	cfg.Publish.Enable = false
	_, err = New(WithConfig(cfg))
	assert.ErrorIs(t, err, ErrPublishDisabled)

	cfg = testConfig()
	cfg.Publish.Type = "bind"
	_, err = New(WithConfig(cfg))
	assert.ErrorIs(t, err, config.ErrConfig)

	_, err = New(WithConfig(testConfig()), WithPeerSource(nil))
	assert.Error(t, err)
}

func TestNode_Lifecycle(t *testing.T) {
	n, err := New(WithConfig(testConfig()), WithPeerSource(testPeers(1)), WithClock(clock.NewMock()))
	require.NoError(t, err)

	_, err = n.PublishNow(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, n.Start(context.Background()))
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyStarted)

	state, err := n.SchedulerState()
	require.NoError(t, err)
	assert.Equal(t, scheduler.StateIdle, state)

	require.NoError(t, n.Stop(context.Background()))
	require.NoError(t, n.Stop(context.Background()))
	assert.ErrorIs(t, n.Start(context.Background()), ErrNodeClosed)

	_, err = n.Preview(context.Background())
	assert.ErrorIs(t, err, ErrNodeClosed)
}

func TestNode_ManualPublish(t *testing.T) {
	backend := memory.New()
	cfg := testConfig()
	cfg.Publish.Enable = false

	n, err := Start(context.Background(),
		WithConfig(cfg),
		WithManual(),
		WithBackend(backend),
		WithPeerSource(testPeers(3)),
	)
	require.NoError(t, err)
	defer n.Stop(context.Background())

	assert.True(t, n.Manual())
	_, err = n.SchedulerState()
	assert.ErrorIs(t, err, ErrManualMode)
	assert.True(t, strings.HasPrefix(n.URL(), "tree://"))
	assert.True(t, strings.HasSuffix(n.URL(), "@"+testDomain))

	preview, err := n.Preview(context.Background())
	require.NoError(t, err)
	assert.Len(t, preview.Nodes(), 3)

	result, err := n.PublishNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, metrics.ResultPublished, result)

	result, err = n.PublishNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, metrics.ResultUnchanged, result)

	last, found, err := n.LastPublished(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(1), last.Seq)

	records, err := n.Records(context.Background())
	require.NoError(t, err)
	assert.Equal(t, preview.ToTXT(), records)

	resolved, err := dnstree.Resolve(context.Background(), backend, n.URL())
	require.NoError(t, err)
	assert.Len(t, resolved.Nodes, 3)

	existed, err := n.DeleteDomain(context.Background())
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Empty(t, backend.TXT(testDomain))
}

func TestNode_ManualPublishNowSerialized(t *testing.T) {
	backend := memory.New()
	cfg := testConfig()
	cfg.Publish.Enable = false

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	peers := testPeers(2)
	n, err := Start(context.Background(),
		WithConfig(cfg),
		WithManual(),
		WithBackend(backend),
		WithPeerSource(pkgif.PeerSourceFunc(func(ctx context.Context) ([]types.NodeRecord, error) {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
			return peers.ConnectableNodes(ctx)
		})),
	)
	require.NoError(t, err)
	defer n.Stop(context.Background())

	first := make(chan error, 1)
	go func() {
		_, err := n.PublishNow(context.Background())
		first <- err
	}()
	<-entered

	_, err = n.PublishNow(context.Background())
	assert.ErrorIs(t, err, scheduler.ErrBusy)

	close(release)
	require.NoError(t, <-first)
	assert.Zero(t, backend.Counts().Update+backend.Counts().Delete)
	assert.NotEmpty(t, backend.TXT(testDomain)[pkgif.RootName])
}

func TestNode_DaemonPublishNow(t *testing.T) {
	backend := memory.New()
	n, err := Start(context.Background(),
		WithConfig(testConfig()),
		WithBackend(backend),
		WithPeerSource(testPeers(2)),
		WithClock(clock.NewMock()),
	)
	require.NoError(t, err)
	defer n.Stop(context.Background())

	result, err := n.PublishNow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result)

	require.Eventually(t, func() bool {
		return backend.TXT(testDomain)[pkgif.RootName] != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestVersionInfo(t *testing.T) {
	assert.Equal(t, "dnspub "+Version, VersionInfo())

	GitCommit = "0123456789abcdef"
	defer func() { GitCommit = "" }()
	assert.Equal(t, "dnspub "+Version+" (01234567)", VersionInfo())
}
