package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/provider/aliyun"
	"github.com/dep2p/go-dnspub/internal/provider/memory"
	"github.com/dep2p/go-dnspub/internal/provider/rfc2136"
	"github.com/dep2p/go-dnspub/internal/provider/route53"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

func TestNew(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultPublishConfig()

	cfg.Type = config.DNSTypeMemory
	b, err := New(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, memory.Vendor, b.Vendor())

	cfg.Type = config.DNSTypeRFC2136
	cfg.RFC2136.Server = "127.0.0.1:53"
	b, err = New(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, rfc2136.Vendor, b.Vendor())

	cfg.Type = config.DNSTypeAliYun
	cfg.AliYun = config.AliYunConfig{Endpoint: "alidns.cn-hangzhou.aliyuncs.com", AccessKeyID: "id", AccessKeySecret: "secret"}
	b, err = New(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, aliyun.Vendor, b.Vendor())

	cfg.Type = config.DNSTypeRoute53
	cfg.Route53 = config.Route53Config{AccessKeyID: "id", AccessKeySecret: "secret", HostedZoneID: "Z1", Region: "us-east-1"}
	b, err = New(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, route53.Vendor, b.Vendor())

	cfg.Type = "bind"
	_, err = New(ctx, cfg)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Publish.Type = config.DNSTypeMemory

	var backend pkgif.RecordBackend
	app := fxtest.New(t,
		fx.WithLogger(func() fxevent.Logger { return &fxevent.ZapLogger{Logger: zap.NewNop()} }),
		fx.Supply(cfg),
		Module,
		fx.Populate(&backend),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, memory.Vendor, backend.Vendor())
}
