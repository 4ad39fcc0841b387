package app

import (
	"context"

	"github.com/dep2p/go-dnspub/internal/dnstree"
	"github.com/dep2p/go-dnspub/internal/publish"
	"github.com/dep2p/go-dnspub/internal/scheduler"
	"github.com/dep2p/go-dnspub/internal/store"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// Runtime 表示一个已通过 fx 组装完成的 dnspub 运行时。
//
// 注意：手动模式下 Scheduler 为 nil
type Runtime struct {
	Publisher *publish.Publisher
	Scheduler *scheduler.Scheduler
	Cycle     *scheduler.Cycle
	Builder   *dnstree.Builder
	Store     store.SequenceStore
	Peers     pkgif.PeerSource

	// Manual 是否为手动模式
	Manual bool

	stop func(ctx context.Context) error
}

// Stop 停止运行时（触发 fx 生命周期 OnStop）。
func (r *Runtime) Stop(ctx context.Context) error {
	if r.stop == nil {
		return nil
	}
	return r.stop(ctx)
}
