package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("store/badger")

const (
	keyPrefix = "dnspub/seq/"

	// DefaultGCInterval 默认值日志回收间隔
	DefaultGCInterval = 10 * time.Minute

	// gcDiscardRatio 回收阈值
	gcDiscardRatio = 0.5

	// 状态数据量很小，缩小预分配避免占用大文件
	valueLogFileSize = 16 << 20
	memTableSize     = 8 << 20
)

var _ SequenceStore = (*BadgerStore)(nil)

// BadgerOption 配置 BadgerStore
type BadgerOption func(*badgerOptions)

type badgerOptions struct {
	gcInterval time.Duration
	syncWrites bool
}

// WithGCInterval 设置值日志回收间隔，0 表示不回收
func WithGCInterval(d time.Duration) BadgerOption {
	return func(o *badgerOptions) { o.gcInterval = d }
}

// WithSyncWrites 设置每次写入是否落盘
func WithSyncWrites(sync bool) BadgerOption {
	return func(o *badgerOptions) { o.syncWrites = sync }
}

// BadgerStore 基于 BadgerDB 的序号存储
type BadgerStore struct {
	db     *badger.DB
	opts   badgerOptions
	closed atomic.Bool

	gcCtx    context.Context
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	gcOnce   sync.Once
}

// OpenBadger 打开（或创建）path 下的数据库
func OpenBadger(path string, opts ...BadgerOption) (*BadgerStore, error) {
	o := badgerOptions{
		gcInterval: DefaultGCInterval,
		syncWrites: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	bopts := badger.DefaultOptions(path).
		WithSyncWrites(o.syncWrites).
		WithNumVersionsToKeep(1).
		WithValueLogFileSize(valueLogFileSize).
		WithMemTableSize(memTableSize).
		WithLogger(&badgerLogger{})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &BadgerStore{
		db:       db,
		opts:     o,
		gcCtx:    ctx,
		gcCancel: cancel,
	}, nil
}

// badgerLogger 将 badger 日志转发到 slog，Info 以下降为 Debug
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

// Start 启动后台值日志回收
func (s *BadgerStore) Start() error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.opts.gcInterval > 0 {
		s.gcOnce.Do(s.startGC)
	}
	return nil
}

func (s *BadgerStore) startGC() {
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()

		ticker := time.NewTicker(s.opts.gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.gcCtx.Done():
				return
			case <-ticker.C:
				s.runGC()
			}
		}
	}()
}

// runGC 反复回收直到没有可回收的文件
func (s *BadgerStore) runGC() {
	for !s.closed.Load() {
		err := s.db.RunValueLogGC(gcDiscardRatio)
		if err == nil {
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
			logger.Warn("值日志回收失败", "error", err)
		}
		return
	}
}

// Load 实现 SequenceStore
func (s *BadgerStore) Load(ctx context.Context, domain string) (State, bool, error) {
	if s.closed.Load() {
		return State{}, false, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return State{}, false, err
	}
	key, err := domainKey(domain)
	if err != nil {
		return State{}, false, err
	}

	var raw []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("load %s: %w", key, err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, fmt.Errorf("decode state %s: %w", key, err)
	}
	return st, true, nil
}

// Save 实现 SequenceStore
func (s *BadgerStore) Save(ctx context.Context, domain string, state State) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := domainKey(domain)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), raw)
	}); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Close 停止回收并关闭数据库，可重复调用
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.gcCancel()
	s.gcWg.Wait()
	return s.db.Close()
}
