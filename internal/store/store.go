package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// 预定义错误
var (
	// ErrClosed 存储已关闭
	ErrClosed = errors.New("store: closed")

	// ErrEmptyDomain 域名为空
	ErrEmptyDomain = errors.New("store: empty domain")
)

// State 域名的发布状态
type State struct {
	// Seq 最近一次发布的序号
	Seq uint64 `json:"seq"`

	// Top 根记录引用的顶层哈希
	Top string `json:"top"`

	// UpdatedAt 写入时间
	UpdatedAt time.Time `json:"updated_at"`
}

// Next 返回顶层哈希为 top 的新树应使用的序号
//
// 从未发布时返回 1。
func (s State) Next(top string) uint64 {
	if s.Seq > 0 && s.Top == top {
		return s.Seq
	}
	return s.Seq + 1
}

// SequenceStore 序号状态存储
type SequenceStore interface {
	// Load 读取状态，不存在时 found 为 false
	Load(ctx context.Context, domain string) (state State, found bool, err error)

	// Save 写入状态
	Save(ctx context.Context, domain string, state State) error

	// Close 释放资源
	Close() error
}

func domainKey(domain string) (string, error) {
	d := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(domain), "."))
	if d == "" {
		return "", ErrEmptyDomain
	}
	return d, nil
}
