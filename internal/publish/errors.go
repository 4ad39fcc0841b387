package publish

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrVendor 厂商 API 调用失败
	ErrVendor = errors.New("publish: vendor api error")

	// ErrStaleSequence 线上根记录的序号不低于待发布的序号
	ErrStaleSequence = errors.New("publish: stale sequence")

	// ErrInvalidDomain 域名为空
	ErrInvalidDomain = errors.New("publish: invalid domain")

	// ErrMissingRoot 待发布的记录集合没有根
	ErrMissingRoot = errors.New("publish: tree has no root record")
)

// VendorError 厂商 API 错误
type VendorError struct {
	// Vendor 厂商名
	Vendor string
	// Op 失败的操作：list / create / update / delete
	Op string
	// Err 底层错误
	Err error
}

// Error 实现 error 接口
func (e *VendorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Vendor, e.Op, e.Err)
}

// Unwrap 返回底层错误
func (e *VendorError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrVendor) 成立
func (e *VendorError) Is(target error) bool {
	return target == ErrVendor
}

// StaleSequenceError 线上已有更新（或同序号不同内容）的根
type StaleSequenceError struct {
	// Published 线上根记录的序号
	Published uint64
	// PublishedTop 线上根记录引用的顶层哈希
	PublishedTop string
	// Attempted 本次尝试发布的序号
	Attempted uint64
}

// Error 实现 error 接口
func (e *StaleSequenceError) Error() string {
	return fmt.Sprintf("%v: published seq %d, attempted %d", ErrStaleSequence, e.Published, e.Attempted)
}

// Unwrap 返回 ErrStaleSequence
func (e *StaleSequenceError) Unwrap() error {
	return ErrStaleSequence
}
