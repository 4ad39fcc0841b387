package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/multierr"
)

// ErrConfig 配置无效
//
// Validate 返回的错误都包装 ErrConfig，可用 errors.Is 判断；
// 具体问题可用 multierr.Errors 展开。
var ErrConfig = errors.New("invalid configuration")

var (
	errNilConfig        = errors.New("config is nil")
	errInvalidKeyLength = errors.New("key must be 32 bytes")
)

// FieldError 单个字段的配置问题
type FieldError struct {
	Field  string
	Reason string
}

// Error 实现 error 接口
func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func fieldErr(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type configError struct {
	err error
}

func (e *configError) Error() string {
	return ErrConfig.Error() + ": " + e.err.Error()
}

// Is 让 errors.Is(err, ErrConfig) 成立
func (e *configError) Is(target error) bool {
	return target == ErrConfig
}

func (e *configError) Unwrap() error {
	return e.err
}

// Errors 展开聚合的问题列表
func (e *configError) Errors() []error {
	return multierr.Errors(e.err)
}

func wrapConfigErr(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}

func validateHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("bad port %q", port)
	}
	return nil
}
