// Package txtrec 提供各厂商后端共用的 TXT 记录处理
//
// 包括相对名字与完整域名的换算、超过 255 字节的值拆分为多段字符串，
// 以及区域文件风格的引号编码（Route53 等接口使用）。
package txtrec

import (
	"errors"
	"strings"

	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
)

// MaxStringLen 单个 character-string 的最大长度
const MaxStringLen = 255

// ErrBadQuoting 引号格式错误
var ErrBadQuoting = errors.New("txtrec: malformed quoted TXT value")

// Normalize 域名转小写并去掉末尾的点
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
}

// FQDN 返回相对名字在 domain 下的完整域名（不带末尾的点）
//
// RootName 对应 domain 本身。
func FQDN(rel, domain string) string {
	domain = Normalize(domain)
	if rel == pkgif.RootName {
		return domain
	}
	return rel + "." + domain
}

// Relative 返回 name 相对 domain 的名字
//
// name 等于 domain 时返回 RootName；只接受 domain 下一级的单个标签。
func Relative(name, domain string) (string, bool) {
	name, domain = Normalize(name), Normalize(domain)
	if name == domain {
		return pkgif.RootName, true
	}
	label, ok := strings.CutSuffix(name, "."+domain)
	if !ok || label == "" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

// Split 把值拆分为不超过 MaxStringLen 的多段
func Split(value string) []string {
	if len(value) <= MaxStringLen {
		return []string{value}
	}
	parts := make([]string, 0, len(value)/MaxStringLen+1)
	for len(value) > MaxStringLen {
		parts = append(parts, value[:MaxStringLen])
		value = value[MaxStringLen:]
	}
	if value != "" {
		parts = append(parts, value)
	}
	return parts
}

// Quote 编码为区域文件形式："part1" "part2"
func Quote(value string) string {
	parts := Split(value)
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('"')
		for j := 0; j < len(p); j++ {
			if p[j] == '"' || p[j] == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(p[j])
		}
		b.WriteByte('"')
	}
	return b.String()
}

// Unquote 解析 Quote 的输出并拼接各段
//
// 不以引号开头的输入按原样返回。
func Unquote(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}

	var b strings.Builder
	for len(s) > 0 {
		if s[0] != '"' {
			return "", ErrBadQuoting
		}
		s = s[1:]
		closed := false
		for len(s) > 0 {
			c := s[0]
			s = s[1:]
			if c == '\\' {
				if len(s) == 0 {
					return "", ErrBadQuoting
				}
				b.WriteByte(s[0])
				s = s[1:]
				continue
			}
			if c == '"' {
				closed = true
				break
			}
			b.WriteByte(c)
		}
		if !closed {
			return "", ErrBadQuoting
		}
		s = strings.TrimLeft(s, " \t")
	}
	return b.String(), nil
}
