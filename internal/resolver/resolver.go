// Package resolver 提供基于 miekg/dns 的 TXT 查询
//
// 用于从真实 DNS 回读已发布的发现树（dnstree.Resolve 的 TXTLookup）。
// 查询结果按名字缓存在有过期时间的 LRU 中，同一次遍历内不会重复查询
// 同一个条目。
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/miekg/dns"

	"github.com/dep2p/go-dnspub/internal/dnstree"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("resolver")

// ErrNoServers 没有可用的 DNS 服务器
var ErrNoServers = errors.New("resolver: no dns servers configured")

// resolvConf 系统解析配置
const resolvConf = "/etc/resolv.conf"

// ============================================================================
//                              配置
// ============================================================================

// Config 解析器配置
type Config struct {
	// Servers DNS 服务器地址（host:port），空表示读取 /etc/resolv.conf
	Servers []string

	// Timeout 单次查询超时
	Timeout time.Duration

	// CacheSize 缓存条目数，0 表示不缓存
	CacheSize int

	// CacheTTL 缓存有效期
	CacheTTL time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Timeout:   5 * time.Second,
		CacheSize: 4096,
		CacheTTL:  time.Minute,
	}
}

// ============================================================================
//                              Resolver 实现
// ============================================================================

var _ pkgif.TXTLookup = (*Resolver)(nil)

// Resolver TXT 查询器
type Resolver struct {
	servers []string
	udp     *dns.Client
	tcp     *dns.Client
	cache   *expirable.LRU[string, []string]
}

// New 创建解析器
func New(cfg Config) (*Resolver, error) {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	servers := cfg.Servers
	if len(servers) == 0 {
		cc, err := dns.ClientConfigFromFile(resolvConf)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", resolvConf, err)
		}
		for _, s := range cc.Servers {
			servers = append(servers, net.JoinHostPort(s, cc.Port))
		}
	}
	if len(servers) == 0 {
		return nil, ErrNoServers
	}

	r := &Resolver{
		servers: servers,
		udp:     &dns.Client{Net: "udp", Timeout: cfg.Timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: cfg.Timeout},
	}
	if cfg.CacheSize > 0 {
		r.cache = expirable.NewLRU[string, []string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return r, nil
}

// LookupTXT 实现 pkgif.TXTLookup
//
// 多段字符串拼接为一个值。名字不存在或没有 TXT 记录时返回
// 包装 dnstree.ErrNoRecords 的错误。
func (r *Resolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	name = dns.Fqdn(strings.ToLower(strings.TrimSpace(name)))
	if r.cache != nil {
		if v, ok := r.cache.Get(name); ok {
			return v, nil
		}
	}

	var lastErr error
	for _, server := range r.servers {
		values, err := r.query(ctx, server, name)
		if err == nil {
			if r.cache != nil {
				r.cache.Add(name, values)
			}
			return values, nil
		}
		if errors.Is(err, dnstree.ErrNoRecords) || ctx.Err() != nil {
			return nil, err
		}
		logger.Debug("DNS 查询失败，尝试下一个服务器", "server", server, "name", name, "error", err)
		lastErr = err
	}
	return nil, lastErr
}

func (r *Resolver) query(ctx context.Context, server, name string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(name, dns.TypeTXT)
	m.RecursionDesired = true

	resp, _, err := r.udp.ExchangeContext(ctx, m, server)
	if err == nil && resp.Truncated {
		resp, _, err = r.tcp.ExchangeContext(ctx, m, server)
	}
	if err != nil {
		return nil, err
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", dnstree.ErrNoRecords, name)
	default:
		return nil, fmt.Errorf("query %s: %s", name, dns.RcodeToString[resp.Rcode])
	}

	var values []string
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			values = append(values, strings.Join(txt.Txt, ""))
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", dnstree.ErrNoRecords, name)
	}
	return values, nil
}

// Purge 清空缓存
func (r *Resolver) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}
