// Package rfc2136 实现基于 DNS 动态更新（RFC 2136）的 TXT 记录后端
//
// 适用于 BIND、Knot、PowerDNS 等自建权威服务器：通过 AXFR 列举记录，
// 通过 UPDATE 写入。一次 Apply 的全部变更放在同一个 UPDATE 报文中，
// 由服务器原子执行。可选 TSIG 签名。
package rfc2136

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/provider/txtrec"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("provider/rfc2136")

// Vendor 厂商名
const Vendor = "rfc2136"

const tsigFudge = 300

// 预定义错误
var (
	// ErrRcode 服务器返回非成功响应码
	ErrRcode = errors.New("rfc2136: server refused request")

	// ErrNotInZone 发布域名不在区域内
	ErrNotInZone = errors.New("rfc2136: domain is not inside zone")
)

var _ pkgif.RecordBackend = (*Backend)(nil)

// Backend RFC 2136 记录后端
type Backend struct {
	server  string
	zone    string
	timeout time.Duration

	tsigName string
	tsigAlg  string
	tsigKey  string
}

// New 按配置创建后端
func New(cfg config.RFC2136Config) *Backend {
	b := &Backend{
		server:  cfg.Server,
		zone:    txtrec.Normalize(cfg.Zone),
		timeout: cfg.Timeout.Duration(),
		tsigAlg: dns.Fqdn(strings.ToLower(cfg.TSIGAlgorithm)),
	}
	if b.timeout <= 0 {
		b.timeout = 10 * time.Second
	}
	if cfg.TSIGAlgorithm == "" {
		b.tsigAlg = dns.HmacSHA256
	}
	if cfg.TSIGKeyName != "" {
		b.tsigName = dns.Fqdn(strings.ToLower(cfg.TSIGKeyName))
		b.tsigKey = cfg.TSIGSecret
	}
	return b
}

// Vendor 实现 pkgif.RecordBackend
func (b *Backend) Vendor() string { return Vendor }

func (b *Backend) zoneOf(domain string) (string, error) {
	if b.zone == "" {
		return domain, nil
	}
	if domain != b.zone && !strings.HasSuffix(domain, "."+b.zone) {
		return "", fmt.Errorf("%w: %s not under %s", ErrNotInZone, domain, b.zone)
	}
	return b.zone, nil
}

func (b *Backend) tsigSecret() map[string]string {
	if b.tsigName == "" {
		return nil
	}
	return map[string]string{b.tsigName: b.tsigKey}
}

func (b *Backend) sign(m *dns.Msg) {
	if b.tsigName != "" {
		m.SetTsig(b.tsigName, b.tsigAlg, tsigFudge, time.Now().Unix())
	}
}

// Records 实现 pkgif.RecordBackend
//
// 对区域执行 AXFR，只保留 domain 及其下一级名字上的 TXT 记录。
func (b *Backend) Records(ctx context.Context, domain string) (map[string]pkgif.Record, error) {
	domain = txtrec.Normalize(domain)
	zone, err := b.zoneOf(domain)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := new(dns.Msg)
	m.SetAxfr(dns.Fqdn(zone))
	b.sign(m)

	t := &dns.Transfer{
		DialTimeout:  b.timeout,
		ReadTimeout:  b.timeout,
		WriteTimeout: b.timeout,
		TsigSecret:   b.tsigSecret(),
	}
	envs, err := t.In(m, b.server)
	if err != nil {
		return nil, fmt.Errorf("axfr %s: %w", zone, err)
	}

	out := make(map[string]pkgif.Record)
	for env := range envs {
		if env.Error != nil {
			return nil, fmt.Errorf("axfr %s: %w", zone, env.Error)
		}
		for _, rr := range env.RR {
			txt, ok := rr.(*dns.TXT)
			if !ok {
				continue
			}
			name, ok := txtrec.Relative(txt.Hdr.Name, domain)
			if !ok {
				continue
			}
			if _, dup := out[name]; dup {
				logger.Warn("名字上有多条 TXT 记录，只保留第一条", "name", txt.Hdr.Name)
				continue
			}
			out[name] = pkgif.Record{Name: name, Value: strings.Join(txt.Txt, ""), TTL: txt.Hdr.Ttl}
		}
	}
	return out, nil
}

// Apply 实现 pkgif.RecordBackend
func (b *Backend) Apply(ctx context.Context, domain string, changes []pkgif.RecordChange) error {
	if len(changes) == 0 {
		return nil
	}
	domain = txtrec.Normalize(domain)
	zone, err := b.zoneOf(domain)
	if err != nil {
		return err
	}

	m := new(dns.Msg)
	m.SetUpdate(dns.Fqdn(zone))
	for _, c := range changes {
		name := dns.Fqdn(txtrec.FQDN(c.Name, domain))
		switch c.Action {
		case pkgif.ChangeCreate:
			m.Insert([]dns.RR{newTXT(name, c.Value, c.TTL)})
		case pkgif.ChangeUpdate:
			m.RemoveRRset([]dns.RR{newTXT(name, "", 0)})
			m.Insert([]dns.RR{newTXT(name, c.Value, c.TTL)})
		case pkgif.ChangeDelete:
			m.RemoveRRset([]dns.RR{newTXT(name, "", 0)})
		}
	}
	b.sign(m)

	client := &dns.Client{
		Net:        "tcp",
		Timeout:    b.timeout,
		TsigSecret: b.tsigSecret(),
	}
	resp, _, err := client.ExchangeContext(ctx, m, b.server)
	if err != nil {
		return fmt.Errorf("update %s: %w", zone, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("%w: %s", ErrRcode, dns.RcodeToString[resp.Rcode])
	}
	return nil
}

func newTXT(name, value string, ttl uint32) *dns.TXT {
	txt := &dns.TXT{
		Hdr: dns.RR_Header{Name: name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: ttl},
	}
	if value != "" {
		txt.Txt = txtrec.Split(value)
	}
	return txt
}
