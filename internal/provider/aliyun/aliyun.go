// Package aliyun 实现基于阿里云解析（alidns）的 TXT 记录后端
//
// 阿里云以主域名 + 主机记录（RR）定位记录，修改与删除需要 RecordId。
// 后端在列举时缓存 名字 -> RecordId，缓存缺失时重新列举。
package aliyun

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	alidns "github.com/alibabacloud-go/alidns-20150109/v4/client"
	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	"github.com/alibabacloud-go/tea/tea"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/provider/txtrec"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("provider/aliyun")

// Vendor 厂商名
const Vendor = "aliyun"

const (
	recordType = "TXT"
	pageSize   = 500

	// 解析允许的 TTL 范围
	minTTL = 600
	maxTTL = 86400
)

// 预定义错误
var (
	// ErrNotInZone 发布域名不在配置的主域名下
	ErrNotInZone = errors.New("aliyun: domain is not inside zone")

	// ErrRecordID 找不到待修改记录的 RecordId
	ErrRecordID = errors.New("aliyun: record id not found")
)

// API 后端使用的 alidns 接口子集
type API interface {
	DescribeDomainRecords(req *alidns.DescribeDomainRecordsRequest) (*alidns.DescribeDomainRecordsResponse, error)
	AddDomainRecord(req *alidns.AddDomainRecordRequest) (*alidns.AddDomainRecordResponse, error)
	UpdateDomainRecord(req *alidns.UpdateDomainRecordRequest) (*alidns.UpdateDomainRecordResponse, error)
	DeleteDomainRecord(req *alidns.DeleteDomainRecordRequest) (*alidns.DeleteDomainRecordResponse, error)
}

var _ pkgif.RecordBackend = (*Backend)(nil)

// Backend 阿里云解析记录后端
type Backend struct {
	api  API
	zone string

	mu  sync.Mutex
	ids map[string]string // 完整域名 -> RecordId
}

// New 使用已有客户端创建后端，zone 为空时以发布域名作为主域名
func New(api API, zone string) *Backend {
	return &Backend{
		api:  api,
		zone: txtrec.Normalize(zone),
		ids:  make(map[string]string),
	}
}

// NewFromConfig 按配置创建 alidns 客户端
func NewFromConfig(cfg config.AliYunConfig) (*Backend, error) {
	client, err := alidns.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(cfg.AccessKeyID),
		AccessKeySecret: tea.String(cfg.AccessKeySecret),
		Endpoint:        tea.String(cfg.Endpoint),
	})
	if err != nil {
		return nil, fmt.Errorf("create alidns client: %w", err)
	}
	return New(client, cfg.Zone), nil
}

// Vendor 实现 pkgif.RecordBackend
func (b *Backend) Vendor() string { return Vendor }

// zoneOf 返回 domain 所在主域名以及 domain 相对主域名的前缀
func (b *Backend) zoneOf(domain string) (zone, prefix string, err error) {
	if b.zone == "" || b.zone == domain {
		return domain, "", nil
	}
	prefix, ok := strings.CutSuffix(domain, "."+b.zone)
	if !ok {
		return "", "", fmt.Errorf("%w: %s not under %s", ErrNotInZone, domain, b.zone)
	}
	return b.zone, prefix, nil
}

// rr 返回相对名字对应的主机记录
func rr(rel, prefix string) string {
	switch {
	case rel == pkgif.RootName && prefix == "":
		return "@"
	case rel == pkgif.RootName:
		return prefix
	case prefix == "":
		return rel
	default:
		return rel + "." + prefix
	}
}

// fqdn 返回主机记录对应的完整域名
func fqdn(rr, zone string) string {
	if rr == "@" {
		return zone
	}
	return rr + "." + zone
}

// Records 实现 pkgif.RecordBackend
func (b *Backend) Records(ctx context.Context, domain string) (map[string]pkgif.Record, error) {
	domain = txtrec.Normalize(domain)
	zone, prefix, err := b.zoneOf(domain)
	if err != nil {
		return nil, err
	}

	out := make(map[string]pkgif.Record)
	ids := make(map[string]string)
	for page := int64(1); ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req := &alidns.DescribeDomainRecordsRequest{
			DomainName: tea.String(zone),
			Type:       tea.String(recordType),
			PageNumber: tea.Int64(page),
			PageSize:   tea.Int64(pageSize),
		}
		if prefix != "" {
			req.RRKeyWord = tea.String(prefix)
		}
		resp, err := b.api.DescribeDomainRecords(req)
		if err != nil {
			return nil, err
		}
		if resp == nil || resp.Body == nil || resp.Body.DomainRecords == nil {
			break
		}

		recs := resp.Body.DomainRecords.Record
		for _, r := range recs {
			if !strings.EqualFold(tea.StringValue(r.Type), recordType) {
				continue
			}
			full := fqdn(strings.ToLower(tea.StringValue(r.RR)), zone)
			name, ok := txtrec.Relative(full, domain)
			if !ok {
				continue
			}
			ids[full] = tea.StringValue(r.RecordId)
			out[name] = pkgif.Record{Name: name, Value: tea.StringValue(r.Value), TTL: uint32(tea.Int64Value(r.TTL))}
		}
		if len(recs) < pageSize || page*pageSize >= tea.Int64Value(resp.Body.TotalCount) {
			break
		}
	}

	b.mu.Lock()
	for k, v := range ids {
		b.ids[k] = v
	}
	b.mu.Unlock()
	return out, nil
}

// Apply 实现 pkgif.RecordBackend
//
// 接口不支持批量写入，变更逐条提交。
func (b *Backend) Apply(ctx context.Context, domain string, changes []pkgif.RecordChange) error {
	domain = txtrec.Normalize(domain)
	zone, prefix, err := b.zoneOf(domain)
	if err != nil {
		return err
	}

	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			return err
		}
		host := rr(c.Name, prefix)
		full := fqdn(host, zone)

		switch c.Action {
		case pkgif.ChangeCreate:
			resp, err := b.api.AddDomainRecord(&alidns.AddDomainRecordRequest{
				DomainName: tea.String(zone),
				RR:         tea.String(host),
				Type:       tea.String(recordType),
				Value:      tea.String(c.Value),
				TTL:        tea.Int64(clampTTL(c.TTL)),
			})
			if err != nil {
				return fmt.Errorf("add %s: %w", full, err)
			}
			if resp != nil && resp.Body != nil {
				b.setID(full, tea.StringValue(resp.Body.RecordId))
			}

		case pkgif.ChangeUpdate:
			id, err := b.recordID(ctx, domain, full)
			if err != nil {
				return err
			}
			if _, err := b.api.UpdateDomainRecord(&alidns.UpdateDomainRecordRequest{
				RecordId: tea.String(id),
				RR:       tea.String(host),
				Type:     tea.String(recordType),
				Value:    tea.String(c.Value),
				TTL:      tea.Int64(clampTTL(c.TTL)),
			}); err != nil {
				return fmt.Errorf("update %s: %w", full, err)
			}

		case pkgif.ChangeDelete:
			id, err := b.recordID(ctx, domain, full)
			if err != nil {
				return err
			}
			if _, err := b.api.DeleteDomainRecord(&alidns.DeleteDomainRecordRequest{
				RecordId: tea.String(id),
			}); err != nil {
				return fmt.Errorf("delete %s: %w", full, err)
			}
			b.mu.Lock()
			delete(b.ids, full)
			b.mu.Unlock()
		}
	}
	return nil
}

func (b *Backend) setID(full, id string) {
	if id == "" {
		return
	}
	b.mu.Lock()
	b.ids[full] = id
	b.mu.Unlock()
}

// recordID 返回缓存的 RecordId，缺失时重新列举一次
func (b *Backend) recordID(ctx context.Context, domain, full string) (string, error) {
	b.mu.Lock()
	id, ok := b.ids[full]
	b.mu.Unlock()
	if ok {
		return id, nil
	}

	logger.Debug("RecordId 缓存缺失，重新列举", "name", full)
	if _, err := b.Records(ctx, domain); err != nil {
		return "", err
	}
	b.mu.Lock()
	id, ok = b.ids[full]
	b.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRecordID, full)
	}
	return id, nil
}

func clampTTL(ttl uint32) int64 {
	return int64(min(max(ttl, minTTL), maxTTL))
}
