// Package route53 实现基于 AWS Route53 的 TXT 记录后端
//
// 变更按批提交（每批不超过 1000 条、值总长度不超过 32000 字符），
// 每批提交后等待变更在全部权威服务器上生效（INSYNC），再返回。
package route53

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/google/uuid"

	"github.com/dep2p/go-dnspub/config"
	"github.com/dep2p/go-dnspub/internal/provider/txtrec"
	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/lib/log"
)

var logger = log.Logger("provider/route53")

// Vendor 厂商名
const Vendor = "route53"

// Route53 接口限制
const (
	maxChangesPerBatch = 1000
	maxValueCharsBatch = 32000
	listPageSize       = 300

	// DefaultSyncTimeout 等待变更生效的最长时间
	DefaultSyncTimeout = 5 * time.Minute
)

// ErrNoZone 未配置 hosted zone
var ErrNoZone = errors.New("route53: hosted zone id is required")

// API 后端使用的 Route53 接口子集
type API interface {
	ListResourceRecordSets(ctx context.Context, params *route53.ListResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
	GetChange(ctx context.Context, params *route53.GetChangeInput, optFns ...func(*route53.Options)) (*route53.GetChangeOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

var _ pkgif.RecordBackend = (*Backend)(nil)

// Backend Route53 记录后端
type Backend struct {
	api         API
	zoneID      string
	syncTimeout time.Duration
}

// Option Backend 选项
type Option func(*Backend)

// WithSyncTimeout 设置等待 INSYNC 的超时，0 表示不等待
func WithSyncTimeout(d time.Duration) Option {
	return func(b *Backend) { b.syncTimeout = d }
}

// New 使用已有的 API 客户端创建后端
func New(api API, zoneID string, opts ...Option) (*Backend, error) {
	if zoneID == "" {
		return nil, ErrNoZone
	}
	b := &Backend{
		api:         api,
		zoneID:      zoneID,
		syncTimeout: DefaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// NewFromConfig 使用静态凭据创建后端
func NewFromConfig(ctx context.Context, cfg config.Route53Config, opts ...Option) (*Backend, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(route53.NewFromConfig(awsCfg), cfg.HostedZoneID, opts...)
}

// Vendor 实现 pkgif.RecordBackend
func (b *Backend) Vendor() string { return Vendor }

// Records 实现 pkgif.RecordBackend
//
// 从 domain 开始按名字顺序翻页，越过 domain 子树后停止。
// Route53 按标签逆序排序，子树中的名字紧随 domain 之后。
func (b *Backend) Records(ctx context.Context, domain string) (map[string]pkgif.Record, error) {
	domain = txtrec.Normalize(domain)
	out := make(map[string]pkgif.Record)

	input := &route53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(b.zoneID),
		StartRecordName: aws.String(domain + "."),
		MaxItems:        aws.Int32(listPageSize),
	}
	for {
		resp, err := b.api.ListResourceRecordSets(ctx, input)
		if err != nil {
			return nil, err
		}
		for _, set := range resp.ResourceRecordSets {
			fqdn := txtrec.Normalize(unescapeName(aws.ToString(set.Name)))
			if fqdn != domain && !strings.HasSuffix(fqdn, "."+domain) {
				return out, nil
			}
			if set.Type != types.RRTypeTxt {
				continue
			}
			name, ok := txtrec.Relative(fqdn, domain)
			if !ok {
				continue
			}
			values := make([]string, 0, len(set.ResourceRecords))
			for _, rr := range set.ResourceRecords {
				v, err := txtrec.Unquote(aws.ToString(rr.Value))
				if err != nil {
					return nil, fmt.Errorf("record %s: %w", name, err)
				}
				values = append(values, v)
			}
			if len(values) != 1 {
				logger.Warn("跳过多值 TXT 记录", "name", name, "values", len(values))
				continue
			}
			out[name] = pkgif.Record{Name: name, Value: values[0], TTL: uint32(aws.ToInt64(set.TTL))}
		}
		if !resp.IsTruncated {
			break
		}
		input.StartRecordName = resp.NextRecordName
		input.StartRecordType = resp.NextRecordType
		input.StartRecordIdentifier = resp.NextRecordIdentifier
	}
	return out, nil
}

// Apply 实现 pkgif.RecordBackend
func (b *Backend) Apply(ctx context.Context, domain string, changes []pkgif.RecordChange) error {
	for _, batch := range Batches(toChanges(domain, changes)) {
		comment := "dnspub " + uuid.NewString()
		resp, err := b.api.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
			HostedZoneId: aws.String(b.zoneID),
			ChangeBatch: &types.ChangeBatch{
				Changes: batch,
				Comment: aws.String(comment),
			},
		})
		if err != nil {
			return err
		}
		logger.Debug("已提交变更", "changes", len(batch), "comment", comment)

		if b.syncTimeout <= 0 || resp.ChangeInfo == nil {
			continue
		}
		waiter := route53.NewResourceRecordSetsChangedWaiter(b.api)
		if err := waiter.Wait(ctx, &route53.GetChangeInput{Id: resp.ChangeInfo.Id}, b.syncTimeout); err != nil {
			return fmt.Errorf("wait for change %s: %w", aws.ToString(resp.ChangeInfo.Id), err)
		}
	}
	return nil
}

func toChanges(domain string, changes []pkgif.RecordChange) []types.Change {
	out := make([]types.Change, 0, len(changes))
	for _, c := range changes {
		value, ttl := c.Value, c.TTL
		var action types.ChangeAction
		switch c.Action {
		case pkgif.ChangeCreate:
			action = types.ChangeActionCreate
		case pkgif.ChangeUpdate:
			action = types.ChangeActionUpsert
		case pkgif.ChangeDelete:
			// 删除必须与线上记录完全一致
			action = types.ChangeActionDelete
			value, ttl = c.Old.Value, c.Old.TTL
		}
		out = append(out, types.Change{
			Action: action,
			ResourceRecordSet: &types.ResourceRecordSet{
				Name:            aws.String(txtrec.FQDN(c.Name, domain) + "."),
				Type:            types.RRTypeTxt,
				TTL:             aws.Int64(int64(ttl)),
				ResourceRecords: []types.ResourceRecord{{Value: aws.String(txtrec.Quote(value))}},
			},
		})
	}
	return out
}

// Batches 按 Route53 的条数与字符数限制切分变更
//
// UPSERT 的值按两倍计入字符数。
func Batches(changes []types.Change) [][]types.Change {
	var (
		out   [][]types.Change
		cur   []types.Change
		chars int
	)
	for _, c := range changes {
		size := changeSize(c)
		if len(cur) > 0 && (len(cur) == maxChangesPerBatch || chars+size > maxValueCharsBatch) {
			out = append(out, cur)
			cur, chars = nil, 0
		}
		cur = append(cur, c)
		chars += size
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

func changeSize(c types.Change) int {
	n := 0
	for _, rr := range c.ResourceRecordSet.ResourceRecords {
		n += len(aws.ToString(rr.Value))
	}
	if c.Action == types.ChangeActionUpsert {
		n *= 2
	}
	return n
}

// unescapeName 还原 Route53 返回名字中的 \ddd 转义
func unescapeName(name string) string {
	if !strings.Contains(name, `\`) {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == '\\' && i+3 < len(name) && isOctal(name[i+1:i+4]) {
			v := int(name[i+1]-'0')*64 + int(name[i+2]-'0')*8 + int(name[i+3]-'0')
			b.WriteByte(byte(v))
			i += 3
			continue
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

func isOctal(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '7' {
			return false
		}
	}
	return true
}
