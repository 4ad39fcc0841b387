package config

import (
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-dnspub/internal/dnstree"
)

// DNS 服务类型
const (
	// DNSTypeAliYun 阿里云解析
	DNSTypeAliYun = "aliyun"
	// DNSTypeRoute53 AWS Route53
	DNSTypeRoute53 = "route53"
	// DNSTypeRFC2136 支持 RFC 2136 动态更新的权威服务器
	DNSTypeRFC2136 = "rfc2136"
	// DNSTypeMemory 进程内记录（测试与演练）
	DNSTypeMemory = "memory"
)

// 发布默认值
const (
	// DefaultInitialDelay 启动后首次发布的延迟
	DefaultInitialDelay = 300 * time.Second

	// DefaultPublishDelay 两次发布之间的固定间隔
	DefaultPublishDelay = 24 * time.Hour

	// DefaultMaxRecordSize 单条 TXT 记录内容上限
	DefaultMaxRecordSize = 370

	// DefaultConcurrency 单个阶段内的最大并发写
	DefaultConcurrency = 4

	// DefaultBatchSize 单次提交给厂商的最大变更数
	DefaultBatchSize = 100
)

// PublishConfig DNS 发布配置
type PublishConfig struct {
	// Enable 是否启用发布
	Enable bool `json:"enable"`

	// Type DNS 服务类型：aliyun / route53 / rfc2136 / memory
	Type string `json:"type"`

	// Domain 发布的域名，树根部署在域名顶点
	Domain string `json:"domain"`

	// KnownLinks 链接到其他树的 tree:// 地址
	KnownLinks []string `json:"known_links,omitempty"`

	// Private 是否加密叶子
	Private bool `json:"private,omitempty"`

	// SharedSecret 私有叶子的共享密钥
	SharedSecret string `json:"shared_secret,omitempty"`

	// PrivateKey 根签名私钥（secp256k1，hex）
	PrivateKey string `json:"private_key"`

	// InitialDelay 首次发布延迟
	InitialDelay Duration `json:"initial_delay"`

	// Delay 发布间隔（上一次结束到下一次开始）
	Delay Duration `json:"delay"`

	// MaxRecordSize 单条记录上限
	MaxRecordSize int `json:"max_record_size"`

	// Concurrency 单个阶段内的最大并发写
	Concurrency int `json:"concurrency"`

	// BatchSize 单次提交的最大变更数
	BatchSize int `json:"batch_size"`

	// AliYun 阿里云凭据
	AliYun AliYunConfig `json:"aliyun,omitempty"`

	// Route53 AWS 凭据
	Route53 Route53Config `json:"route53,omitempty"`

	// RFC2136 动态更新服务器
	RFC2136 RFC2136Config `json:"rfc2136,omitempty"`
}

// AliYunConfig 阿里云解析配置
type AliYunConfig struct {
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	AccessKeySecret string `json:"access_key_secret"`

	// Zone 阿里云中登记的主域名，空表示与发布域名相同
	Zone string `json:"zone,omitempty"`
}

// Route53Config AWS Route53 配置
type Route53Config struct {
	AccessKeyID     string `json:"access_key_id"`
	AccessKeySecret string `json:"access_key_secret"`
	HostedZoneID    string `json:"hosted_zone_id"`
	Region          string `json:"region"`
}

// RFC2136Config 动态更新配置
type RFC2136Config struct {
	// Server 权威服务器地址 host:port
	Server string `json:"server"`

	// Zone 区域名，空表示与发布域名相同
	Zone string `json:"zone,omitempty"`

	// TSIGKeyName / TSIGSecret / TSIGAlgorithm 事务签名，可选
	TSIGKeyName   string `json:"tsig_key_name,omitempty"`
	TSIGSecret    string `json:"tsig_secret,omitempty"`
	TSIGAlgorithm string `json:"tsig_algorithm,omitempty"`

	// Timeout 单次请求超时
	Timeout Duration `json:"timeout"`
}

// DefaultPublishConfig 返回默认发布配置
func DefaultPublishConfig() PublishConfig {
	return PublishConfig{
		Enable:        false,
		InitialDelay:  Duration(DefaultInitialDelay),
		Delay:         Duration(DefaultPublishDelay),
		MaxRecordSize: DefaultMaxRecordSize,
		Concurrency:   DefaultConcurrency,
		BatchSize:     DefaultBatchSize,
		Route53: Route53Config{
			Region: "us-east-1",
		},
		RFC2136: RFC2136Config{
			TSIGAlgorithm: "hmac-sha256.",
			Timeout:       Duration(10 * time.Second),
		},
	}
}

// Validate 验证发布配置
func (c *PublishConfig) Validate() error {
	var err error

	if strings.TrimSuffix(c.Domain, ".") == "" {
		err = multierr.Append(err, fieldErr("publish.domain", "must be set"))
	}
	if _, keyErr := c.SigningKey(); keyErr != nil {
		err = multierr.Append(err, fieldErr("publish.private_key", "%v", keyErr))
	}
	if c.Private && c.SharedSecret == "" {
		err = multierr.Append(err, fieldErr("publish.shared_secret", "required when private is set"))
	}
	if c.Delay.Duration() <= 0 {
		err = multierr.Append(err, fieldErr("publish.delay", "must be positive"))
	}
	if c.InitialDelay.Duration() < 0 {
		err = multierr.Append(err, fieldErr("publish.initial_delay", "must not be negative"))
	}
	if c.MaxRecordSize <= 0 {
		err = multierr.Append(err, fieldErr("publish.max_record_size", "must be positive"))
	}
	if c.Concurrency <= 0 {
		err = multierr.Append(err, fieldErr("publish.concurrency", "must be positive"))
	}
	if c.BatchSize <= 0 {
		err = multierr.Append(err, fieldErr("publish.batch_size", "must be positive"))
	}
	for _, l := range c.KnownLinks {
		if _, linkErr := dnstree.ParseLink(l); linkErr != nil {
			err = multierr.Append(err, fieldErr("publish.known_links", "%q: %v", l, linkErr))
		}
	}

	switch c.Type {
	case DNSTypeAliYun:
		err = multierr.Append(err, c.AliYun.validate())
	case DNSTypeRoute53:
		err = multierr.Append(err, c.Route53.validate())
	case DNSTypeRFC2136:
		err = multierr.Append(err, c.RFC2136.validate())
	case DNSTypeMemory:
	case "":
		err = multierr.Append(err, fieldErr("publish.type", "must be specified when publish is enabled"))
	default:
		err = multierr.Append(err, fieldErr("publish.type", "unknown dns type %q", c.Type))
	}
	return err
}

// SigningKey 解析根签名私钥
func (c *PublishConfig) SigningKey() ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(c.PrivateKey, "0x"))
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, errInvalidKeyLength
	}
	return raw, nil
}

func (c *AliYunConfig) validate() error {
	var err error
	if c.Endpoint == "" {
		err = multierr.Append(err, fieldErr("publish.aliyun.endpoint", "must be set"))
	}
	if c.AccessKeyID == "" {
		err = multierr.Append(err, fieldErr("publish.aliyun.access_key_id", "must be set"))
	}
	if c.AccessKeySecret == "" {
		err = multierr.Append(err, fieldErr("publish.aliyun.access_key_secret", "must be set"))
	}
	return err
}

func (c *Route53Config) validate() error {
	var err error
	if c.HostedZoneID == "" {
		err = multierr.Append(err, fieldErr("publish.route53.hosted_zone_id", "must be set"))
	}
	if c.AccessKeyID == "" {
		err = multierr.Append(err, fieldErr("publish.route53.access_key_id", "must be set"))
	}
	if c.AccessKeySecret == "" {
		err = multierr.Append(err, fieldErr("publish.route53.access_key_secret", "must be set"))
	}
	if c.Region == "" {
		err = multierr.Append(err, fieldErr("publish.route53.region", "must be set"))
	}
	return err
}

func (c *RFC2136Config) validate() error {
	var err error
	if c.Server == "" {
		err = multierr.Append(err, fieldErr("publish.rfc2136.server", "must be set"))
	} else if hpErr := validateHostPort(c.Server); hpErr != nil {
		err = multierr.Append(err, fieldErr("publish.rfc2136.server", "%v", hpErr))
	}
	if (c.TSIGKeyName == "") != (c.TSIGSecret == "") {
		err = multierr.Append(err, fieldErr("publish.rfc2136.tsig", "key name and secret must be set together"))
	}
	if c.Timeout.Duration() <= 0 {
		err = multierr.Append(err, fieldErr("publish.rfc2136.timeout", "must be positive"))
	}
	return err
}
