package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// 环境变量（均使用 DNSPUB_ 前缀）
const (
	EnvPrefix = "DNSPUB_"

	EnvPublishEnable   = "PUBLISH_ENABLE"
	EnvDNSType         = "DNS_TYPE"
	EnvDomain          = "DOMAIN"
	EnvPrivateKey      = "PRIVATE_KEY"
	EnvSharedSecret    = "SHARED_SECRET"
	EnvKnownLinks      = "KNOWN_LINKS"
	EnvDelay           = "DELAY"
	EnvAliEndpoint     = "ALIYUN_ENDPOINT"
	EnvAliKeyID        = "ALIYUN_ACCESS_KEY_ID"
	EnvAliKeySecret    = "ALIYUN_ACCESS_KEY_SECRET"
	EnvAWSKeyID        = "AWS_ACCESS_KEY_ID"
	EnvAWSKeySecret    = "AWS_ACCESS_KEY_SECRET"
	EnvAWSHostedZoneID = "AWS_HOSTED_ZONE_ID"
	EnvAWSRegion       = "AWS_REGION"
	EnvRFC2136Server   = "RFC2136_SERVER"
	EnvTSIGKeyName     = "TSIG_KEY_NAME"
	EnvTSIGSecret      = "TSIG_SECRET"
	EnvPeersFile       = "PEERS_FILE"
	EnvDataDir         = "DATA_DIR"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFile         = "LOG_FILE"
	EnvMetricsAddr     = "METRICS_ADDR"
)

// FromJSON 在默认配置之上解析 JSON
//
// JSON 中未出现的字段保留默认值。
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: 用户指定的配置文件路径是预期行为
	if err != nil {
		return nil, err
	}
	return FromJSON(data)
}

// ToJSON 序列化配置
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ApplyEnv 应用环境变量覆盖配置
//
// 环境变量优先级高于配置文件，但低于命令行参数。凭据建议只通过
// 环境变量传入。
func (c *Config) ApplyEnv() {
	c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) {
	str := func(name string, dst *string) {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := getenv(EnvPrefix + EnvPublishEnable); v != "" {
		c.Publish.Enable = parseBool(v)
	}
	str(EnvDNSType, &c.Publish.Type)
	str(EnvDomain, &c.Publish.Domain)
	str(EnvPrivateKey, &c.Publish.PrivateKey)
	str(EnvSharedSecret, &c.Publish.SharedSecret)
	if v := getenv(EnvPrefix + EnvKnownLinks); v != "" {
		c.Publish.KnownLinks = splitAndTrim(v, ",")
	}
	if v := getenv(EnvPrefix + EnvDelay); v != "" {
		if d, err := ParseDuration(v); err == nil {
			c.Publish.Delay = d
		}
	}

	str(EnvAliEndpoint, &c.Publish.AliYun.Endpoint)
	str(EnvAliKeyID, &c.Publish.AliYun.AccessKeyID)
	str(EnvAliKeySecret, &c.Publish.AliYun.AccessKeySecret)

	str(EnvAWSKeyID, &c.Publish.Route53.AccessKeyID)
	str(EnvAWSKeySecret, &c.Publish.Route53.AccessKeySecret)
	str(EnvAWSHostedZoneID, &c.Publish.Route53.HostedZoneID)
	str(EnvAWSRegion, &c.Publish.Route53.Region)

	str(EnvRFC2136Server, &c.Publish.RFC2136.Server)
	str(EnvTSIGKeyName, &c.Publish.RFC2136.TSIGKeyName)
	str(EnvTSIGSecret, &c.Publish.RFC2136.TSIGSecret)

	str(EnvPeersFile, &c.Peers.File)
	str(EnvDataDir, &c.Storage.DataDir)
	str(EnvLogLevel, &c.Log.Level)
	str(EnvLogFile, &c.Log.File)
	str(EnvMetricsAddr, &c.Metrics.ListenAddr)
}

// ============================================================================
//                              辅助函数
// ============================================================================

// parseBool 解析布尔值字符串
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s == "yes" || s == "on"
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
