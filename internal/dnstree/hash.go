package dnstree

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	// hashAbbrevSize 条目名字使用的摘要字节数
	hashAbbrevSize = 16

	// HashLen 条目名字的字符数
	HashLen = 26
)

var (
	b32format = base32.StdEncoding.WithPadding(base32.NoPadding)
	b64format = base64.RawURLEncoding
)

func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// entryHash 计算条目文本的名字
func entryHash(text string) string {
	return b32format.EncodeToString(keccak256([]byte(text))[:hashAbbrevSize])
}

// IsHash 判断 name 是否为合法的条目名字（大小写不敏感）
func IsHash(name string) bool {
	if len(name) != HashLen {
		return false
	}
	buf := make([]byte, b32format.DecodedLen(HashLen))
	_, err := b32format.Decode(buf, []byte(strings.ToUpper(name)))
	return err == nil
}

// IsEntryName 判断记录名是否属于发现树（根或条目哈希）
func IsEntryName(name string) bool {
	return name == rootName || IsHash(name)
}

// bucketOf 返回哈希所在的桶序号
func bucketOf(hash string, buckets int) int {
	raw, err := b32format.DecodeString(hash)
	if err != nil || len(raw) < 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(raw[:8]) % uint64(buckets))
}
