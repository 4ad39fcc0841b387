package dnstree

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/dep2p/go-dnspub/pkg/types"
)

// leafKeyInfo HKDF info，区分密钥用途
const leafKeyInfo = "dnspub private leaf v1"

// LeafCipher 私有叶子的对称加密
//
// 使用 XChaCha20-Poly1305，nonce 由 HMAC-SHA256(明文) 派生，
// 同一明文总是得到同一密文，保证树的确定性。
type LeafCipher struct {
	aead   cipher.AEAD
	macKey []byte
}

// NewLeafCipher 从共享密钥派生加密密钥
func NewLeafCipher(secret []byte) (*LeafCipher, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty shared secret", ErrInvalidInput)
	}

	keys := make([]byte, chacha20poly1305.KeySize+sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(leafKeyInfo)), keys); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(keys[:chacha20poly1305.KeySize])
	if err != nil {
		return nil, err
	}
	return &LeafCipher{aead: aead, macKey: keys[chacha20poly1305.KeySize:]}, nil
}

// EncodeNode 编码并加密节点记录为 pnode:<base32>
func (c *LeafCipher) EncodeNode(r types.NodeRecord) (string, error) {
	plain, err := marshalNode(r)
	if err != nil {
		return "", err
	}
	return privateNodePrefix + b32format.EncodeToString(c.seal(plain)), nil
}

// DecodeNode 解密并解析 pnode:<base32>
func (c *LeafCipher) DecodeNode(text string) (types.NodeRecord, error) {
	if !strings.HasPrefix(text, privateNodePrefix) {
		return types.NodeRecord{}, fmt.Errorf("%w: missing %q prefix", ErrDecode, privateNodePrefix)
	}
	sealed, err := b32format.DecodeString(strings.TrimPrefix(text, privateNodePrefix))
	if err != nil {
		return types.NodeRecord{}, fmt.Errorf("%w: bad base32: %v", ErrDecode, err)
	}
	plain, err := c.open(sealed)
	if err != nil {
		return types.NodeRecord{}, err
	}
	return unmarshalNode(plain)
}

func (c *LeafCipher) seal(plain []byte) []byte {
	mac := hmac.New(sha256.New, c.macKey)
	mac.Write(plain)
	nonce := mac.Sum(nil)[:chacha20poly1305.NonceSizeX]

	out := make([]byte, len(nonce), len(nonce)+len(plain)+c.aead.Overhead())
	copy(out, nonce)
	return c.aead.Seal(out, nonce, plain, nil)
}

func (c *LeafCipher) open(sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: sealed leaf too short", ErrDecode)
	}
	nonce, ct := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plain, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open private leaf", ErrDecode)
	}
	return plain, nil
}
