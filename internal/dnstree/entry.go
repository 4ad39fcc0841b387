package dnstree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	pkgif "github.com/dep2p/go-dnspub/pkg/interfaces"
	"github.com/dep2p/go-dnspub/pkg/types"
)

// 条目前缀
const (
	rootPrefix        = "tree-root-v1:"
	branchPrefix      = "tree-branch:"
	linkPrefix        = "tree://"
	nodePrefix        = "node:"
	privateNodePrefix = "pnode:"

	rootName = pkgif.RootName

	// compactSigSize 可恢复签名长度：恢复码 + R + S
	compactSigSize = 65
)

// Entry 发现树中的一个条目
//
// 具体类型为 *RootEntry、*BranchEntry、*LeafEntry 或 *LinkEntry。
type Entry interface {
	fmt.Stringer
	entry()
}

// ============================================================================
//                              RootEntry
// ============================================================================

// RootEntry 根条目：指向唯一的顶层哈希，带序号和签名
type RootEntry struct {
	E   string
	Seq uint64
	Sig []byte
}

func (*RootEntry) entry() {}

func (r *RootEntry) signingText() string {
	return fmt.Sprintf("%se=%s seq=%d", rootPrefix, r.E, r.Seq)
}

// String 返回根条目文本
func (r *RootEntry) String() string {
	return r.signingText() + " sig=" + b64format.EncodeToString(r.Sig)
}

// sign 使用私钥对 (e, seq) 签名
func (r *RootEntry) sign(key *secp256k1.PrivateKey) {
	r.Sig = ecdsa.SignCompact(key, keccak256([]byte(r.signingText())), false)
}

// Signer 从签名恢复出签名者公钥
func (r *RootEntry) Signer() (*secp256k1.PublicKey, error) {
	pub, _, err := ecdsa.RecoverCompact(r.Sig, keccak256([]byte(r.signingText())))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return pub, nil
}

// Verify 检查根条目是否由 pub 签名
func (r *RootEntry) Verify(pub *secp256k1.PublicKey) bool {
	signer, err := r.Signer()
	return err == nil && signer.IsEqual(pub)
}

// ParseRoot 解析根条目文本
func ParseRoot(text string) (*RootEntry, error) {
	if !strings.HasPrefix(text, rootPrefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrDecode, rootPrefix)
	}
	fields := strings.Fields(strings.TrimPrefix(text, rootPrefix))
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: root needs e, seq, sig", ErrDecode)
	}

	var (
		r   RootEntry
		err error
	)
	for i, key := range []string{"e=", "seq=", "sig="} {
		if !strings.HasPrefix(fields[i], key) {
			return nil, fmt.Errorf("%w: root field %d must start with %q", ErrDecode, i, key)
		}
		val := strings.TrimPrefix(fields[i], key)
		switch key {
		case "e=":
			if !IsHash(val) {
				return nil, fmt.Errorf("%w: invalid root hash %q", ErrDecode, val)
			}
			r.E = val
		case "seq=":
			if r.Seq, err = strconv.ParseUint(val, 10, 64); err != nil {
				return nil, fmt.Errorf("%w: invalid seq %q", ErrDecode, val)
			}
		case "sig=":
			if r.Sig, err = b64format.DecodeString(val); err != nil || len(r.Sig) != compactSigSize {
				return nil, fmt.Errorf("%w: invalid signature encoding", ErrDecode)
			}
		}
	}
	return &r, nil
}

// ============================================================================
//                              BranchEntry
// ============================================================================

// BranchEntry 分支条目：按字典序排列的子条目哈希
type BranchEntry struct {
	Children []string
}

func (*BranchEntry) entry() {}

// String 返回分支条目文本
func (b *BranchEntry) String() string {
	return branchPrefix + strings.Join(b.Children, ",")
}

func parseBranch(text string) (*BranchEntry, error) {
	body := strings.TrimPrefix(text, branchPrefix)
	if body == "" {
		return nil, fmt.Errorf("%w: empty branch", ErrDecode)
	}
	children := strings.Split(body, ",")
	for _, c := range children {
		if !IsHash(c) {
			return nil, fmt.Errorf("%w: invalid child hash %q", ErrDecode, c)
		}
	}
	return &BranchEntry{Children: children}, nil
}

// ============================================================================
//                              LeafEntry
// ============================================================================

// LeafEntry 叶子条目：一个节点记录
//
// 私有叶子的 Node 仅在持有共享密钥时可用。
type LeafEntry struct {
	Node    types.NodeRecord
	Private bool
	text    string
}

func (*LeafEntry) entry() {}

// String 返回叶子条目文本
func (l *LeafEntry) String() string {
	return l.text
}

// ============================================================================
//                              LinkEntry
// ============================================================================

// LinkEntry 链接条目：引用另一棵树的根
type LinkEntry struct {
	Domain string
	PubKey *secp256k1.PublicKey
}

func (*LinkEntry) entry() {}

// String 返回 tree://<key>@<domain>
func (l *LinkEntry) String() string {
	return linkPrefix + b32format.EncodeToString(l.PubKey.SerializeCompressed()) + "@" + l.Domain
}

// NewLink 构造链接条目
func NewLink(pub *secp256k1.PublicKey, domain string) (*LinkEntry, error) {
	if pub == nil || !validDomain(domain) {
		return nil, fmt.Errorf("%w: link needs key and domain", ErrInvalidURL)
	}
	return &LinkEntry{Domain: strings.TrimSuffix(domain, "."), PubKey: pub}, nil
}

// ParseLink 解析 tree://<key>@<domain>
func ParseLink(text string) (*LinkEntry, error) {
	if !strings.HasPrefix(text, linkPrefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidURL, linkPrefix)
	}
	keyPart, domain, ok := strings.Cut(strings.TrimPrefix(text, linkPrefix), "@")
	if !ok || !validDomain(domain) {
		return nil, fmt.Errorf("%w: expected tree://KEY@DOMAIN", ErrInvalidURL)
	}
	raw, err := b32format.DecodeString(keyPart)
	if err != nil {
		return nil, fmt.Errorf("%w: bad key encoding", ErrInvalidURL)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad public key: %v", ErrInvalidURL, err)
	}
	return &LinkEntry{Domain: strings.TrimSuffix(domain, "."), PubKey: pub}, nil
}

func validDomain(domain string) bool {
	domain = strings.TrimSuffix(domain, ".")
	return domain != "" && len(domain) <= 253 && !strings.ContainsAny(domain, " \t\r\n@/")
}

// ============================================================================
//                              解析
// ============================================================================

// ParseEntry 解析任意条目文本
//
// cipher 为 nil 时私有叶子解析失败（ErrDecode）。
func ParseEntry(text string, cipher *LeafCipher) (Entry, error) {
	switch {
	case strings.HasPrefix(text, rootPrefix):
		return ParseRoot(text)
	case strings.HasPrefix(text, branchPrefix):
		return parseBranch(text)
	case strings.HasPrefix(text, linkPrefix):
		l, err := ParseLink(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return l, nil
	case strings.HasPrefix(text, nodePrefix):
		rec, err := DecodeNode(text)
		if err != nil {
			return nil, err
		}
		return &LeafEntry{Node: rec, text: text}, nil
	case strings.HasPrefix(text, privateNodePrefix):
		if cipher == nil {
			return nil, fmt.Errorf("%w: private leaf needs shared secret", ErrDecode)
		}
		rec, err := cipher.DecodeNode(text)
		if err != nil {
			return nil, err
		}
		return &LeafEntry{Node: rec, Private: true, text: text}, nil
	default:
		return nil, fmt.Errorf("%w: unknown entry type", ErrDecode)
	}
}
