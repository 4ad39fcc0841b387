package dnstree

import "errors"

// 预定义错误
var (
	// ErrEncode 节点记录无法编码（空 ID、无地址、端口为 0）
	ErrEncode = errors.New("dnstree: cannot encode node record")

	// ErrDecode 条目文本格式错误
	ErrDecode = errors.New("dnstree: malformed entry")

	// ErrTreeTooLarge 单个条目超过记录长度上限
	ErrTreeTooLarge = errors.New("dnstree: entry exceeds max record size")

	// ErrInvalidInput 构建输入无效（节点与链接都为空等）
	ErrInvalidInput = errors.New("dnstree: invalid input")

	// ErrInvalidSignature 根记录签名无效
	ErrInvalidSignature = errors.New("dnstree: invalid root signature")

	// ErrMissingEntry 引用的条目不存在
	ErrMissingEntry = errors.New("dnstree: missing entry")

	// ErrHashMismatch 条目内容与其名字哈希不符
	ErrHashMismatch = errors.New("dnstree: entry hash mismatch")

	// ErrInvalidURL 无效的 tree:// 链接
	ErrInvalidURL = errors.New("dnstree: invalid tree URL")
)
