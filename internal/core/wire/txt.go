package wire

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-zeroconf/pkg/types"
)

// MaxTxtStringLength 单个 TXT 字符串最大字节数
const MaxTxtStringLength = 255

// EncodeTxt 将 TXT 属性编码为 dns.TXT 的字符串列表
//
// 空属性集编码为单个空字符串（RFC 6763 §6.1）。
// 返回的字符串已按 miekg/dns 的规则转义。
func EncodeTxt(txt types.TxtRecords) ([]string, error) {
	if len(txt) == 0 {
		return []string{""}, nil
	}
	out := make([]string, 0, len(txt))
	for _, rec := range txt {
		if err := ValidateTxtKey(rec.Key); err != nil {
			return nil, err
		}
		s := rec.String()
		if len(s) > MaxTxtStringLength {
			return nil, fmt.Errorf("%w: key %q", ErrTxtTooLong, rec.Key)
		}
		out = append(out, escapeTxt(s))
	}
	return out, nil
}

// DecodeTxt 将 dns.TXT 的字符串列表解码为 TXT 属性
//
// 同一个键出现多次时保留最后的值。
func DecodeTxt(ss []string) types.TxtRecords {
	raw := make([]string, 0, len(ss))
	for _, s := range ss {
		raw = append(raw, unescapeTxt(s))
	}
	return types.TxtFromStrings(raw)
}

// ValidateTxtKey 检查 TXT 键：非空且不含 '='
func ValidateTxtKey(key string) error {
	if key == "" {
		return types.ErrEmptyTxtKey
	}
	if strings.ContainsRune(key, '=') {
		return fmt.Errorf("%w: %q", types.ErrInvalidTxtKey, key)
	}
	return nil
}

// escapeTxt 转义反斜杠，打包时 miekg/dns 会还原
func escapeTxt(s string) string {
	return strings.ReplaceAll(s, `\`, `\\`)
}

// unescapeTxt 还原解包时生成的 \X 与 \DDD
func unescapeTxt(s string) string {
	return UnescapeLabel(s)
}
