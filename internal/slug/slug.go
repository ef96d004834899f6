// Package slug はタイトルや名前からURL用のスラッグを生成する。
package slug

import (
	"strings"

	"github.com/google/uuid"
)

// Make は文字列を小文字化し、[a-z0-9]以外の連続を1つのハイフンに置き換える。
// 先頭と末尾のハイフンは取り除く。ASCII英数字を含まない場合は空文字列を返す。
func Make(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	pending := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// MakeOrFallback はMakeの結果が空の場合にprefixとランダムな接尾辞からスラッグを作る。
// 日本語のみのタイトルなどで使用する。
func MakeOrFallback(s, prefix string) string {
	if v := Make(s); v != "" {
		return v
	}
	return prefix + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}
