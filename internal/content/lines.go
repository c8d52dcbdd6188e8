package content

import "strings"

// ParseLines は複数行テキストを前後の空白を除いた空でない行の列に分解する。
// 行区切りはLF・CR・CRLFに加えてVT, FF, FS, GS, RS, NEL, U+2028, U+2029を認める。
// 重複行はそのまま残す。結果はnilではなく空スライスになる。
func ParseLines(text string) []string {
	lines := []string{}
	for _, line := range strings.FieldsFunc(text, isLineBreak) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// JoinLines は行の列を編集フォーム用の改行区切りテキストに戻す。
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
