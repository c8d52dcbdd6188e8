package storage

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FallbackFilename はサニタイズの結果が空になった場合に使用する表示名。
const FallbackFilename = "archivo"

// maxFilenameLen は保存名に含めるサニタイズ済みファイル名の最大バイト数。
// UUIDとプレフィックスを加えてもファイルシステムの255バイト制限に収まる長さ。
const maxFilenameLen = 200

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename はユーザーが指定したファイル名から安全な表示名を生成する。
//
//   - NFKD正規化したうえでASCII以外の文字を除去する（"capítulo" → "capitulo"）
//   - パス区切り文字は空白として扱い、ディレクトリ成分を無効化する
//   - 空白の連続は "_" で連結し、[A-Za-z0-9_.-] 以外の文字を除去する
//   - 先頭・末尾の "." と "_" を除去する（"../" や隠しファイル名を防ぐ）
//
// 結果が空の場合は FallbackFilename を返す。
func SanitizeFilename(name string) string {
	decomposed := norm.NFKD.String(name)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r <= unicode.MaxASCII {
			b.WriteRune(r)
		}
	}

	s := strings.NewReplacer("/", " ", `\`, " ").Replace(b.String())
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "._")
	s = truncateFilename(s)

	if s == "" {
		return FallbackFilename
	}
	return s
}

// truncateFilename は拡張子を残しつつ長すぎるファイル名を切り詰める。
func truncateFilename(s string) string {
	if len(s) <= maxFilenameLen {
		return s
	}
	ext := filepath.Ext(s)
	if len(ext) > 16 {
		ext = ""
	}
	base := strings.TrimSuffix(s, ext)
	base = base[:maxFilenameLen-len(ext)]
	return strings.Trim(base, "._") + ext
}
