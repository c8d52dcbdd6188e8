// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は日ごとの説明文を公開用のHTMLに変換する。
// 説明文はプレーンテキストとして入力どおりに保存し、公開レスポンスを組み立てる時点で
// エスケープとbluemondayの許可リストポリシーを通したHTMLを別フィールドとして返す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は説明文サニタイズのインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize は説明文をサニタイズして安全なHTMLを返す。
	// 許可タグ（p, br, a, ul, ol, li, strong, em, b, i）のみを通過させる。
	// aタグのhrefはhttp, https, mailtoのみ許可し、rel="noopener noreferrer"と
	// target="_blank"を付与する。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
	// RenderText はプレーンテキストをHTMLエスケープし、改行を<br>に変換した安全なHTMLを返す。
	// 入力中のタグ風の文字列は除去せず文字として表示される。
	RenderText(text string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// script, iframe, style等は許可リストに含めないことで除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "b", "i",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize は説明文をサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return s.policy.Sanitize(raw)
}

// lineBreaks はCRLF・CRをLFに揃える。
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// RenderText はプレーンテキストの説明文を表示用のHTMLに変換する。
func (s *contentSanitizer) RenderText(text string) string {
	if text == "" {
		return ""
	}
	escaped := html.EscapeString(lineBreaks.Replace(text))
	return s.Sanitize(strings.ReplaceAll(escaped, "\n", "<br>"))
}
