package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は許可タグが正しく通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "pタグが許可される",
			input:        "<p>Bienvenida al taller</p>",
			wantContains: []string{"<p>Bienvenida al taller</p>"},
		},
		{
			name:         "brタグが許可される",
			input:        "Parte 1<br>Parte 2",
			wantContains: []string{"<br", "Parte 1", "Parte 2"},
		},
		{
			name:         "リストが許可される",
			input:        "<ul><li>Uno</li><li>Dos</li></ul>",
			wantContains: []string{"<ul>", "<li>Uno</li>", "<li>Dos</li>", "</ul>"},
		},
		{
			name:         "強調が許可される",
			input:        "<strong>Importante</strong> y <em>nota</em>",
			wantContains: []string{"<strong>Importante</strong>", "<em>nota</em>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, want to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenContent は危険なタグや属性が除去されることを検証する。
func TestSanitize_ForbiddenContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name        string
		input       string
		notContains []string
	}{
		{"scriptタグ", `<script>alert('xss')</script>Hola`, []string{"<script", "alert("}},
		{"iframeタグ", `<iframe src="https://evil.example"></iframe>`, []string{"<iframe"}},
		{"styleタグ", `<style>body{display:none}</style>`, []string{"<style", "display:none"}},
		{"onイベント属性", `<p onclick="alert(1)">x</p>`, []string{"onclick"}},
		{"imgタグ", `<img src="https://example.com/a.png">`, []string{"<img"}},
		{"javascriptスキーム", `<a href="javascript:alert(1)">x</a>`, []string{"javascript:"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, bad := range tt.notContains {
				if strings.Contains(got, bad) {
					t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, got, bad)
				}
			}
		})
	}
}

// TestSanitize_AnchorAttributes はリンクに安全な属性が付与されることを検証する。
func TestSanitize_AnchorAttributes(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<a href="https://example.org/guia">Guía</a>`)

	for _, want := range []string{`href="https://example.org/guia"`, `target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize() = %q, want to contain %q", got, want)
		}
	}
}

func TestSanitize_EmptyInput(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want empty", got)
	}
}

// TestSanitize_PlainText はタグを含まない説明文が変化しないことを検証する。
func TestSanitize_PlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := "Introducción al módulo\nTraer cuaderno"
	if got := sanitizer.Sanitize(input); got != input {
		t.Errorf("Sanitize(%q) = %q, want unchanged", input, got)
	}
}

// TestSanitize_Idempotent は2回サニタイズしても結果が変わらないことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	inputs := []string{
		`<p>Hola <a href="https://example.org">enlace</a></p><script>x</script>`,
		"A & B < C",
		"<ul><li>Uno</li></ul>",
	}
	for _, input := range inputs {
		once := sanitizer.Sanitize(input)
		twice := sanitizer.Sanitize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

// TestRenderText はプレーンテキストの記号やタグ風の文字列が失われずエスケープされることを検証する。
func TestRenderText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"空文字列", "", ""},
		{"記号なし", "Traer cuaderno", "Traer cuaderno"},
		{"アンパサンド", "Tom & Jerry", "Tom &amp; Jerry"},
		{"不等号", "si a < b entonces", "si a &lt; b entonces"},
		{"タグ風の文字列", "Usar <código> en clase", "Usar &lt;código&gt; en clase"},
		{"scriptタグは実行されない", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"改行", "uno\r\ndos\rtres", "uno<br>dos<br>tres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.RenderText(tt.input); got != tt.want {
				t.Errorf("RenderText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestContentSanitizerInterface(t *testing.T) {
	var _ ContentSanitizerService = NewContentSanitizer()
}
