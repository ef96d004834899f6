package security

import (
	"strings"
	"testing"
)

// TestSanitize_ArticleElements は記事向けのタグが通過することを検証する。
func TestSanitize_ArticleElements(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "見出しが許可される",
			input:        "<h2>はじめに</h2><h3>背景</h3>",
			wantContains: []string{"<h2>はじめに</h2>", "<h3>背景</h3>"},
		},
		{
			name:         "段落と装飾が許可される",
			input:        "<p><strong>太字</strong><em>斜体</em><u>下線</u><s>取消</s></p>",
			wantContains: []string{"<strong>太字</strong>", "<em>斜体</em>", "<u>下線</u>", "<s>取消</s>"},
		},
		{
			name:         "表が許可される",
			input:        `<table><thead><tr><th>項目</th></tr></thead><tbody><tr><td colspan="2">値</td></tr></tbody></table>`,
			wantContains: []string{"<table>", "<thead>", "<th>項目</th>", `<td colspan="2">値</td>`, "</table>"},
		},
		{
			name:         "コードブロックの言語クラスが保持される",
			input:        `<pre><code class="language-go">package main</code></pre>`,
			wantContains: []string{`<code class="language-go">`},
		},
		{
			name:         "相対リンクが許可される",
			input:        `<a href="/blog/other-post">関連記事</a>`,
			wantContains: []string{`href="/blog/other-post"`, "関連記事"},
		},
		{
			name:         "https画像が許可される",
			input:        `<img src="https://cdn.example.com/a.png" alt="図1">`,
			wantContains: []string{`src="https://cdn.example.com/a.png"`, `alt="図1"`},
		},
		{
			name:         "base64画像が許可される",
			input:        `<img src="data:image/png;base64,iVBORw0KGgo=">`,
			wantContains: []string{`src="data:image/png;base64,iVBORw0KGgo="`},
		},
		{
			name:         "図版とキャプションが許可される",
			input:        `<figure><img src="https://example.com/x.jpg"><figcaption>説明</figcaption></figure>`,
			wantContains: []string{"<figure>", "<figcaption>説明</figcaption>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_RemovesDangerousContent は危険な要素と属性が除去されることを検証する。
func TestSanitize_RemovesDangerousContent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name       string
		input      string
		wantAbsent []string
	}{
		{"scriptタグ", `<p>本文</p><script>alert(1)</script>`, []string{"<script", "alert(1)"}},
		{"iframeタグ", `<iframe src="https://evil.example.com"></iframe>`, []string{"<iframe"}},
		{"styleタグ", `<style>body{display:none}</style>`, []string{"<style", "display:none"}},
		{"onclick属性", `<p onclick="steal()">本文</p>`, []string{"onclick", "steal()"}},
		{"onerror属性", `<img src="https://example.com/a.png" onerror="alert(1)">`, []string{"onerror"}},
		{"javascriptリンク", `<a href="javascript:alert(1)">x</a>`, []string{"javascript:"}},
		{"任意のクラス", `<code class="evil">x</code>`, []string{"evil"}},
		{"data URIのHTML", `<img src="data:text/html;base64,PHNjcmlwdD4=">`, []string{"data:text/html"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, bad := range tt.wantAbsent {
				if strings.Contains(got, bad) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, bad)
				}
			}
		})
	}
}

// TestSanitize_ExternalLinks は外部リンクにtargetとrelが付与されることを検証する。
func TestSanitize_ExternalLinks(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<a href="https://example.com" target="_self" rel="nofollow">外部</a>`)
	for _, want := range []string{`target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize() = %q, expected to contain %q", got, want)
		}
	}
	if strings.Contains(got, `target="_self"`) {
		t.Errorf("Sanitize() = %q, should NOT contain target=\"_self\"", got)
	}
}

// TestSanitize_EmptyAndPlainText は空文字列とプレーンテキストの扱いを検証する。
func TestSanitize_EmptyAndPlainText(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, expected empty string", got)
	}

	plain := "これはプレーンテキストです。"
	if got := sanitizer.Sanitize(plain); got != plain {
		t.Errorf("Sanitize(%q) = %q, expected unchanged", plain, got)
	}
}

// TestSanitize_Idempotent は二重サニタイズで結果が変わらないことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<h2>見出し</h2><p>本文<strong>太字</strong></p><a href="https://example.com">リンク</a><table><tr><td>1</td></tr></table>`

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)
	if first != second {
		t.Errorf("二重サニタイズで結果が変わった: 1回目=%q, 二重=%q", first, second)
	}
}
