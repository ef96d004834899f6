// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は編集者が入力した記事本文のHTMLをサニタイズし、
// 公開ページでのXSSを防ぐ。bluemondayの許可リストベースのポリシーで、
// 記事の表現に必要なタグと属性のみを通過させる。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
// 記事の作成・更新時、保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

var codeLanguageClass = regexp.MustCompile(`^language-[a-zA-Z0-9_+-]+$`)

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに使用できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は記事本文用のポリシーを構築する。
// ポリシーの内容:
//   - 見出し、段落、リスト、引用、コード、表、図版などの記事向けタグを許可
//   - script, iframe, style および全てのon*イベント属性は除去
//   - リンク: http/https/mailtoと相対URLを許可し、外部リンクにtarget="_blank"とrelを付与
//   - img: http/httpsのsrcとbase64のdata URI画像を許可
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "b", "em", "i", "u", "s", "del", "sub", "sup",
		"figure", "figcaption",
		"table", "thead", "tbody", "tfoot", "tr", "caption",
	)
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("th", "td")
	p.AllowElements("th", "td")
	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code")

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("width", "height").Matching(bluemonday.NumberOrPercent).OnElements("img")
	p.AllowDataURIImages()

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
