// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はセッションのトピック・タイトル・場所・コメントなど
// ユーザーが入力したテキストをサニタイズし、保存前にXSSの原因となるマークアップを取り除く。
// bluemondayライブラリの許可リストベースのポリシーを使用する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は簡単な書式タグのみを残したHTMLを返す。
	// 許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em）以外と
	// on*イベント属性を除去する。aタグにはtarget="_blank"とrel="noopener noreferrer"が付与される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string

	// StripTags はすべてのタグを除去したプレーンテキストを返す。
	StripTags(raw string) string
}

// textSanitizer はTextSanitizerの実装。ポリシーはスレッドセーフ。
type textSanitizer struct {
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	p := bluemonday.NewPolicy()

	// script, iframe, style などは許可リストに含めないことで除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	// リンクはhttp/httpsの絶対URLのみ
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &textSanitizer{
		rich:   p,
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLテキストをサニタイズして安全なHTMLを返す。
func (s *textSanitizer) Sanitize(rawHTML string) string {
	return s.rich.Sanitize(rawHTML)
}

// StripTags はタグを除去し、エスケープされた文字を元に戻したテキストを返す。
// 結果はHTMLとして解釈しないフィールドにのみ保存すること。
func (s *textSanitizer) StripTags(raw string) string {
	return html.UnescapeString(s.strict.Sanitize(raw))
}
