// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ExcerptBuilder はノート本文からカード表示用のプレーンテキスト抜粋を生成する。
// 本文に含まれるHTMLはbluemondayのStrictPolicyですべて除去し、
// クライアントがそのまま描画してもマークアップとして解釈されない文字列だけを返す。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultExcerptLength は抜粋の既定の最大文字数（rune数）。
const DefaultExcerptLength = 160

const ellipsis = "…"

// Excerpter は抜粋生成のインターフェース。
type Excerpter interface {
	// Excerpt は本文からタグを除去し、空白を正規化した最大長以内の抜粋を返す。
	// 空文字列の入力には空文字列を返す。
	Excerpt(content string) string
}

// ExcerptBuilder はExcerpterの実装。
// bluemondayのポリシーはスレッドセーフなため、複数のgoroutineから共有できる。
type ExcerptBuilder struct {
	policy   *bluemonday.Policy
	maxRunes int
}

// NewExcerptBuilder はExcerptBuilderを生成する。
// maxRunesが1未満の場合はDefaultExcerptLengthを使用する。
func NewExcerptBuilder(maxRunes int) *ExcerptBuilder {
	if maxRunes < 1 {
		maxRunes = DefaultExcerptLength
	}

	// StrictPolicyは全タグを除去し、script/style等は内容ごと捨てる
	p := bluemonday.StrictPolicy()
	// "<p>a</p><p>b</p>" が "ab" に潰れないようにする
	p.AddSpaceWhenStrippingTag(true)

	return &ExcerptBuilder{
		policy:   p,
		maxRunes: maxRunes,
	}
}

// Excerpt は本文の抜粋を返す。
// 最大長を超える場合は末尾を省略記号に置き換え、結果が最大長以内に収まるようにする。
func (b *ExcerptBuilder) Excerpt(content string) string {
	if content == "" {
		return ""
	}

	// bluemondayはテキストをHTMLエスケープして返すため、プレーンテキストに戻す
	text := html.UnescapeString(b.policy.Sanitize(content))
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= b.maxRunes {
		return text
	}

	runes := []rune(text)
	cut := strings.TrimRight(string(runes[:b.maxRunes-1]), " ")
	return cut + ellipsis
}
