// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は上流サイトや利用者から受け取ったテキストから
// HTMLタグと制御文字を取り除き、表示・保存に安全なプレーンテキストへ変換する。
// bluemondayのStrictPolicy（全タグ除去）を使用する。
package security

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// ContentSanitizerService はテキストのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// PlainText はHTMLタグを除去し、実体参照を展開し、空白を1つに詰めた文字列を返す。
	PlainText(raw string) string

	// StripControl は制御文字を除去する。keepNewlinesがtrueの場合は改行とタブを残す。
	StripControl(raw string, keepNewlines bool) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// defaultSanitizer はパッケージ関数から利用する共有インスタンス。
var defaultSanitizer = NewContentSanitizer()

// PlainText はデフォルトのサニタイザでHTMLをプレーンテキストに変換する。
func PlainText(raw string) string {
	return defaultSanitizer.PlainText(raw)
}

// StripControl はデフォルトのサニタイザで制御文字を除去する。
func StripControl(raw string, keepNewlines bool) string {
	return defaultSanitizer.StripControl(raw, keepNewlines)
}

// PlainText はHTMLタグを除去したプレーンテキストを返す。
// bluemondayは残したテキストをエスケープするため、最後に実体参照を展開する。
func (s *contentSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	unescaped := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(unescaped), " ")
}

// StripControl は制御文字（U+0000-U+001F, U+007F-U+009F）を除去する。
func (s *contentSanitizer) StripControl(raw string, keepNewlines bool) string {
	return strings.Map(func(r rune) rune {
		if keepNewlines && (r == '\n' || r == '\t') {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
}
