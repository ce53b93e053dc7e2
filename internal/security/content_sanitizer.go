package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は取得したプロフィール内容を保存前に無害化するインターフェース。
type ContentSanitizerService interface {
	// SanitizeText はすべてのHTMLタグを除去したプレーンテキストを返す。
	SanitizeText(raw string) string
	// SanitizeImageURL はhttpsの画像URLのみを返し、それ以外は空文字列を返す。
	SanitizeImageURL(raw string) string
}

// ContentSanitizer はbluemondayのStrictPolicyによるContentSanitizerServiceの実装。
// ポリシーはスレッドセーフなので1つを共有する。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
func NewContentSanitizer() *ContentSanitizer {
	return &ContentSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はタグを除去し、エンティティを戻したプレーンテキストを返す。
// 出力時のエスケープはテンプレートとJSONエンコーダに任せる。
func (s *ContentSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// SanitizeImageURL はhttpsスキームかつホストを持つURLのみを許可する。
func (s *ContentSanitizer) SanitizeImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return ""
	}
	return u.String()
}
