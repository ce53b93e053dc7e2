// Package scrape は2人分のプロフィールを取得するパイプラインを提供する。
// ヘッドレスブラウザによる公開ページの取得と、ログイン済みユーザーのGraph API経由の取得に対応する。
package scrape

import (
	"regexp"
	"strings"

	"github.com/hitoshi/flagfinder/internal/model"
)

// usernamePattern は許可するユーザー名の形式。
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)

// Request は取得リクエストの入力。
type Request struct {
	Platform string `json:"platform"`
	Profile1 string `json:"profile1"`
	Profile2 string `json:"profile2"`
}

// Validated は検証・正規化済みの取得リクエスト。
type Validated struct {
	Platform model.Platform
	Profile1 string
	Profile2 string
}

// Validate はプラットフォームとユーザー名を検証する。
// ネットワークやブラウザを使う処理より前に呼び出す。
func (r Request) Validate() (*Validated, *model.APIError) {
	raw := strings.ToLower(strings.TrimSpace(r.Platform))
	platform, ok := model.ParsePlatform(raw)
	if !ok {
		return nil, model.NewInvalidPlatformError(raw)
	}

	p1 := NormalizeUsername(r.Profile1)
	p2 := NormalizeUsername(r.Profile2)
	if p1 == "" || p2 == "" {
		return nil, model.NewMissingProfileError()
	}
	for _, u := range []string{p1, p2} {
		if !usernamePattern.MatchString(u) {
			return nil, model.NewInvalidUsernameError(u)
		}
	}

	return &Validated{Platform: platform, Profile1: p1, Profile2: p2}, nil
}

// NormalizeUsername は前後の空白と先頭の@を取り除く。
func NormalizeUsername(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "@")
	return strings.TrimSpace(s)
}

// ProfileURL はプラットフォームごとの公開プロフィールURLを返す。
func ProfileURL(platform model.Platform, username string) string {
	switch platform {
	case model.PlatformTwitter:
		return "https://x.com/" + username
	default:
		return "https://www.instagram.com/" + username + "/"
	}
}
