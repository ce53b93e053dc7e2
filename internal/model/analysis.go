package model

import "time"

// Platform は解析対象のSNSプラットフォームを表す。
type Platform string

const (
	// PlatformInstagram はInstagramを表す。
	PlatformInstagram Platform = "instagram"
	// PlatformTwitter はTwitter（X）を表す。
	PlatformTwitter Platform = "twitter"
)

// ParsePlatform は文字列をPlatformに変換する。
// 未知の値の場合はfalseを返す。
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(s) {
	case PlatformInstagram, PlatformTwitter:
		return Platform(s), true
	default:
		return "", false
	}
}

// MaxRecentPosts はスナップショットに保持する直近投稿の最大件数。
const MaxRecentPosts = 3

// Post はプロフィールの直近投稿1件を表す。
type Post struct {
	ImageURL string `json:"src" firestore:"src"`
	Caption  string `json:"alt" firestore:"alt"`
}

// Snapshot は1ユーザー分のプロフィール取得結果を表す。
// 解析リクエストごとに新しく取得され、キャッシュされない。
type Snapshot struct {
	// Followers はフォロワー数（整数の文字列表現）。
	Followers       string `json:"followers" firestore:"followers"`
	Posts           []Post `json:"posts" firestore:"posts"`
	Bio             string `json:"bio,omitempty" firestore:"bio,omitempty"`
	ProfilePic      string `json:"profilePic,omitempty" firestore:"profilePic,omitempty"`
	InstagramUserID string `json:"instagramUserId,omitempty" firestore:"instagramUserId,omitempty"`
}

// Analysis は1回の相性診断リクエストとその2つのスナップショットを表す。
// 作成後は変更されない。削除はデータ削除Webhook経由のみ。
type Analysis struct {
	ID             string    `json:"id" firestore:"-"`
	Platform       Platform  `json:"platform" firestore:"platform"`
	Profile1       string    `json:"profile1" firestore:"profile1"`
	Profile2       string    `json:"profile2" firestore:"profile2"`
	RequesterEmail string    `json:"email" firestore:"email"`
	Profile1Data   Snapshot  `json:"profile1Data" firestore:"profile1Data"`
	Profile2Data   Snapshot  `json:"profile2Data" firestore:"profile2Data"`
	CreatedAt      time.Time `json:"createdAt" firestore:"createdAt"`
}
