// Package instagram はInstagram Graph APIのクライアントを提供する。
// ログイン済みユーザーのアクセストークンでプロフィールと直近の投稿を取得する。
package instagram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultBaseURL はGraph APIのデフォルトのベースURL。
	DefaultBaseURL = "https://graph.instagram.com"

	profileFields = "id,username,followers_count,biography,profile_picture_url"
	mediaFields   = "id,caption,media_url,thumbnail_url,media_type"
)

// ErrUserNotFound はユーザー検索で該当者がいない場合のエラー。
var ErrUserNotFound = errors.New("instagram user not found")

// APIError はGraph APIが成功以外のステータスを返した場合のエラー。
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("instagram graph api returned status %d: %s", e.StatusCode, e.Body)
}

// Profile はGraph APIのユーザーフィールド。
type Profile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	FollowersCount    int64  `json:"followers_count"`
	Biography         string `json:"biography"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// Media はGraph APIのメディア1件。
type Media struct {
	ID           string `json:"id"`
	Caption      string `json:"caption"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url"`
	MediaType    string `json:"media_type"`
}

// DisplayURL は画像として表示するURLを返す。動画はサムネイルを優先する。
func (m Media) DisplayURL() string {
	if m.MediaType == "VIDEO" && m.ThumbnailURL != "" {
		return m.ThumbnailURL
	}
	if m.MediaURL != "" {
		return m.MediaURL
	}
	return m.ThumbnailURL
}

type searchResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type mediaResponse struct {
	Data []Media `json:"data"`
}

// Client はGraph APIのクライアント。
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient はClientを生成する。
// httpClientにはSSRFガード付きのクライアントを渡すことを想定している。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "FlagFinder/1.0")

	return &Client{http: r, logger: logger}
}

// SearchUser はユーザー名でユーザーを検索し、IDを返す。
// ユーザー名が完全一致（大文字小文字無視）する結果を優先し、なければ先頭を返す。
func (c *Client) SearchUser(ctx context.Context, accessToken, username string) (string, error) {
	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":            username,
			"access_token": accessToken,
		}).
		SetResult(&out).
		Get("/users/search")
	if err := c.check(resp, err, "search"); err != nil {
		return "", err
	}

	if len(out.Data) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	for _, u := range out.Data {
		if strings.EqualFold(u.Username, username) && u.ID != "" {
			return u.ID, nil
		}
	}
	if out.Data[0].ID == "" {
		return "", fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return out.Data[0].ID, nil
}

// GetProfile は指定IDのプロフィールフィールドを取得する。
func (c *Client) GetProfile(ctx context.Context, accessToken, userID string) (*Profile, error) {
	var out Profile
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", userID).
		SetQueryParams(map[string]string{
			"fields":       profileFields,
			"access_token": accessToken,
		}).
		SetResult(&out).
		Get("/{id}")
	if err := c.check(resp, err, "profile"); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = userID
	}
	return &out, nil
}

// GetRecentMedia は指定IDの直近の投稿を最大limit件取得する。
func (c *Client) GetRecentMedia(ctx context.Context, accessToken, userID string, limit int) ([]Media, error) {
	var out mediaResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", userID).
		SetQueryParams(map[string]string{
			"fields":       mediaFields,
			"limit":        strconv.Itoa(limit),
			"access_token": accessToken,
		}).
		SetResult(&out).
		Get("/{id}/media")
	if err := c.check(resp, err, "media"); err != nil {
		return nil, err
	}
	if len(out.Data) > limit {
		out.Data = out.Data[:limit]
	}
	return out.Data, nil
}

// check は通信エラーと成功以外のステータスをエラーに変換する。
// アクセストークンを含むURLはログに出さない。
func (c *Client) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		// url.ErrorはクエリのアクセストークンごとURLを含むため内側のエラーだけを残す
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		c.logger.Warn("instagram graph api request failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("instagram %s request failed: %w", op, err)
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		c.logger.Warn("instagram graph api returned error status",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode()),
		)
		return &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
