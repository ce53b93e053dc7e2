package scrape

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hitoshi/flagfinder/internal/instagram"
	"github.com/hitoshi/flagfinder/internal/model"
)

// GraphAPI はGraphFetcherが利用するInstagram Graph APIの操作。
type GraphAPI interface {
	SearchUser(ctx context.Context, accessToken, username string) (string, error)
	GetProfile(ctx context.Context, accessToken, userID string) (*instagram.Profile, error)
	GetRecentMedia(ctx context.Context, accessToken, userID string, limit int) ([]instagram.Media, error)
}

// GraphFetcher はログイン済みユーザーのアクセストークンでGraph APIから取得するFetcher。
type GraphFetcher struct {
	api GraphAPI
}

// NewGraphFetcher はGraphFetcherを生成する。
func NewGraphFetcher(api GraphAPI) *GraphFetcher {
	return &GraphFetcher{api: api}
}

// Supports はInstagramのみ対応する。
func (f *GraphFetcher) Supports(platform model.Platform) bool {
	return platform == model.PlatformInstagram
}

// Open はコンテキストのセッション認証情報を取り出す。
// 未ログインの場合はUNAUTHENTICATEDを返す。
func (f *GraphFetcher) Open(ctx context.Context) (Session, error) {
	cred, ok := model.CredentialFromContext(ctx)
	if !ok {
		return nil, model.NewUnauthenticatedError()
	}
	return &graphSession{api: f.api, token: cred.AccessToken}, nil
}

type graphSession struct {
	api   GraphAPI
	token string
}

// Fetch はユーザー検索、プロフィール、直近のメディアの順に取得してスナップショットを組み立てる。
func (s *graphSession) Fetch(ctx context.Context, platform model.Platform, username string) (*model.Snapshot, error) {
	if platform != model.PlatformInstagram {
		return nil, model.NewUnsupportedPlatformError(platform)
	}

	id, err := s.api.SearchUser(ctx, s.token, username)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", username, err)
	}
	profile, err := s.api.GetProfile(ctx, s.token, id)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", username, err)
	}
	media, err := s.api.GetRecentMedia(ctx, s.token, id, model.MaxRecentPosts)
	if err != nil {
		return nil, fmt.Errorf("media %s: %w", username, err)
	}

	snap := &model.Snapshot{
		Followers:       strconv.FormatInt(profile.FollowersCount, 10),
		Bio:             profile.Biography,
		ProfilePic:      profile.ProfilePictureURL,
		InstagramUserID: profile.ID,
		Posts:           make([]model.Post, 0, len(media)),
	}
	if snap.InstagramUserID == "" {
		snap.InstagramUserID = id
	}
	for _, m := range media {
		if len(snap.Posts) == model.MaxRecentPosts {
			break
		}
		snap.Posts = append(snap.Posts, model.Post{ImageURL: m.DisplayURL(), Caption: m.Caption})
	}
	return snap, nil
}

func (s *graphSession) Close() {}
