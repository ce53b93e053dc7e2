package repository

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hitoshi/flagfinder/internal/model"
)

// Firestoreのスナップショット内ユーザーIDのフィールドパス
const (
	profile1UserIDPath = "profile1Data.instagramUserId"
	profile2UserIDPath = "profile2Data.instagramUserId"
)

// FirestoreAnalysisRepo はFirestoreのコレクションを使用した解析リポジトリ。
// ドキュメントIDはFirestoreが採番する。
type FirestoreAnalysisRepo struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreAnalysisRepo はFirestoreAnalysisRepoを生成する。
func NewFirestoreAnalysisRepo(client *firestore.Client, collection string) *FirestoreAnalysisRepo {
	return &FirestoreAnalysisRepo{client: client, collection: collection}
}

// Create は解析レコードを新しいドキュメントとして追加する。
func (r *FirestoreAnalysisRepo) Create(ctx context.Context, a *model.Analysis) (string, error) {
	ref, _, err := r.client.Collection(r.collection).Add(ctx, a)
	if err != nil {
		return "", fmt.Errorf("failed to add analysis document: %w", err)
	}
	return ref.ID, nil
}

// FindByID は指定IDのドキュメントを取得する。見つからない場合はnilを返す。
func (r *FirestoreAnalysisRepo) FindByID(ctx context.Context, id string) (*model.Analysis, error) {
	if !validDocumentID(id) {
		return nil, nil
	}

	snap, err := r.client.Collection(r.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis document: %w", err)
	}

	a := &model.Analysis{}
	if err := snap.DataTo(a); err != nil {
		return nil, fmt.Errorf("failed to decode analysis document: %w", err)
	}
	a.ID = snap.Ref.ID

	return a, nil
}

// DeleteByProfile1InstagramUserID は1人目のスナップショットが指定ユーザーIDを含むドキュメントを削除する。
func (r *FirestoreAnalysisRepo) DeleteByProfile1InstagramUserID(ctx context.Context, instagramUserID string) (int, error) {
	return r.deleteWhere(ctx, profile1UserIDPath, instagramUserID)
}

// DeleteByProfile2InstagramUserID は2人目のスナップショットが指定ユーザーIDを含むドキュメントを削除する。
func (r *FirestoreAnalysisRepo) DeleteByProfile2InstagramUserID(ctx context.Context, instagramUserID string) (int, error) {
	return r.deleteWhere(ctx, profile2UserIDPath, instagramUserID)
}

func (r *FirestoreAnalysisRepo) deleteWhere(ctx context.Context, path, instagramUserID string) (int, error) {
	if instagramUserID == "" {
		return 0, nil
	}

	docs, err := r.client.Collection(r.collection).
		Where(path, "==", instagramUserID).
		Documents(ctx).
		GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to query analyses by %s: %w", path, err)
	}

	deleted := 0
	for _, doc := range docs {
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return deleted, fmt.Errorf("failed to delete analysis %s: %w", doc.Ref.ID, err)
		}
		deleted++
	}

	return deleted, nil
}

// PingContext はコレクションを1件読み出してFirestoreへの疎通を確認する。
func (r *FirestoreAnalysisRepo) PingContext(ctx context.Context) error {
	if _, err := r.client.Collection(r.collection).Limit(1).Documents(ctx).GetAll(); err != nil {
		return fmt.Errorf("failed to reach firestore: %w", err)
	}
	return nil
}

// validDocumentID はFirestoreのドキュメントIDとして使える文字列かを判定する。
func validDocumentID(id string) bool {
	if id == "" || id == "." || id == ".." || len(id) > 1500 {
		return false
	}
	if strings.Contains(id, "/") {
		return false
	}
	return !(strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__"))
}
