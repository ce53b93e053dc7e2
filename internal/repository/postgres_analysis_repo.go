package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/flagfinder/internal/model"
)

// PostgresAnalysisRepo はPostgreSQLを使用した解析リポジトリ。
// スナップショットはJSONBカラムに保存し、Firestoreと同じドキュメント形状を保つ。
type PostgresAnalysisRepo struct {
	db *sql.DB
}

// NewPostgresAnalysisRepo はPostgresAnalysisRepoを生成する。
func NewPostgresAnalysisRepo(db *sql.DB) *PostgresAnalysisRepo {
	return &PostgresAnalysisRepo{db: db}
}

// Create は解析レコードを保存する。IDはgen_random_uuid()で採番される。
func (r *PostgresAnalysisRepo) Create(ctx context.Context, a *model.Analysis) (string, error) {
	p1, err := json.Marshal(a.Profile1Data)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile1 snapshot: %w", err)
	}
	p2, err := json.Marshal(a.Profile2Data)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile2 snapshot: %w", err)
	}

	var id string
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO analyses (platform, profile1, profile2, requester_email, profile1_data, profile2_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		string(a.Platform), a.Profile1, a.Profile2, a.RequesterEmail, p1, p2, a.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert analysis: %w", err)
	}

	return id, nil
}

// FindByID は指定IDの解析レコードを取得する。
// UUID形式でないIDはクエリを発行せずに見つからない扱いにする。
func (r *PostgresAnalysisRepo) FindByID(ctx context.Context, id string) (*model.Analysis, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	a := &model.Analysis{}
	var platform string
	var p1, p2 []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT id, platform, profile1, profile2, requester_email, profile1_data, profile2_data, created_at
		 FROM analyses WHERE id = $1`,
		id,
	).Scan(&a.ID, &platform, &a.Profile1, &a.Profile2, &a.RequesterEmail, &p1, &p2, &a.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find analysis by ID: %w", err)
	}

	a.Platform = model.Platform(platform)
	if err := json.Unmarshal(p1, &a.Profile1Data); err != nil {
		return nil, fmt.Errorf("failed to decode profile1 snapshot: %w", err)
	}
	if err := json.Unmarshal(p2, &a.Profile2Data); err != nil {
		return nil, fmt.Errorf("failed to decode profile2 snapshot: %w", err)
	}

	return a, nil
}

// DeleteByProfile1InstagramUserID は1人目のスナップショットが指定ユーザーIDを含むレコードを削除する。
func (r *PostgresAnalysisRepo) DeleteByProfile1InstagramUserID(ctx context.Context, instagramUserID string) (int, error) {
	return r.deleteBySnapshotUserID(ctx, "profile1_data", instagramUserID)
}

// DeleteByProfile2InstagramUserID は2人目のスナップショットが指定ユーザーIDを含むレコードを削除する。
func (r *PostgresAnalysisRepo) DeleteByProfile2InstagramUserID(ctx context.Context, instagramUserID string) (int, error) {
	return r.deleteBySnapshotUserID(ctx, "profile2_data", instagramUserID)
}

// deleteBySnapshotUserID はcolumnのinstagramUserIdが一致する行を削除する。
// columnは呼び出し側の固定値のみを受け付ける。
func (r *PostgresAnalysisRepo) deleteBySnapshotUserID(ctx context.Context, column, instagramUserID string) (int, error) {
	if instagramUserID == "" {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx,
		`DELETE FROM analyses WHERE `+column+`->>'instagramUserId' = $1`,
		instagramUserID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete analyses by %s: %w", column, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(n), nil
}

// PingContext はデータベースへの疎通を確認する。
func (r *PostgresAnalysisRepo) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
