// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/flagfinder/internal/model"
)

// AnalysisRepository は解析レコードの永続化インターフェース。
// レコードは書き込み後に変更されず、削除はデータ削除Webhook経由のみ行われる。
type AnalysisRepository interface {
	// Create は解析レコードを保存し、ストアが採番したIDを返す。
	Create(ctx context.Context, analysis *model.Analysis) (string, error)

	// FindByID は指定IDの解析レコードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Analysis, error)

	// DeleteByProfile1InstagramUserID は1人目のスナップショットが指定ユーザーIDを含むレコードを削除し、削除件数を返す。
	DeleteByProfile1InstagramUserID(ctx context.Context, instagramUserID string) (int, error)

	// DeleteByProfile2InstagramUserID は2人目のスナップショットが指定ユーザーIDを含むレコードを削除し、削除件数を返す。
	DeleteByProfile2InstagramUserID(ctx context.Context, instagramUserID string) (int, error)

	// PingContext はストアへの疎通を確認する。
	PingContext(ctx context.Context) error
}
