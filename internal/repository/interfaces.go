// Package repository はデータ永続化のインターフェースを定義する。
//
// 各インターフェースにはインメモリ・PostgreSQL・DynamoDBの3実装があり、
// すべて同じ契約を満たす。サービス層はストレージの種類に依存しない。
package repository

import (
	"context"

	"github.com/hitoshi/noteman/internal/model"
)

// UserRepository はユーザー（認証情報）の永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// 同じメールアドレスが既に存在する場合は model.ErrEmailTaken を返す。
	// 存在確認と挿入は単一の条件付き書き込みで行い、同時サインアップでも重複しない。
	Create(ctx context.Context, user *model.User) error

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// ExistsByEmail はメールアドレスが登録済みかどうかを返す。
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// NoteRepository はノートの永続化インターフェース。
// すべての操作は (ownerID, noteID) でスコープされる。
type NoteRepository interface {
	// Create はノートを作成する。
	Create(ctx context.Context, note *model.Note) error

	// FindByOwnerAndID は所有者とIDでノートを取得する。
	// 見つからない場合（他ユーザーのノートを含む）はnilを返す。
	FindByOwnerAndID(ctx context.Context, ownerID, id string) (*model.Note, error)

	// ListByOwner は所有者のノート一覧を返す。順序は保証しない。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Note, error)

	// Update はnote.OwnerIDとnote.IDに一致するノートのtitle、content、updated_atを上書きする。
	// 一致する行がない場合はfalseを返す。
	Update(ctx context.Context, note *model.Note) (bool, error)

	// Delete は所有者とIDに一致するノートを物理削除する。
	// 一致する行がない場合はfalseを返す。
	Delete(ctx context.Context, ownerID, id string) (bool, error)
}

// Pinger はストレージの疎通確認インターフェース。ヘルスチェックで使用する。
type Pinger interface {
	PingContext(ctx context.Context) error
}
