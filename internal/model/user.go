// Package model はドメインモデルを定義する。
package model

import "time"

// User はメールアドレスとパスワードで登録したユーザーを表す。
// 作成後は更新・削除されない。
type User struct {
	ID           string
	Email        string
	PasswordHash string // argon2idのPHC形式。平文は保持しない
	CreatedAt    time.Time
}

// Identity は認証ゲートが解決したリクエストの主体を表す。
// ノート操作はすべてこの値を明示的に受け取り、OwnerIDのスコープに限定する。
type Identity struct {
	UserID string
	Email  string
}
