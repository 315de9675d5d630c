package repository

import (
	"context"
	"sync"

	"github.com/hitoshi/noteman/internal/model"
)

// MemoryUserRepo はプロセス内メモリを使用したユーザーリポジトリ。
// 開発環境とテストで使用する。プロセス終了でデータは失われる。
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byEmail map[string]model.User
	byID    map[string]string // id -> email
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byEmail: make(map[string]model.User),
		byID:    make(map[string]string),
	}
}

// Create はユーザーを作成する。存在確認と挿入は同一のロック区間で行う。
func (r *MemoryUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return model.ErrEmailTaken
	}
	r.byEmail[user.Email] = *user
	r.byID[user.ID] = user.Email
	return nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	user := r.byEmail[email]
	return &user, nil
}

// ExistsByEmail はメールアドレスが登録済みかどうかを返す。
func (r *MemoryUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[email]
	return ok, nil
}

// MemoryNoteRepo はプロセス内メモリを使用したノートリポジトリ。
// 所有者ごとのマップでパーティションキー/ソートキー構成を模倣する。
type MemoryNoteRepo struct {
	mu      sync.RWMutex
	byOwner map[string]map[string]model.Note
}

// NewMemoryNoteRepo はMemoryNoteRepoを生成する。
func NewMemoryNoteRepo() *MemoryNoteRepo {
	return &MemoryNoteRepo{
		byOwner: make(map[string]map[string]model.Note),
	}
}

// Create はノートを作成する。
func (r *MemoryNoteRepo) Create(_ context.Context, note *model.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	partition, ok := r.byOwner[note.OwnerID]
	if !ok {
		partition = make(map[string]model.Note)
		r.byOwner[note.OwnerID] = partition
	}
	partition[note.ID] = *note
	return nil
}

// FindByOwnerAndID は所有者とIDでノートを取得する。見つからない場合はnilを返す。
func (r *MemoryNoteRepo) FindByOwnerAndID(_ context.Context, ownerID, id string) (*model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	note, ok := r.byOwner[ownerID][id]
	if !ok {
		return nil, nil
	}
	return &note, nil
}

// ListByOwner は所有者のノート一覧を返す。順序は不定。
func (r *MemoryNoteRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	partition := r.byOwner[ownerID]
	notes := make([]*model.Note, 0, len(partition))
	for _, note := range partition {
		n := note
		notes = append(notes, &n)
	}
	return notes, nil
}

// Update は所有者とIDに一致するノートを上書き更新する。
func (r *MemoryNoteRepo) Update(_ context.Context, note *model.Note) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byOwner[note.OwnerID][note.ID]
	if !ok {
		return false, nil
	}
	current.Title = note.Title
	current.Content = note.Content
	current.UpdatedAt = note.UpdatedAt
	r.byOwner[note.OwnerID][note.ID] = current
	return true, nil
}

// Delete は所有者とIDに一致するノートを削除する。
func (r *MemoryNoteRepo) Delete(_ context.Context, ownerID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	partition := r.byOwner[ownerID]
	if _, ok := partition[id]; !ok {
		return false, nil
	}
	delete(partition, id)
	if len(partition) == 0 {
		delete(r.byOwner, ownerID)
	}
	return true, nil
}

// compile-time interface checks
var (
	_ UserRepository = (*MemoryUserRepo)(nil)
	_ NoteRepository = (*MemoryNoteRepo)(nil)
)
