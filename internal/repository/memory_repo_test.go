package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/noteman/internal/model"
)

func TestMemoryUserRepo_CreateAndFind(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()
	now := time.Now()

	err := repo.Create(ctx, &model.User{ID: "user-1", Email: "alice@example.com", PasswordHash: "hash", CreatedAt: now})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	byEmail, err := repo.FindByEmail(ctx, "alice@example.com")
	if err != nil || byEmail == nil {
		t.Fatalf("FindByEmail = %v, %v", byEmail, err)
	}
	if byEmail.ID != "user-1" {
		t.Errorf("ID = %q, want %q", byEmail.ID, "user-1")
	}

	byID, err := repo.FindByID(ctx, "user-1")
	if err != nil || byID == nil {
		t.Fatalf("FindByID = %v, %v", byID, err)
	}
	if byID.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", byID.Email, "alice@example.com")
	}

	exists, _ := repo.ExistsByEmail(ctx, "alice@example.com")
	if !exists {
		t.Error("expected ExistsByEmail = true")
	}
}

func TestMemoryUserRepo_NotFound(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	if u, err := repo.FindByEmail(ctx, "ghost@example.com"); u != nil || err != nil {
		t.Errorf("FindByEmail = %v, %v; want nil, nil", u, err)
	}
	if u, err := repo.FindByID(ctx, "ghost"); u != nil || err != nil {
		t.Errorf("FindByID = %v, %v; want nil, nil", u, err)
	}
	if exists, _ := repo.ExistsByEmail(ctx, "ghost@example.com"); exists {
		t.Error("expected ExistsByEmail = false")
	}
}

// メールアドレスは大文字小文字を区別する
func TestMemoryUserRepo_EmailIsCaseSensitive(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.User{ID: "u1", Email: "Alice@example.com"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.Create(ctx, &model.User{ID: "u2", Email: "alice@example.com"}); err != nil {
		t.Fatalf("Create with different case should succeed: %v", err)
	}
}

func TestMemoryUserRepo_DuplicateEmail(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	err := repo.Create(ctx, &model.User{ID: "u2", Email: "a@example.com"})
	if !errors.Is(err, model.ErrEmailTaken) {
		t.Fatalf("want ErrEmailTaken, got %v", err)
	}

	// 最初のユーザーが上書きされていないこと
	u, _ := repo.FindByEmail(ctx, "a@example.com")
	if u.ID != "u1" {
		t.Errorf("ID = %q, want %q", u.ID, "u1")
	}
	if u, _ := repo.FindByID(ctx, "u2"); u != nil {
		t.Errorf("expected second user not to be stored, got %+v", u)
	}
}

// 同一メールアドレスでの同時作成は1件だけ成功する
func TestMemoryUserRepo_ConcurrentCreate(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()

	const workers = 32
	var succeeded, taken atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(ctx, &model.User{ID: fmt.Sprintf("u%d", i), Email: "race@example.com"})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, model.ErrEmailTaken):
				taken.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded.Load())
	}
	if taken.Load() != workers-1 {
		t.Errorf("taken = %d, want %d", taken.Load(), workers-1)
	}
}

// 返却値を変更しても保存済みの値に影響しない
func TestMemoryUserRepo_ReturnsCopy(t *testing.T) {
	repo := NewMemoryUserRepo()
	ctx := context.Background()
	_ = repo.Create(ctx, &model.User{ID: "u1", Email: "a@example.com", PasswordHash: "hash"})

	u, _ := repo.FindByEmail(ctx, "a@example.com")
	u.PasswordHash = "tampered"

	again, _ := repo.FindByEmail(ctx, "a@example.com")
	if again.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q, want %q", again.PasswordHash, "hash")
	}
}

func TestMemoryNoteRepo_CRUD(t *testing.T) {
	repo := NewMemoryNoteRepo()
	ctx := context.Background()
	now := time.Now()

	note := &model.Note{ID: "n1", OwnerID: "u1", Title: "t", Content: "c", CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(ctx, note); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := repo.FindByOwnerAndID(ctx, "u1", "n1")
	if err != nil || got == nil {
		t.Fatalf("FindByOwnerAndID = %v, %v", got, err)
	}
	if got.Content != "c" {
		t.Errorf("Content = %q, want %q", got.Content, "c")
	}

	later := now.Add(time.Second)
	ok, err := repo.Update(ctx, &model.Note{ID: "n1", OwnerID: "u1", Title: "t2", Content: "c2", UpdatedAt: later})
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v", ok, err)
	}
	got, _ = repo.FindByOwnerAndID(ctx, "u1", "n1")
	if got.Title != "t2" || got.Content != "c2" || !got.UpdatedAt.Equal(later) {
		t.Errorf("unexpected note after update: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt changed: %v", got.CreatedAt)
	}

	deleted, err := repo.Delete(ctx, "u1", "n1")
	if err != nil || !deleted {
		t.Fatalf("Delete = %v, %v", deleted, err)
	}
	if got, _ := repo.FindByOwnerAndID(ctx, "u1", "n1"); got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
	if deleted, _ := repo.Delete(ctx, "u1", "n1"); deleted {
		t.Error("second Delete should report false")
	}
}

// 他ユーザーのノートは取得・更新・削除できない
func TestMemoryNoteRepo_OwnerIsolation(t *testing.T) {
	repo := NewMemoryNoteRepo()
	ctx := context.Background()
	_ = repo.Create(ctx, &model.Note{ID: "n1", OwnerID: "alice", Title: "t", Content: "secret"})

	if got, _ := repo.FindByOwnerAndID(ctx, "bob", "n1"); got != nil {
		t.Errorf("bob should not see alice's note: %+v", got)
	}
	if ok, _ := repo.Update(ctx, &model.Note{ID: "n1", OwnerID: "bob", Title: "x", Content: "x"}); ok {
		t.Error("bob should not update alice's note")
	}
	if ok, _ := repo.Delete(ctx, "bob", "n1"); ok {
		t.Error("bob should not delete alice's note")
	}
	if notes, _ := repo.ListByOwner(ctx, "bob"); len(notes) != 0 {
		t.Errorf("bob's list = %d notes, want 0", len(notes))
	}

	got, _ := repo.FindByOwnerAndID(ctx, "alice", "n1")
	if got == nil || got.Content != "secret" {
		t.Errorf("alice's note changed: %+v", got)
	}
}

func TestMemoryNoteRepo_ListByOwner(t *testing.T) {
	repo := NewMemoryNoteRepo()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_ = repo.Create(ctx, &model.Note{ID: fmt.Sprintf("n%d", i), OwnerID: "u1"})
	}
	_ = repo.Create(ctx, &model.Note{ID: "other", OwnerID: "u2"})

	notes, err := repo.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if len(notes) != 3 {
		t.Errorf("len(notes) = %d, want 3", len(notes))
	}

	empty, err := repo.ListByOwner(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", empty)
	}
}
