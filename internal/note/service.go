// Package note はノートのドメインロジックを提供する。
// すべての操作は呼び出し元のIdentityを明示的に受け取り、その所有者のノートに限定される。
package note

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/noteman/internal/metrics"
	"github.com/hitoshi/noteman/internal/model"
	"github.com/hitoshi/noteman/internal/repository"
)

// 操作名（メトリクスのopラベル）
const (
	OpList   = "list"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpStats  = "stats"
)

// timestampPrecision は保存するタイムスタンプの精度。
// PostgreSQLのtimestamptzに合わせ、どのバックエンドでも同じ値が往復する。
const timestampPrecision = time.Microsecond

// CreateInput はノート作成の入力。
type CreateInput struct {
	Title   string
	Content string
}

// UpdateInput はノート更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title   *string
	Content *string
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithClock は現在時刻の取得関数を差し替える（テスト用）。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator はノートIDの生成関数を差し替える（テスト用）。
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// Service はノート管理のサービス層。
type Service struct {
	repo    repository.NoteRepository
	metrics metrics.MetricsCollector
	now     func() time.Time
	newID   func() string
}

// NewService はServiceを生成する。collectorはnilでもよい。
func NewService(repo repository.NoteRepository, collector metrics.MetricsCollector, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		metrics: collector,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List は所有者のノートを更新日時の新しい順で返す。
// 更新日時が同じ場合は作成日時の新しい順、さらにIDの昇順で並べる。
func (s *Service) List(ctx context.Context, identity model.Identity) ([]*model.Note, error) {
	notes, err := s.repo.ListByOwner(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	if notes == nil {
		notes = []*model.Note{}
	}

	sort.Slice(notes, func(i, j int) bool {
		a, b := notes[i], notes[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	slog.Info("notes listed",
		slog.String("user_id", identity.UserID),
		slog.Int("count", len(notes)),
	)
	s.record(OpList)
	return notes, nil
}

// Get は所有者のノートを1件取得する。
// 存在しない場合と他ユーザーのノートの場合は同じNotFoundを返す。
func (s *Service) Get(ctx context.Context, identity model.Identity, noteID string) (*model.Note, error) {
	note, err := s.find(ctx, identity, noteID)
	if err != nil {
		return nil, err
	}

	slog.Info("note retrieved",
		slog.String("note_id", note.ID),
		slog.String("user_id", identity.UserID),
	)
	s.record(OpGet)
	return note, nil
}

// Create はノートを作成する。
// contentが空白のみの場合はValidationエラー、titleが空白のみの場合は"Untitled"になる。
func (s *Service) Create(ctx context.Context, identity model.Identity, in CreateInput) (*model.Note, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, model.NewValidationError("Note content is required")
	}

	title := in.Title
	if strings.TrimSpace(title) == "" {
		title = model.DefaultNoteTitle
	}

	now := s.timestamp()
	note := &model.Note{
		ID:        s.newID(),
		OwnerID:   identity.UserID,
		Title:     title,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	slog.Info("note created",
		slog.String("note_id", note.ID),
		slog.String("user_id", identity.UserID),
	)
	s.record(OpCreate)
	return note, nil
}

// Update はノートを更新する。
// 存在確認を先に行い、その後に指定されたcontentを検証する。
// 空白のみのtitleは直前のtitleを維持する。updatedAtは常に前回より後の時刻に更新される。
func (s *Service) Update(ctx context.Context, identity model.Identity, noteID string, in UpdateInput) (*model.Note, error) {
	note, err := s.find(ctx, identity, noteID)
	if err != nil {
		return nil, err
	}

	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, model.NewValidationError("Note content cannot be empty")
		}
		note.Content = *in.Content
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		note.Title = *in.Title
	}

	updatedAt := s.timestamp()
	if !updatedAt.After(note.UpdatedAt) {
		updatedAt = note.UpdatedAt.Add(timestampPrecision)
	}
	note.UpdatedAt = updatedAt

	ok, err := s.repo.Update(ctx, note)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if !ok {
		// 取得後に削除された
		return nil, model.NewNoteNotFoundError()
	}

	slog.Info("note updated",
		slog.String("note_id", note.ID),
		slog.String("user_id", identity.UserID),
	)
	s.record(OpUpdate)
	return note, nil
}

// Delete はノートを削除する。
func (s *Service) Delete(ctx context.Context, identity model.Identity, noteID string) error {
	if !validID(noteID) {
		return model.NewNoteNotFoundError()
	}

	ok, err := s.repo.Delete(ctx, identity.UserID, noteID)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if !ok {
		return model.NewNoteNotFoundError()
	}

	slog.Info("note deleted",
		slog.String("note_id", noteID),
		slog.String("user_id", identity.UserID),
	)
	s.record(OpDelete)
	return nil
}

// Stats は所有者のノート件数とcontentの合計文字数（Unicodeコードポイント数）を返す。
func (s *Service) Stats(ctx context.Context, identity model.Identity) (*model.NoteStats, error) {
	notes, err := s.repo.ListByOwner(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes for stats: %w", err)
	}

	stats := &model.NoteStats{Count: len(notes)}
	for _, n := range notes {
		stats.TotalCharacters += utf8.RuneCountInString(n.Content)
	}

	slog.Info("note stats computed",
		slog.String("user_id", identity.UserID),
		slog.Int("total_notes", stats.Count),
	)
	s.record(OpStats)
	return stats, nil
}

func (s *Service) find(ctx context.Context, identity model.Identity, noteID string) (*model.Note, error) {
	if !validID(noteID) {
		return nil, model.NewNoteNotFoundError()
	}

	note, err := s.repo.FindByOwnerAndID(ctx, identity.UserID, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	if note == nil {
		return nil, model.NewNoteNotFoundError()
	}
	return note, nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(timestampPrecision)
}

func (s *Service) record(op string) {
	if s.metrics != nil {
		s.metrics.RecordNoteOperation(op)
	}
}

// validID はノートIDがUUID形式かどうかを返す。
// 形式外のIDは保存され得ないため、ストアに問い合わせずNotFoundとする。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
