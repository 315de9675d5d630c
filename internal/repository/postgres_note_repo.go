package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/noteman/internal/model"
)

// PostgresNoteRepo はPostgreSQLを使用したノートリポジトリ。
// 主キーは (owner_id, id) で、すべてのクエリはowner_idで絞り込む。
type PostgresNoteRepo struct {
	db *sql.DB
}

// NewPostgresNoteRepo はPostgresNoteRepoを生成する。
func NewPostgresNoteRepo(db *sql.DB) *PostgresNoteRepo {
	return &PostgresNoteRepo{db: db}
}

// Create はノートを作成する。
func (r *PostgresNoteRepo) Create(ctx context.Context, note *model.Note) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (owner_id, id, title, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		note.OwnerID, note.ID, note.Title, note.Content, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// FindByOwnerAndID は所有者とIDでノートを取得する。見つからない場合はnilを返す。
func (r *PostgresNoteRepo) FindByOwnerAndID(ctx context.Context, ownerID, id string) (*model.Note, error) {
	note := &model.Note{}
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_id, id, title, content, created_at, updated_at
		 FROM notes WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	).Scan(&note.OwnerID, &note.ID, &note.Title, &note.Content, &note.CreatedAt, &note.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return note, nil
}

// ListByOwner は所有者のノート一覧を返す。
func (r *PostgresNoteRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT owner_id, id, title, content, created_at, updated_at
		 FROM notes WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*model.Note
	for rows.Next() {
		note := &model.Note{}
		if err := rows.Scan(&note.OwnerID, &note.ID, &note.Title, &note.Content, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}

// Update は所有者とIDに一致するノートを上書き更新する。
func (r *PostgresNoteRepo) Update(ctx context.Context, note *model.Note) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notes SET title = $1, content = $2, updated_at = $3
		 WHERE owner_id = $4 AND id = $5`,
		note.Title, note.Content, note.UpdatedAt, note.OwnerID, note.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update note: %w", err)
	}
	return affectedOne(result)
}

// Delete は所有者とIDに一致するノートを削除する。
func (r *PostgresNoteRepo) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notes WHERE owner_id = $1 AND id = $2`,
		ownerID, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}
	return affectedOne(result)
}

func affectedOne(result sql.Result) (bool, error) {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ NoteRepository = (*PostgresNoteRepo)(nil)
