package model

import "time"

// DefaultNoteTitle はタイトル未指定時に設定されるタイトル。
const DefaultNoteTitle = "Untitled"

// Note はユーザーが作成したテキストノートを表す。
// (OwnerID, ID) で一意に識別され、OwnerID以外からはアクセスできない。
type Note struct {
	ID        string
	OwnerID   string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoteStats はユーザーのノート集合から導出される統計情報。
type NoteStats struct {
	Count           int
	TotalCharacters int
}
