package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Version is an immutable encrypted snapshot of a note's content.
//
// Sequence starts at 1 (the creation snapshot) and increases by one per
// edit. Rows are append-only apart from cap eviction and the title rewrite
// that follows a note rename; Content is never mutated in place.
type Version struct {
	ID        int64
	NoteID    int64
	Sequence  int
	Title     string // the note's title at creation or last rename
	Content   string
	CreatedAt time.Time
}

// LinkedTitle renders the historical "{sequence}_{title}" chain link.
func (v *Version) LinkedTitle() string {
	return fmt.Sprintf("%d_%s", v.Sequence, v.Title)
}

// InsertVersion appends a version row and assigns its ID.
func (db *DB) InsertVersion(v *Version) error {
	return db.InsertVersionContext(context.Background(), v)
}

// InsertVersionContext appends a version with context support.
func (db *DB) InsertVersionContext(ctx context.Context, v *Version) error {
	query := `
	INSERT INTO versions (note_id, sequence, title, content, created_at)
	VALUES (?, ?, ?, ?, ?)
	`

	res, err := db.conn.ExecContext(ctx, query,
		v.NoteID,
		v.Sequence,
		v.Title,
		v.Content,
		timeToString(v.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert version %d for note %d: %w", v.Sequence, v.NoteID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read version id: %w", err)
	}
	v.ID = id

	return nil
}

// ListVersions retrieves all versions of a note, newest first. Same-
// timestamp rows fall back to sequence order, so the ordering stays
// stable within a process run.
func (db *DB) ListVersions(noteID int64) ([]*Version, error) {
	return db.ListVersionsContext(context.Background(), noteID)
}

// ListVersionsContext retrieves versions with context support.
func (db *DB) ListVersionsContext(ctx context.Context, noteID int64) ([]*Version, error) {
	query := `
	SELECT id, note_id, sequence, title, content, created_at
	FROM versions
	WHERE note_id = ?
	ORDER BY created_at DESC, sequence DESC
	`

	rows, err := db.conn.QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for note %d: %w", noteID, err)
	}
	defer rows.Close()

	return scanVersions(rows)
}

// DeleteVersion removes a single version row. Only cap eviction and note
// deletion ever remove versions.
func (db *DB) DeleteVersion(id int64) error {
	return db.DeleteVersionContext(context.Background(), id)
}

// DeleteVersionContext removes a version with context support.
func (db *DB) DeleteVersionContext(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM versions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete version %d: %w", id, err)
	}
	return nil
}

// RelinkVersions rewrites the stored title on every version of a note,
// preserving each row's sequence. Called when the note is renamed.
func (db *DB) RelinkVersions(noteID int64, newTitle string) error {
	return db.RelinkVersionsContext(context.Background(), noteID, newTitle)
}

// RelinkVersionsContext rewrites version titles with context support.
func (db *DB) RelinkVersionsContext(ctx context.Context, noteID int64, newTitle string) error {
	query := `UPDATE versions SET title = ? WHERE note_id = ?`
	if _, err := db.conn.ExecContext(ctx, query, newTitle, noteID); err != nil {
		return fmt.Errorf("failed to relink versions for note %d: %w", noteID, err)
	}
	return nil
}

// CountVersions returns the number of retained versions for a note.
func (db *DB) CountVersions(ctx context.Context, noteID int64) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM versions WHERE note_id = ?", noteID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count versions: %w", err)
	}
	return count, nil
}

// scanVersions scans multiple version rows from query results.
func scanVersions(rows *sql.Rows) ([]*Version, error) {
	var versions []*Version

	for rows.Next() {
		var v Version
		var createdAt string

		err := rows.Scan(
			&v.ID,
			&v.NoteID,
			&v.Sequence,
			&v.Title,
			&v.Content,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}

		v.CreatedAt = stringToTime(createdAt)
		versions = append(versions, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}
