package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Note is a titled, encrypted user document.
//
// Content always holds cipher output, never plaintext. A note with an
// empty PasswordDigest carries no protection: its content is encrypted
// under the empty-string key and still round-trips deterministically.
type Note struct {
	ID             int64
	Title          string
	Content        string
	PasswordDigest string
	Tags           []string // nil when no tags were supplied
	SyncEnabled    bool
	CreatedAt      time.Time
}

// SearchField selects which column a substring search runs against.
type SearchField string

const (
	SearchContent SearchField = "content"
	SearchTags    SearchField = "tags"
)

// InsertNote inserts a new note and assigns its ID.
func (db *DB) InsertNote(note *Note) error {
	return db.InsertNoteContext(context.Background(), note)
}

// InsertNoteContext inserts a note with context support.
func (db *DB) InsertNoteContext(ctx context.Context, note *Note) error {
	tagsJSON, err := tagsToJSON(note.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO notes (title, content, password_digest, tags, sync_enabled, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := db.conn.ExecContext(ctx, query,
		note.Title,
		note.Content,
		note.PasswordDigest,
		tagsJSON,
		boolToInt(note.SyncEnabled),
		timeToString(note.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert note %q: %w", note.Title, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read note id: %w", err)
	}
	note.ID = id

	return nil
}

// UpdateNote persists the mutable fields of a note: title, content,
// password digest, tags and the sync flag. CreatedAt is never touched.
func (db *DB) UpdateNote(note *Note) error {
	return db.UpdateNoteContext(context.Background(), note)
}

// UpdateNoteContext updates a note with context support.
func (db *DB) UpdateNoteContext(ctx context.Context, note *Note) error {
	tagsJSON, err := tagsToJSON(note.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	UPDATE notes
	SET title = ?, content = ?, password_digest = ?, tags = ?, sync_enabled = ?
	WHERE id = ?
	`

	_, err = db.conn.ExecContext(ctx, query,
		note.Title,
		note.Content,
		note.PasswordDigest,
		tagsJSON,
		boolToInt(note.SyncEnabled),
		note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note %q: %w", note.Title, err)
	}

	return nil
}

// DeleteNote removes a note. Version rows cascade via the foreign key.
// Returns nil if the note doesn't exist (idempotent).
func (db *DB) DeleteNote(id int64) error {
	return db.DeleteNoteContext(context.Background(), id)
}

// DeleteNoteContext removes a note with context support.
func (db *DB) DeleteNoteContext(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete note %d: %w", id, err)
	}
	return nil
}

// GetNoteByTitle retrieves a single note by exact title.
// Returns sql.ErrNoRows if no note has that title.
func (db *DB) GetNoteByTitle(title string) (*Note, error) {
	return db.GetNoteByTitleContext(context.Background(), title)
}

// GetNoteByTitleContext retrieves a note by title with context support.
func (db *DB) GetNoteByTitleContext(ctx context.Context, title string) (*Note, error) {
	query := `
	SELECT id, title, content, password_digest, tags, sync_enabled, created_at
	FROM notes
	WHERE title = ?
	`

	row := db.conn.QueryRowContext(ctx, query, title)
	return scanNote(row)
}

// ListNotesFilter configures the ListNotes query.
type ListNotesFilter struct {
	// Limit restricts the number of results (0 = no limit)
	Limit int
	// Offset skips the first N results (for pagination)
	Offset int
}

// ListNotes retrieves notes ordered newest-created first. Ties on
// created_at fall back to insertion order, so ordering is stable within
// a process run.
func (db *DB) ListNotes(filter ListNotesFilter) ([]*Note, error) {
	return db.ListNotesContext(context.Background(), filter)
}

// ListNotesContext retrieves notes with context support.
func (db *DB) ListNotesContext(ctx context.Context, filter ListNotesFilter) ([]*Note, error) {
	query := `
	SELECT id, title, content, password_digest, tags, sync_enabled, created_at
	FROM notes
	ORDER BY created_at DESC, id DESC
	`

	var args []interface{}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// SearchNotes retrieves notes whose field contains the query as a
// case-sensitive substring. Content matches run against the stored
// ciphertext token; tag matches run against each individual tag.
// Results are ordered newest-created first.
func (db *DB) SearchNotes(query string, field SearchField) ([]*Note, error) {
	return db.SearchNotesContext(context.Background(), query, field)
}

// SearchNotesContext searches notes with context support.
func (db *DB) SearchNotesContext(ctx context.Context, query string, field SearchField) ([]*Note, error) {
	var predicate string
	switch field {
	case SearchContent:
		// instr() keeps the match case-sensitive; LIKE would fold ASCII case.
		predicate = "instr(n.content, ?) > 0"
	case SearchTags:
		predicate = `n.tags IS NOT NULL AND EXISTS (
			SELECT 1 FROM json_each(n.tags) WHERE instr(json_each.value, ?) > 0
		)`
	default:
		return nil, fmt.Errorf("unknown search field %q", field)
	}

	sqlQuery := `
	SELECT n.id, n.title, n.content, n.password_digest, n.tags, n.sync_enabled, n.created_at
	FROM notes n
	WHERE ` + predicate + `
	ORDER BY n.created_at DESC, n.id DESC
	`

	rows, err := db.conn.QueryContext(ctx, sqlQuery, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// CountNotes returns the total number of notes in the database.
func (db *DB) CountNotes(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanNote scans a single note row.
func scanNote(row rowScanner) (*Note, error) {
	var note Note
	var tagsJSON sql.NullString
	var syncEnabled int
	var createdAt string

	err := row.Scan(
		&note.ID,
		&note.Title,
		&note.Content,
		&note.PasswordDigest,
		&tagsJSON,
		&syncEnabled,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	note.SyncEnabled = syncEnabled != 0
	note.CreatedAt = stringToTime(createdAt)

	if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &note.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	return &note, nil
}

// scanNotes scans multiple note rows from query results.
func scanNotes(rows *sql.Rows) ([]*Note, error) {
	var notes []*Note

	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}

// tagsToJSON serializes tags for storage. Nil tags store as NULL so an
// untagged note stays distinguishable from one tagged with nothing.
func tagsToJSON(tags []string) (sql.NullString, error) {
	if tags == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// TagsDisplay renders tags for listing output.
func (n *Note) TagsDisplay() string {
	if len(n.Tags) == 0 {
		return "-"
	}
	return strings.Join(n.Tags, ", ")
}
