// Package notes implements the note repository and the version chain
// manager on top of the store and cipher layers.
//
// All persisted content passes through the cipher; plaintext only exists
// in memory between a caller handing it in and the encrypt call. The one
// edit path is RenameAndUpdate, which always appends exactly one version
// snapshot before touching the note row.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/notevault/notevault/internal/crypto"
	"github.com/notevault/notevault/internal/store"
)

// TagAll is the sentinel tag present on every tagged note, so "all"
// always matches the full tagged set.
const TagAll = "all"

// Pusher uploads a note's plaintext to the remote copy. Implemented by
// the syncer; injected here so an edit on a sync-enabled note can push
// without this package depending on the transfer machinery.
type Pusher interface {
	Push(ctx context.Context, title, plaintext string) error
}

// Service is the note repository: CRUD plus search over stored notes.
type Service struct {
	store   *store.DB
	cipher  crypto.Cipher
	history *History
	pusher  Pusher
	logger  *log.Logger
}

// NewService creates a note repository.
//
// pusher may be nil, in which case edits to sync-enabled notes skip the
// upload. If logger is nil, a default logger writing to stderr is used.
func NewService(db *store.DB, cipher crypto.Cipher, history *History, pusher Pusher, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[notes] ", log.LstdFlags)
	}
	return &Service{
		store:   db,
		cipher:  cipher,
		history: history,
		pusher:  pusher,
		logger:  logger,
	}
}

// ValidateTitle rejects titles that can't serve as identifiers or
// staging filenames.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.ContainsAny(title, "/\\") {
		return fmt.Errorf("title must not contain path separators")
	}
	return nil
}

// NormalizeTags de-duplicates tags preserving first-seen order and
// guarantees the sentinel "all" tag leads when any tag is supplied.
// Returns nil when no tags are supplied.
func NormalizeTags(tags []string) []string {
	var cleaned []string
	for _, tag := range tags {
		if strings.TrimSpace(tag) != "" {
			cleaned = append(cleaned, tag)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}

	out := []string{TagAll}
	seen := map[string]bool{TagAll: true}
	for _, tag := range cleaned {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

// Create encrypts plaintext under password and stores a new note together
// with its sequence-1 version snapshot.
//
// An empty password stores an empty digest (no protection); the content is
// still encrypted, under the empty-string key. Returns ErrDuplicateTitle
// if a note with the same title already exists.
func (s *Service) Create(ctx context.Context, title, plaintext, password string, tags []string, syncEnabled bool) (*store.Note, error) {
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}

	if _, err := s.store.GetNoteByTitleContext(ctx, title); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateTitle, title)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check for existing note: %w", err)
	}

	token, err := s.cipher.Encrypt(plaintext, password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt content: %w", err)
	}

	digest := ""
	if password != "" {
		digest = s.cipher.Digest(password)
	}

	note := &store.Note{
		Title:          title,
		Content:        token,
		PasswordDigest: digest,
		Tags:           NormalizeTags(tags),
		SyncEnabled:    syncEnabled,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.store.InsertNoteContext(ctx, note); err != nil {
		return nil, err
	}

	// Creation snapshot: the chain starts at sequence 1.
	version := &store.Version{
		NoteID:    note.ID,
		Sequence:  1,
		Title:     note.Title,
		Content:   token,
		CreatedAt: note.CreatedAt,
	}
	if err := s.store.InsertVersionContext(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to record creation snapshot: %w", err)
	}

	s.logger.Printf("Created note %q (sync=%v)", note.Title, note.SyncEnabled)
	return note, nil
}

// GetByTitle retrieves a note by exact title.
// Returns ErrNotFound if no note has that title.
func (s *Service) GetByTitle(ctx context.Context, title string) (*store.Note, error) {
	note, err := s.store.GetNoteByTitleContext(ctx, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	if err != nil {
		return nil, err
	}
	return note, nil
}

// List retrieves notes newest-created first.
func (s *Service) List(ctx context.Context, filter store.ListNotesFilter) ([]*store.Note, error) {
	return s.store.ListNotesContext(ctx, filter)
}

// Search retrieves notes whose field contains query as a case-sensitive
// substring. field is one of store.SearchContent or store.SearchTags.
func (s *Service) Search(ctx context.Context, query string, field store.SearchField) ([]*store.Note, error) {
	return s.store.SearchNotesContext(ctx, query, field)
}

// Delete removes a note and every version in its chain.
func (s *Service) Delete(ctx context.Context, note *store.Note) error {
	if err := s.store.DeleteNoteContext(ctx, note.ID); err != nil {
		return err
	}
	s.logger.Printf("Deleted note %q and its version chain", note.Title)
	return nil
}

// UpdateResult reports the outcome of RenameAndUpdate.
//
// PushErr carries a remote upload failure for a sync-enabled note. The
// local edit is already committed when PushErr is set; a failed push is
// reported, never rolled back.
type UpdateResult struct {
	Note    *store.Note
	Version *store.Version
	PushErr error
}

// RenameAndUpdate is the sole edit path. It appends exactly one version
// snapshot of the new content (propagating a rename through the existing
// chain and evicting at the retention cap), then updates the note row in
// place. If the note is sync-enabled, the new plaintext is pushed to the
// remote copy.
func (s *Service) RenameAndUpdate(ctx context.Context, note *store.Note, newTitle, newPlaintext, password string) (*UpdateResult, error) {
	if err := ValidateTitle(newTitle); err != nil {
		return nil, err
	}

	if newTitle != note.Title {
		if existing, err := s.store.GetNoteByTitleContext(ctx, newTitle); err == nil && existing.ID != note.ID {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTitle, newTitle)
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check for existing note: %w", err)
		}
	}

	version, err := s.history.Append(ctx, note, newTitle, newPlaintext, password)
	if err != nil {
		return nil, err
	}

	token, err := s.cipher.Encrypt(newPlaintext, password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt content: %w", err)
	}

	note.Title = newTitle
	note.Content = token
	if err := s.store.UpdateNoteContext(ctx, note); err != nil {
		return nil, err
	}

	result := &UpdateResult{Note: note, Version: version}

	if note.SyncEnabled && s.pusher != nil {
		if err := s.pusher.Push(ctx, note.Title, newPlaintext); err != nil {
			s.logger.Printf("WARNING: push failed for %q: %v", note.Title, err)
			result.PushErr = err
		}
	}

	s.logger.Printf("Updated note %q (version %d)", note.Title, version.Sequence)
	return result, nil
}
