package notes

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/notevault/notevault/internal/crypto"
	"github.com/notevault/notevault/internal/store"
)

// DefaultMaxVersions is the retention cap of a note's version chain.
const DefaultMaxVersions = 10

// History maintains the bounded, ordered version chain of each note.
type History struct {
	store       *store.DB
	cipher      crypto.Cipher
	maxVersions int
	logger      *log.Logger
}

// NewHistory creates a version chain manager. maxVersions <= 0 selects
// the default cap of 10. If logger is nil, a default logger writing to
// stderr is used.
func NewHistory(db *store.DB, cipher crypto.Cipher, maxVersions int, logger *log.Logger) *History {
	if maxVersions <= 0 {
		maxVersions = DefaultMaxVersions
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[history] ", log.LstdFlags)
	}
	return &History{
		store:       db,
		cipher:      cipher,
		maxVersions: maxVersions,
		logger:      logger,
	}
}

// List retrieves a note's versions newest first. Pure read, no mutation.
func (h *History) List(ctx context.Context, note *store.Note) ([]*store.Version, error) {
	return h.store.ListVersionsContext(ctx, note.ID)
}

// Append records a snapshot of newPlaintext as the next version of note.
//
// The chain is fetched under the note's current stored identity; when the
// note is being renamed (newTitle differs from the stored title) every
// existing version is re-linked to the new title first, sequences
// untouched. Once the retained count has reached the cap, the version
// with the lowest sequence is evicted before the new snapshot is
// appended with sequence max+1.
//
// Append does not modify the note row itself; that is the caller's job.
func (h *History) Append(ctx context.Context, note *store.Note, newTitle, newPlaintext, password string) (*store.Version, error) {
	versions, err := h.store.ListVersionsContext(ctx, note.ID)
	if err != nil {
		return nil, err
	}

	if newTitle != note.Title {
		if err := h.store.RelinkVersionsContext(ctx, note.ID, newTitle); err != nil {
			return nil, err
		}
		for _, v := range versions {
			v.Title = newTitle
		}
		h.logger.Printf("Re-linked %d versions of %q to %q", len(versions), note.Title, newTitle)
	}

	if len(versions) >= h.maxVersions {
		oldest := versions[len(versions)-1]
		for _, v := range versions {
			if v.Sequence < oldest.Sequence {
				oldest = v
			}
		}
		if err := h.store.DeleteVersionContext(ctx, oldest.ID); err != nil {
			return nil, fmt.Errorf("failed to evict version %d: %w", oldest.Sequence, err)
		}
		retained := versions[:0]
		for _, v := range versions {
			if v.ID != oldest.ID {
				retained = append(retained, v)
			}
		}
		versions = retained
		h.logger.Printf("Evicted version %d of %q (cap %d)", oldest.Sequence, newTitle, h.maxVersions)
	}

	next := 1
	for _, v := range versions {
		if v.Sequence >= next {
			next = v.Sequence + 1
		}
	}

	token, err := h.cipher.Encrypt(newPlaintext, password)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	version := &store.Version{
		NoteID:    note.ID,
		Sequence:  next,
		Title:     newTitle,
		Content:   token,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.InsertVersionContext(ctx, version); err != nil {
		return nil, err
	}

	return version, nil
}

// Diff decrypts two versions out of the given slice and produces a
// line-oriented diff from versions[from] to versions[to]: "- " marks a
// removed line, "+ " an added line, "  " a common line.
//
// Both indices must be within range and must differ; otherwise
// ErrInvalidSelection is returned and nothing is decrypted.
func (h *History) Diff(from, to int, password string, versions []*store.Version) ([]string, error) {
	if from < 0 || from >= len(versions) || to < 0 || to >= len(versions) {
		return nil, fmt.Errorf("%w: index out of range", ErrInvalidSelection)
	}
	if from == to {
		return nil, fmt.Errorf("%w: versions must differ", ErrInvalidSelection)
	}

	oldText, err := h.cipher.Decrypt(versions[from].Content, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt version %d: %w", versions[from].Sequence, err)
	}
	newText, err := h.cipher.Decrypt(versions[to].Content, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt version %d: %w", versions[to].Sequence, err)
	}

	return diffLines(oldText, newText), nil
}

// diffLines computes the marked line diff between two plaintexts.
func diffLines(oldText, newText string) []string {
	oldLines := strings.Split(oldText, "\n")
	newLines := strings.Split(newText, "\n")

	matcher := difflib.NewMatcher(oldLines, newLines)

	var out []string
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, line := range oldLines[op.I1:op.I2] {
				out = append(out, "  "+line)
			}
		case 'd':
			for _, line := range oldLines[op.I1:op.I2] {
				out = append(out, "- "+line)
			}
		case 'i':
			for _, line := range newLines[op.J1:op.J2] {
				out = append(out, "+ "+line)
			}
		case 'r':
			for _, line := range oldLines[op.I1:op.I2] {
				out = append(out, "- "+line)
			}
			for _, line := range newLines[op.J1:op.J2] {
				out = append(out, "+ "+line)
			}
		}
	}
	return out
}
