package notes

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/notevault/notevault/internal/crypto"
	"github.com/notevault/notevault/internal/store"
)

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(io.Discard, "", 0)
}

func isInvalidSelection(err error) bool {
	return errors.Is(err, ErrInvalidSelection)
}

func isDecodeErr(err error) bool {
	return errors.Is(err, crypto.ErrDecode)
}

func newTestHistory(t *testing.T, maxVersions int) (*History, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return NewHistory(db, crypto.ECB{}, maxVersions, testLogger(t)), db
}

// createNote inserts a note with its sequence-1 snapshot, without going
// through the service layer.
func createNote(t *testing.T, db *store.DB, h *History, title, plaintext, password string) *store.Note {
	t.Helper()
	ctx := context.Background()

	token, err := crypto.ECB{}.Encrypt(plaintext, password)
	if err != nil {
		t.Fatalf("Encrypt() failed: %v", err)
	}

	note := &store.Note{Title: title, Content: token, CreatedAt: time.Now().UTC()}
	if err := db.InsertNoteContext(ctx, note); err != nil {
		t.Fatalf("InsertNote() failed: %v", err)
	}
	v := &store.Version{NoteID: note.ID, Sequence: 1, Title: title, Content: token, CreatedAt: note.CreatedAt}
	if err := db.InsertVersionContext(ctx, v); err != nil {
		t.Fatalf("InsertVersion() failed: %v", err)
	}
	return note
}

func TestAppend_SequencesIncrease(t *testing.T) {
	h, db := newTestHistory(t, 0)
	ctx := context.Background()

	note := createNote(t, db, h, "n", "v1", "pw")

	for i := 2; i <= 4; i++ {
		v, err := h.Append(ctx, note, "n", "content", "pw")
		if err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
		if v.Sequence != i {
			t.Errorf("Append() sequence = %d, want %d", v.Sequence, i)
		}
	}
}

func TestAppend_CapEvictsOldest(t *testing.T) {
	h, db := newTestHistory(t, 0)
	ctx := context.Background()

	note := createNote(t, db, h, "busy", "v1", "pw")

	// 15 sequential edits on top of the creation snapshot.
	for i := 0; i < 15; i++ {
		if _, err := h.Append(ctx, note, "busy", "edit", "pw"); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	versions, err := h.List(ctx, note)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(versions) != DefaultMaxVersions {
		t.Fatalf("retained %d versions, want %d", len(versions), DefaultMaxVersions)
	}

	// The 10 most recent consecutive sequences: 16 down to 7.
	for i, v := range versions {
		want := 16 - i
		if v.Sequence != want {
			t.Errorf("versions[%d].Sequence = %d, want %d", i, v.Sequence, want)
		}
	}
}

func TestAppend_RenamePropagation(t *testing.T) {
	h, db := newTestHistory(t, 0)
	ctx := context.Background()

	note := createNote(t, db, h, "old name", "v1", "pw")
	for i := 0; i < 3; i++ {
		if _, err := h.Append(ctx, note, "old name", "edit", "pw"); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	if _, err := h.Append(ctx, note, "new name", "renamed edit", "pw"); err != nil {
		t.Fatalf("Append() with rename failed: %v", err)
	}

	versions, err := h.List(ctx, note)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(versions) != 5 {
		t.Fatalf("got %d versions, want 5", len(versions))
	}
	for i, v := range versions {
		if v.Title != "new name" {
			t.Errorf("versions[%d] title = %q, want %q", i, v.Title, "new name")
		}
		if want := 5 - i; v.Sequence != want {
			t.Errorf("versions[%d].Sequence = %d, want %d (rename must preserve sequences)", i, v.Sequence, want)
		}
	}
}

func TestDiff(t *testing.T) {
	h, db := newTestHistory(t, 0)
	ctx := context.Background()

	note := createNote(t, db, h, "n", "line1\nline2", "pw")
	if _, err := h.Append(ctx, note, "n", "line1\nline3", "pw"); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	versions, err := h.List(ctx, note)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	// Index 1 is the older snapshot, 0 the newer.
	lines, err := h.Diff(1, 0, "pw", versions)
	if err != nil {
		t.Fatalf("Diff() failed: %v", err)
	}

	want := []string{"  line1", "- line2", "+ line3"}
	if len(lines) != len(want) {
		t.Fatalf("Diff() = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Diff()[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDiff_InvalidSelection(t *testing.T) {
	h, db := newTestHistory(t, 0)
	ctx := context.Background()

	note := createNote(t, db, h, "n", "a", "pw")
	if _, err := h.Append(ctx, note, "n", "b", "pw"); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	versions, err := h.List(ctx, note)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	tests := []struct {
		name     string
		from, to int
	}{
		{"negative", -1, 0},
		{"out of range", 0, 2},
		{"equal", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Wrong password proves no decryption is attempted: an
			// invalid selection must win over a decode failure.
			_, err := h.Diff(tt.from, tt.to, "wrong", versions)
			if !isInvalidSelection(err) {
				t.Errorf("Diff() = %v, want ErrInvalidSelection", err)
			}
		})
	}
}

func TestDiff_WrongPassword(t *testing.T) {
	h, db := newTestHistory(t, 0)
	ctx := context.Background()

	note := createNote(t, db, h, "n", "a", "pw")
	if _, err := h.Append(ctx, note, "n", "b", "pw"); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	versions, err := h.List(ctx, note)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	if _, err := h.Diff(1, 0, "wrong", versions); !isDecodeErr(err) {
		t.Errorf("Diff() with wrong password = %v, want ErrDecode", err)
	}
}

// End-to-end: create, edit with rename, diff. Mirrors the full note
// lifecycle the service drives.
func TestLifecycle_CreateEditDiff(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	cipher := crypto.ECB{}
	history := NewHistory(db, cipher, 0, testLogger(t))
	svc := NewService(db, cipher, history, nil, testLogger(t))
	ctx := context.Background()

	note, err := svc.Create(ctx, "A", "hello", "pw", nil, false)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if _, err := cipher.Decrypt(note.Content, "pw"); err != nil {
		t.Fatalf("content must decrypt under the right password: %v", err)
	}
	if _, err := cipher.Decrypt(note.Content, "wrong"); !isDecodeErr(err) {
		t.Fatalf("content decrypted under the wrong password: %v", err)
	}

	if _, err := svc.RenameAndUpdate(ctx, note, "B", "world", "pw"); err != nil {
		t.Fatalf("RenameAndUpdate() failed: %v", err)
	}

	versions, err := history.List(ctx, note)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions, want 2", len(versions))
	}
	for _, v := range versions {
		if v.Title != "B" {
			t.Errorf("version %d is linked to %q, want %q", v.Sequence, v.Title, "B")
		}
	}
	if versions[0].Sequence != 2 || versions[1].Sequence != 1 {
		t.Errorf("sequences = [%d %d], want [2 1]", versions[0].Sequence, versions[1].Sequence)
	}

	lines, err := history.Diff(1, 0, "pw", versions)
	if err != nil {
		t.Fatalf("Diff() failed: %v", err)
	}
	want := []string{"- hello", "+ world"}
	if len(lines) != 2 || lines[0] != want[0] || lines[1] != want[1] {
		t.Errorf("Diff() = %v, want %v", lines, want)
	}
}
