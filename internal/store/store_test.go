package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// testDB opens a fresh database with schema in a temp dir.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := testDB(t)
	if err := db.InitSchema(); err != nil {
		t.Errorf("Second InitSchema() failed: %v", err)
	}
}

func TestInsertNote_AssignsID(t *testing.T) {
	db := testDB(t)

	note := &Note{
		Title:     "groceries",
		Content:   "ciphertext-token",
		Tags:      []string{"all", "home"},
		CreatedAt: time.Now().UTC(),
	}
	if err := db.InsertNote(note); err != nil {
		t.Fatalf("InsertNote() failed: %v", err)
	}
	if note.ID == 0 {
		t.Error("InsertNote() did not assign an ID")
	}
}

func TestGetNoteByTitle(t *testing.T) {
	db := testDB(t)

	want := &Note{
		Title:          "groceries",
		Content:        "token",
		PasswordDigest: "digest",
		Tags:           []string{"all", "home"},
		SyncEnabled:    true,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	if err := db.InsertNote(want); err != nil {
		t.Fatalf("InsertNote() failed: %v", err)
	}

	got, err := db.GetNoteByTitle("groceries")
	if err != nil {
		t.Fatalf("GetNoteByTitle() failed: %v", err)
	}

	if got.Title != want.Title || got.Content != want.Content ||
		got.PasswordDigest != want.PasswordDigest || !got.SyncEnabled {
		t.Errorf("GetNoteByTitle() = %+v, want %+v", got, want)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "all" || got.Tags[1] != "home" {
		t.Errorf("Tags = %v, want [all home]", got.Tags)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestGetNoteByTitle_Missing(t *testing.T) {
	db := testDB(t)

	_, err := db.GetNoteByTitle("nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetNoteByTitle() = %v, want sql.ErrNoRows", err)
	}
}

func TestNote_NilTagsRoundTrip(t *testing.T) {
	db := testDB(t)

	note := &Note{Title: "untagged", Content: "token", CreatedAt: time.Now().UTC()}
	if err := db.InsertNote(note); err != nil {
		t.Fatalf("InsertNote() failed: %v", err)
	}

	got, err := db.GetNoteByTitle("untagged")
	if err != nil {
		t.Fatalf("GetNoteByTitle() failed: %v", err)
	}
	if got.Tags != nil {
		t.Errorf("Tags = %v, want nil", got.Tags)
	}
}

func TestListNotes_NewestFirst(t *testing.T) {
	db := testDB(t)

	base := time.Now().UTC()
	for i, title := range []string{"oldest", "middle", "newest"} {
		note := &Note{
			Title:     title,
			Content:   "token",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.InsertNote(note); err != nil {
			t.Fatalf("InsertNote(%s) failed: %v", title, err)
		}
	}

	list, err := db.ListNotes(ListNotesFilter{})
	if err != nil {
		t.Fatalf("ListNotes() failed: %v", err)
	}

	wantOrder := []string{"newest", "middle", "oldest"}
	if len(list) != len(wantOrder) {
		t.Fatalf("ListNotes() returned %d notes, want %d", len(list), len(wantOrder))
	}
	for i, want := range wantOrder {
		if list[i].Title != want {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Title, want)
		}
	}
}

func TestListNotes_LimitOffset(t *testing.T) {
	db := testDB(t)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		note := &Note{
			Title:     string(rune('a' + i)),
			Content:   "token",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.InsertNote(note); err != nil {
			t.Fatalf("InsertNote() failed: %v", err)
		}
	}

	list, err := db.ListNotes(ListNotesFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListNotes() failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListNotes(limit=2) returned %d notes", len(list))
	}
	if list[0].Title != "d" || list[1].Title != "c" {
		t.Errorf("page = [%s %s], want [d c]", list[0].Title, list[1].Title)
	}
}

func TestSearchNotes_Content(t *testing.T) {
	db := testDB(t)

	notes := []*Note{
		{Title: "one", Content: "AbCdEf", CreatedAt: time.Now().UTC()},
		{Title: "two", Content: "xxabcyy", CreatedAt: time.Now().UTC()},
	}
	for _, n := range notes {
		if err := db.InsertNote(n); err != nil {
			t.Fatalf("InsertNote() failed: %v", err)
		}
	}

	// Case-sensitive: "bC" matches the first token only.
	list, err := db.SearchNotes("bC", SearchContent)
	if err != nil {
		t.Fatalf("SearchNotes() failed: %v", err)
	}
	if len(list) != 1 || list[0].Title != "one" {
		t.Errorf("SearchNotes(bC) = %d results, want just %q", len(list), "one")
	}
}

func TestSearchNotes_Tags(t *testing.T) {
	db := testDB(t)

	notes := []*Note{
		{Title: "tagged", Content: "t", Tags: []string{"all", "work"}, CreatedAt: time.Now().UTC()},
		{Title: "other", Content: "t", Tags: []string{"all", "home"}, CreatedAt: time.Now().UTC()},
		{Title: "untagged", Content: "t", CreatedAt: time.Now().UTC()},
	}
	for _, n := range notes {
		if err := db.InsertNote(n); err != nil {
			t.Fatalf("InsertNote() failed: %v", err)
		}
	}

	list, err := db.SearchNotes("wor", SearchTags)
	if err != nil {
		t.Fatalf("SearchNotes() failed: %v", err)
	}
	if len(list) != 1 || list[0].Title != "tagged" {
		t.Fatalf("SearchNotes(wor) = %d results, want just %q", len(list), "tagged")
	}

	// The sentinel matches every tagged note, never the untagged one.
	list, err = db.SearchNotes("all", SearchTags)
	if err != nil {
		t.Fatalf("SearchNotes() failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("SearchNotes(all) = %d results, want 2", len(list))
	}
}

func TestSearchNotes_UnknownField(t *testing.T) {
	db := testDB(t)
	if _, err := db.SearchNotes("q", SearchField("title")); err == nil {
		t.Error("SearchNotes() accepted an unknown field")
	}
}

func TestDeleteNote_CascadesToVersions(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	note := &Note{Title: "doomed", Content: "token", CreatedAt: time.Now().UTC()}
	if err := db.InsertNote(note); err != nil {
		t.Fatalf("InsertNote() failed: %v", err)
	}

	for seq := 1; seq <= 3; seq++ {
		v := &Version{
			NoteID:    note.ID,
			Sequence:  seq,
			Title:     note.Title,
			Content:   "token",
			CreatedAt: time.Now().UTC(),
		}
		if err := db.InsertVersion(v); err != nil {
			t.Fatalf("InsertVersion() failed: %v", err)
		}
	}

	if err := db.DeleteNote(note.ID); err != nil {
		t.Fatalf("DeleteNote() failed: %v", err)
	}

	count, err := db.CountVersions(ctx, note.ID)
	if err != nil {
		t.Fatalf("CountVersions() failed: %v", err)
	}
	if count != 0 {
		t.Errorf("versions remaining after note delete = %d, want 0", count)
	}
}

func TestListVersions_NewestFirst(t *testing.T) {
	db := testDB(t)

	note := &Note{Title: "n", Content: "token", CreatedAt: time.Now().UTC()}
	if err := db.InsertNote(note); err != nil {
		t.Fatalf("InsertNote() failed: %v", err)
	}

	// Identical timestamps: ordering must stay stable via sequence.
	now := time.Now().UTC()
	for seq := 1; seq <= 4; seq++ {
		v := &Version{NoteID: note.ID, Sequence: seq, Title: "n", Content: "c", CreatedAt: now}
		if err := db.InsertVersion(v); err != nil {
			t.Fatalf("InsertVersion() failed: %v", err)
		}
	}

	versions, err := db.ListVersions(note.ID)
	if err != nil {
		t.Fatalf("ListVersions() failed: %v", err)
	}
	if len(versions) != 4 {
		t.Fatalf("ListVersions() returned %d versions, want 4", len(versions))
	}
	for i, want := range []int{4, 3, 2, 1} {
		if versions[i].Sequence != want {
			t.Errorf("versions[%d].Sequence = %d, want %d", i, versions[i].Sequence, want)
		}
	}
}

func TestRelinkVersions(t *testing.T) {
	db := testDB(t)

	note := &Note{Title: "before", Content: "token", CreatedAt: time.Now().UTC()}
	if err := db.InsertNote(note); err != nil {
		t.Fatalf("InsertNote() failed: %v", err)
	}
	for seq := 1; seq <= 3; seq++ {
		v := &Version{NoteID: note.ID, Sequence: seq, Title: "before", Content: "c", CreatedAt: time.Now().UTC()}
		if err := db.InsertVersion(v); err != nil {
			t.Fatalf("InsertVersion() failed: %v", err)
		}
	}

	if err := db.RelinkVersions(note.ID, "after"); err != nil {
		t.Fatalf("RelinkVersions() failed: %v", err)
	}

	versions, err := db.ListVersions(note.ID)
	if err != nil {
		t.Fatalf("ListVersions() failed: %v", err)
	}
	for _, v := range versions {
		if v.Title != "after" {
			t.Errorf("version %d title = %q, want %q", v.Sequence, v.Title, "after")
		}
	}
	if versions[0].Sequence != 3 {
		t.Errorf("relink changed sequences: top = %d, want 3", versions[0].Sequence)
	}
}

func TestVersion_LinkedTitle(t *testing.T) {
	v := &Version{Sequence: 7, Title: "meeting notes"}
	if got := v.LinkedTitle(); got != "7_meeting notes" {
		t.Errorf("LinkedTitle() = %q, want %q", got, "7_meeting notes")
	}
}
