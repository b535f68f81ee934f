// Package syncer reconciles local notes with their remote copies.
//
// The remote side is an opaque Transfer collaborator that moves files in
// and out of a shared staging directory. Divergence is detected by
// content fingerprint, and every pass drains the staging directory on the
// way out so one note's plaintext never leaks into the next session.
package syncer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/notevault/notevault/internal/crypto"
	"github.com/notevault/notevault/internal/store"
)

// Outcome is the result of a reconciliation pass.
type Outcome int

const (
	// Unchanged: remote matches local, or the operator declined the
	// remote copy. Local state untouched.
	Unchanged Outcome = iota
	// UpdatedLocal: the remote copy replaced the local note content.
	UpdatedLocal
	// RemoteFetchFailed: the download step failed. Local state untouched.
	RemoteFetchFailed
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case UpdatedLocal:
		return "updated-local"
	case RemoteFetchFailed:
		return "remote-fetch-failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ConsentFunc answers a yes/no question. The reconciler asks it before
// overwriting local content; the CLI backs it with a terminal prompt,
// tests with a canned answer.
type ConsentFunc func(prompt string) bool

// Reconciler detects and resolves divergence between local notes and the
// remote copy.
type Reconciler struct {
	store      *store.DB
	cipher     crypto.Cipher
	transfer   Transfer
	stagingDir string
	logger     *log.Logger
}

// New creates a Reconciler. If logger is nil, a default logger writing to
// stderr is used.
func New(db *store.DB, cipher crypto.Cipher, transfer Transfer, stagingDir string, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}
	return &Reconciler{
		store:      db,
		cipher:     cipher,
		transfer:   transfer,
		stagingDir: stagingDir,
		logger:     logger,
	}
}

// StagingDir returns the staging directory the reconciler drains.
func (r *Reconciler) StagingDir() string {
	return r.stagingDir
}

// fingerprint digests content for divergence detection. Collision
// resistance only needs to be good enough for byte-exact comparison of
// one note against its own remote copy.
func fingerprint(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Reconcile compares note's local plaintext against the remote copy and
// resolves divergence with the operator's consent.
//
// The local note is only modified when the remote copy differs and
// consent is given; the new content is re-encrypted under password before
// it is persisted. A download failure is downgraded to the
// RemoteFetchFailed outcome, never an error. The staging directory is
// drained before returning, success or failure.
func (r *Reconciler) Reconcile(ctx context.Context, note *store.Note, localPlaintext, password string, consent ConsentFunc) (Outcome, error) {
	defer r.drainStaging()

	if err := r.transfer.Download(ctx); err != nil {
		r.logger.Printf("WARNING: download failed for %q: %v", note.Title, err)
		return RemoteFetchFailed, nil
	}

	path := filepath.Join(r.stagingDir, note.Title+".txt")
	remote, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// No remote copy for this note.
		return Unchanged, nil
	}
	if err != nil {
		return Unchanged, fmt.Errorf("failed to read staged file: %w", err)
	}

	if fingerprint(remote) == fingerprint([]byte(localPlaintext)) {
		return Unchanged, nil
	}

	prompt := fmt.Sprintf("The note %q differs from its remote copy. Update the local copy?", note.Title)
	if consent == nil || !consent(prompt) {
		r.logger.Printf("Remote change for %q declined, keeping local content", note.Title)
		return Unchanged, nil
	}

	token, err := r.cipher.Encrypt(string(remote), password)
	if err != nil {
		return Unchanged, fmt.Errorf("failed to encrypt fetched content: %w", err)
	}

	note.Content = token
	if err := r.store.UpdateNoteContext(ctx, note); err != nil {
		return Unchanged, fmt.Errorf("failed to persist fetched content: %w", err)
	}

	r.logger.Printf("Updated %q from remote copy", note.Title)
	return UpdatedLocal, nil
}

// Push materializes plaintext at the staging path as "{title}.txt", hands
// it to the transfer collaborator, and removes the staging file whether
// the transfer succeeded or not. A transfer failure is returned wrapped
// around ErrRemoteTransfer; callers report it, they don't die on it.
func (r *Reconciler) Push(ctx context.Context, title, plaintext string) error {
	if err := os.MkdirAll(r.stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	path := filepath.Join(r.stagingDir, title+".txt")
	if err := os.WriteFile(path, []byte(plaintext), 0600); err != nil {
		return fmt.Errorf("failed to stage %q: %w", title, err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Printf("WARNING: failed to remove staged file %s: %v", path, err)
		}
	}()

	if err := r.transfer.Upload(ctx); err != nil {
		r.logger.Printf("WARNING: upload failed for %q: %v", title, err)
		if !isRemoteTransferErr(err) {
			err = fmt.Errorf("%w: %v", ErrRemoteTransfer, err)
		}
		return err
	}

	r.logger.Printf("Pushed %q to remote copy", title)
	return nil
}

// drainStaging removes every file from the staging directory so no
// plaintext survives into the next session.
func (r *Reconciler) drainStaging() {
	entries, err := os.ReadDir(r.stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Printf("WARNING: failed to read staging directory: %v", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(r.stagingDir, entry.Name())
		if err := os.Remove(path); err != nil {
			r.logger.Printf("WARNING: failed to remove staged file %s: %v", path, err)
		}
	}
}

func isRemoteTransferErr(err error) bool {
	return errors.Is(err, ErrRemoteTransfer)
}
