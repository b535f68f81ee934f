package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/notevault/notevault/internal/access"
	"github.com/notevault/notevault/internal/crypto"
	"github.com/notevault/notevault/internal/store"
)

// DaemonConfig holds configuration for the watch daemon.
type DaemonConfig struct {
	// ReconcileInterval is how often a full reconcile pass runs even
	// without staging activity.
	ReconcileInterval time.Duration

	// DebounceInterval is how long to wait before reacting to staging
	// directory changes, batching rapid updates together.
	DebounceInterval time.Duration

	// Consent answers the overwrite prompt during unattended passes.
	// Nil declines every remote change and logs it.
	Consent ConsentFunc

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultDaemonConfig returns sensible defaults.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		ReconcileInterval: 5 * time.Minute,
		DebounceInterval:  500 * time.Millisecond,
		Logger:            log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches the staging directory and periodically reconciles every
// sync-enabled note against its remote copy.
//
// All reconcile passes run on a single goroutine, preserving the
// one-writer-per-version-chain model; the watcher and tickers only flag
// work, they never touch the store themselves.
type Daemon struct {
	recon   *Reconciler
	store   *store.DB
	cipher  crypto.Cipher
	session *access.Session
	config  *DaemonConfig

	watcher     *fsnotify.Watcher
	pending     atomic.Bool
	reconciling atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDaemon creates a watch daemon over the reconciler's staging
// directory. Notes whose password digest does not match the session's
// cached password are skipped with a log line; the daemon never prompts.
func NewDaemon(recon *Reconciler, db *store.DB, cipher crypto.Cipher, session *access.Session, config *DaemonConfig) (*Daemon, error) {
	if recon == nil {
		return nil, fmt.Errorf("reconciler cannot be nil")
	}
	if config == nil {
		config = DefaultDaemonConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		recon:   recon,
		store:   db,
		cipher:  cipher,
		session: session,
		config:  config,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins watching and reconciling. An initial pass runs before the
// watcher attaches. Blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting watch daemon")

	if err := os.MkdirAll(d.recon.StagingDir(), 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	if err := d.ReconcileAll(ctx); err != nil {
		return fmt.Errorf("initial reconcile pass failed: %w", err)
	}

	if err := d.watcher.Add(d.recon.StagingDir()); err != nil {
		return fmt.Errorf("failed to watch staging directory: %w", err)
	}

	d.config.Logger.Printf("Watching: %s", d.recon.StagingDir())

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.runLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping watch daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Watch daemon stopped")
	return nil
}

// watchFileEvents monitors staging directory events and flags work.
// Events generated by a running reconcile pass are its own downloads and
// drains, not outside activity, so they are ignored.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) == 0 {
				continue
			}
			if d.reconciling.Load() {
				continue
			}

			d.config.Logger.Printf("Staging event: %s %s", event.Op, event.Name)
			d.pending.Store(true)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// runLoop triggers reconcile passes from the debounce and interval
// tickers. Passes run here and nowhere else.
func (d *Daemon) runLoop() {
	defer d.wg.Done()

	debounce := time.NewTicker(d.config.DebounceInterval)
	defer debounce.Stop()
	interval := time.NewTicker(d.config.ReconcileInterval)
	defer interval.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-debounce.C:
			if d.pending.Swap(false) {
				d.runPass()
			}

		case <-interval.C:
			d.runPass()
		}
	}
}

func (d *Daemon) runPass() {
	if err := d.ReconcileAll(d.ctx); err != nil {
		d.config.Logger.Printf("Error in reconcile pass: %v", err)
	}
}

// ReconcileAll runs one reconcile pass over every sync-enabled note.
//
// Individual note failures are logged and don't stop the pass. Notes
// that cannot be unlocked with the session's cached password (or the
// empty password for unprotected notes) are skipped.
func (d *Daemon) ReconcileAll(ctx context.Context) error {
	d.reconciling.Store(true)
	defer d.reconciling.Store(false)

	notesList, err := d.store.ListNotesContext(ctx, store.ListNotesFilter{})
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}

	var checked, skipped, updated int
	for _, note := range notesList {
		if !note.SyncEnabled {
			continue
		}

		password, ok := d.resolvePassword(note)
		if !ok {
			d.config.Logger.Printf("Skipping %q: no usable session password", note.Title)
			skipped++
			continue
		}

		plaintext, err := d.cipher.Decrypt(note.Content, password)
		if err != nil {
			d.config.Logger.Printf("WARNING: failed to decrypt %q: %v", note.Title, err)
			skipped++
			continue
		}

		outcome, err := d.recon.Reconcile(ctx, note, plaintext, password, d.config.Consent)
		if err != nil {
			d.config.Logger.Printf("WARNING: reconcile failed for %q: %v", note.Title, err)
			continue
		}

		checked++
		if outcome == UpdatedLocal {
			updated++
		}
	}

	d.config.Logger.Printf("Reconcile pass complete: checked=%d updated=%d skipped=%d",
		checked, updated, skipped)
	return nil
}

// resolvePassword finds a password the note's digest accepts without
// prompting: the empty password for unprotected notes, or the session's
// cached password when it matches.
func (d *Daemon) resolvePassword(note *store.Note) (string, bool) {
	if note.PasswordDigest == "" {
		return "", true
	}
	if d.session != nil {
		if cached, ok := d.session.Password(); ok && access.Verify(d.cipher, cached, note.PasswordDigest) {
			return cached, true
		}
	}
	return "", false
}
