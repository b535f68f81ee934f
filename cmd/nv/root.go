package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/notevault/notevault/internal/access"
	"github.com/notevault/notevault/internal/config"
	"github.com/notevault/notevault/internal/crypto"
	"github.com/notevault/notevault/internal/notes"
	"github.com/notevault/notevault/internal/store"
	"github.com/notevault/notevault/internal/syncer"
)

var rootCmd = &cobra.Command{
	Use:   "nv",
	Short: "Encrypted local-first note store",
	Long: `notevault keeps titled, encrypted notes in a local SQLite database,
with a bounded version history per note and optional reconciliation
against a remote copy through a staging directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// app bundles the wired-up services a command needs.
type app struct {
	cfg     *config.Config
	db      *store.DB
	cipher  crypto.Cipher
	session *access.Session
	history *notes.History
	svc     *notes.Service
	recon   *syncer.Reconciler
	logger  *log.Logger
}

// openApp connects the store and wires the services. A store failure here
// is fatal: no note can be served without it.
//
// The remote transfer is only constructed when an S3 bucket is
// configured; without one, sync commands fail and edits skip the push.
func openApp(ctx context.Context) *app {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg, "[nv] ")

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening note store: %v\n", err)
		os.Exit(1)
	}

	if err := db.InitSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}

	cipher := crypto.ECB{}
	history := notes.NewHistory(db, cipher, cfg.MaxVersions, logger)

	var recon *syncer.Reconciler
	var pusher notes.Pusher
	if cfg.S3.Bucket != "" {
		transfer, err := syncer.NewS3Transfer(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, cfg.StagingDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error configuring remote transfer: %v\n", err)
			os.Exit(1)
		}
		recon = syncer.New(db, cipher, transfer, cfg.StagingDir, logger)
		pusher = recon
	}

	svc := notes.NewService(db, cipher, history, pusher, logger)

	return &app{
		cfg:     cfg,
		db:      db,
		cipher:  cipher,
		session: access.NewSession(),
		history: history,
		svc:     svc,
		recon:   recon,
		logger:  logger,
	}
}

// close releases the store connection.
func (a *app) close() {
	if err := a.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// requireSync exits unless a remote transfer is configured.
func (a *app) requireSync() *syncer.Reconciler {
	if a.recon == nil {
		fmt.Fprintf(os.Stderr, "Error: no S3 bucket configured (set s3.bucket in %s/config.yaml)\n", config.Dir())
		os.Exit(1)
	}
	return a.recon
}

// newLogger builds the shared service logger. With log_file set, output
// rotates through lumberjack; otherwise logs are discarded so command
// output stays clean (services still get a real logger to write to).
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	var w io.Writer = io.Discard
	if cfg.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	return log.New(w, prefix, log.LstdFlags)
}
