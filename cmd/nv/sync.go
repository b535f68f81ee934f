package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/notevault/notevault/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile notes with the remote copy",
}

var syncPushCmd = &cobra.Command{
	Use:   "push <title>",
	Short: "Upload a note's plaintext to the remote copy",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp(cmd.Context())
		defer app.close()
		recon := app.requireSync()

		note, err := app.svc.GetByTitle(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		password, err := unlock(app.cipher, note, app.session)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		plaintext, err := app.cipher.Decrypt(note.Content, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := recon.Push(cmd.Context(), note.Title, plaintext); err != nil {
			fmt.Fprintf(os.Stderr, "Sync unsuccessful: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Sync successful")
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull <title>",
	Short: "Reconcile one note against the remote copy",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp(cmd.Context())
		defer app.close()
		recon := app.requireSync()

		note, err := app.svc.GetByTitle(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		password, err := unlock(app.cipher, note, app.session)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		plaintext, err := app.cipher.Decrypt(note.Content, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		outcome, err := recon.Reconcile(cmd.Context(), note, plaintext, password, confirm)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		switch outcome {
		case syncer.Unchanged:
			fmt.Println("Local copy is up to date")
		case syncer.UpdatedLocal:
			fmt.Println("Local copy updated from remote")
		case syncer.RemoteFetchFailed:
			fmt.Fprintln(os.Stderr, "Could not fetch the remote copy")
			os.Exit(1)
		}
	},
}

var syncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the staging directory and reconcile sync-enabled notes",
	Long: `Run a foreground daemon that periodically reconciles every
sync-enabled note against the remote copy and reacts to files appearing
in the staging directory.

Protected notes need the session password: the daemon asks for it once at
startup and skips notes it does not unlock. With --accept-remote, remote
changes overwrite local content without asking; the default is to log and
keep the local copy.`,
	Run: func(cmd *cobra.Command, args []string) {
		interval, _ := cmd.Flags().GetDuration("interval")
		acceptRemote, _ := cmd.Flags().GetBool("accept-remote")

		app := openApp(cmd.Context())
		defer app.close()
		recon := app.requireSync()

		if pw, err := readPassword("Session password (empty to skip protected notes)"); err == nil && pw != "" {
			app.session.Cache(pw)
		}

		daemonCfg := syncer.DefaultDaemonConfig()
		daemonCfg.ReconcileInterval = interval
		if app.cfg.LogFile != "" {
			daemonCfg.Logger = newLogger(app.cfg, "[daemon] ")
		}
		if acceptRemote {
			daemonCfg.Consent = func(string) bool { return true }
		}

		daemon, err := syncer.NewDaemon(recon, app.db, app.cipher, app.session, daemonCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("Watching for remote changes (Ctrl+C to stop)")
		if err := daemon.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	syncWatchCmd.Flags().Duration("interval", 5*time.Minute, "time between full reconcile passes")
	syncWatchCmd.Flags().Bool("accept-remote", false, "take remote changes without asking")

	syncCmd.AddCommand(syncPushCmd, syncPullCmd, syncWatchCmd)
	rootCmd.AddCommand(syncCmd)
}
