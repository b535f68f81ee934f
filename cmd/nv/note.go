package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/notevault/notevault/internal/store"
	"github.com/notevault/notevault/internal/syncer"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	subtleStyle = lipgloss.NewStyle().Faint(true)
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new encrypted note",
	Long: `Create a note. The body is read from stdin, encrypted under the
password you choose, and stored together with its first version snapshot.`,
	Run: func(cmd *cobra.Command, args []string) {
		title, _ := cmd.Flags().GetString("title")
		tags, _ := cmd.Flags().GetStringSlice("tag")
		sync, _ := cmd.Flags().GetBool("sync")

		app := openApp(cmd.Context())
		defer app.close()

		body, err := readBody()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		password, err := readPassword("Password to protect note (empty for none)")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		note, err := app.svc.Create(cmd.Context(), title, body, password, tags, sync)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Saved %q\n", note.Title)

		if note.SyncEnabled {
			if app.recon == nil {
				fmt.Fprintln(os.Stderr, "Warning: sync requested but no S3 bucket configured")
				return
			}
			if err := app.recon.Push(cmd.Context(), note.Title, body); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: sync unsuccessful: %v\n", err)
			} else {
				fmt.Println("Sync successful")
			}
		}
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		app := openApp(cmd.Context())
		defer app.close()

		list, err := app.svc.List(cmd.Context(), store.ListNotesFilter{Limit: limit, Offset: offset})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(list) == 0 {
			fmt.Println("No notes yet.")
			return
		}

		printNoteTable(list)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search notes by tag or stored content",
	Long: `Search is a case-sensitive substring match. --field tags matches
against individual tags; --field content matches against the stored
(encrypted) content tokens.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		field, _ := cmd.Flags().GetString("field")

		app := openApp(cmd.Context())
		defer app.close()

		list, err := app.svc.Search(cmd.Context(), args[0], store.SearchField(field))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if len(list) == 0 {
			fmt.Println("Your search had no results.")
			return
		}

		printNoteTable(list)
	},
}

var viewCmd = &cobra.Command{
	Use:   "view <title>",
	Short: "Decrypt and display a note",
	Long: `Decrypt a note and print it. For a sync-enabled note the remote copy
is checked first; if it diverges you are asked whether to take it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp(cmd.Context())
		defer app.close()

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

		if note.SyncEnabled && app.recon != nil {
			fmt.Fprintln(os.Stderr, "Checking the remote copy...")
			outcome, err := app.recon.Reconcile(cmd.Context(), note, plaintext, password, confirm)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			switch outcome {
			case syncer.RemoteFetchFailed:
				fmt.Fprintln(os.Stderr, "Warning: could not fetch the remote copy")
			case syncer.UpdatedLocal:
				plaintext, err = app.cipher.Decrypt(note.Content, password)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
			}
		}

		fmt.Println(titleStyle.Render(note.Title))
		fmt.Println(plaintext)
		fmt.Println(subtleStyle.Render(fmt.Sprintf("created %s, tags: %s",
			note.CreatedAt.Local().Format("Mon Jan 2 2006 15:04"), note.TagsDisplay())))
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <title>",
	Short: "Edit a note's title and content",
	Long: `Edit a note. The previous content stays available in the version
chain; each edit appends one snapshot, keeping the most recent ten.`,
	Run: func(cmd *cobra.Command, args []string) {
		newTitle, _ := cmd.Flags().GetString("title")

		app := openApp(cmd.Context())
		defer app.close()

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

		if newTitle == "" {
			newTitle = note.Title
		}

		body, err := readBody()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		result, err := app.svc.RenameAndUpdate(cmd.Context(), note, newTitle, body, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Saved %q (version %d)\n", result.Note.Title, result.Version.Sequence)
		if result.PushErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: sync unsuccessful: %v\n", result.PushErr)
		}
	},
	Args: cobra.ExactArgs(1),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <title>",
	Short: "Delete a note and its version history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp(cmd.Context())
		defer app.close()

		note, err := app.svc.GetByTitle(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if !confirm(fmt.Sprintf("Delete %q and all its versions?", note.Title)) {
			fmt.Println("Cancelled.")
			return
		}

		if err := app.svc.Delete(cmd.Context(), note); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Deleted %q\n", note.Title)
	},
}

// printNoteTable renders notes the way every listing command shows them.
func printNoteTable(list []*store.Note) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Title", "Created", "Tags", "Sync"})
	for _, n := range list {
		syncMark := ""
		if n.SyncEnabled {
			syncMark = "yes"
		}
		t.AppendRow(table.Row{
			n.Title,
			n.CreatedAt.Local().Format(time.DateTime),
			n.TagsDisplay(),
			syncMark,
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func init() {
	addCmd.Flags().String("title", "", "note title (required)")
	addCmd.Flags().StringSlice("tag", nil, "tag to attach (repeatable)")
	addCmd.Flags().Bool("sync", false, "keep this note synced with the remote copy")
	_ = addCmd.MarkFlagRequired("title")

	listCmd.Flags().Int("limit", 0, "maximum notes to show (0 = all)")
	listCmd.Flags().Int("offset", 0, "notes to skip (for paging)")

	searchCmd.Flags().String("field", "tags", "field to search: tags or content")

	editCmd.Flags().String("title", "", "new title (default: keep current)")

	rootCmd.AddCommand(addCmd, listCmd, searchCmd, viewCmd, editCmd, deleteCmd)
}
