package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

var versionsCmd = &cobra.Command{
	Use:   "versions <title>",
	Short: "List a note's version history, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp(cmd.Context())
		defer app.close()

		note, err := app.svc.GetByTitle(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		versions, err := app.history.List(cmd.Context(), note)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "Version", "Created"})
		for i, v := range versions {
			t.AppendRow(table.Row{i, v.LinkedTitle(), v.CreatedAt.Local().Format(time.DateTime)})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <title> <from> <to>",
	Short: "Diff two versions of a note",
	Long: `Diff two versions of a note by their index in "nv versions" output
(0 is the newest). Lines only in <from> print with "- ", lines only in
<to> with "+ ".`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		from, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: <from> must be a version index\n")
			os.Exit(1)
		}
		to, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: <to> must be a version index\n")
			os.Exit(1)
		}

		app := openApp(cmd.Context())
		defer app.close()

		note, err := app.svc.GetByTitle(cmd.Context(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		versions, err := app.history.List(cmd.Context(), note)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		password, err := unlock(app.cipher, note, app.session)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		lines, err := app.history.Diff(from, to, password, versions)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		for _, line := range lines {
			switch {
			case strings.HasPrefix(line, "+ "):
				fmt.Println(addedStyle.Render(line))
			case strings.HasPrefix(line, "- "):
				fmt.Println(removedStyle.Render(line))
			default:
				fmt.Println(line)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionsCmd, diffCmd)
}
