package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/notevault/notevault/internal/access"
	"github.com/notevault/notevault/internal/crypto"
	"github.com/notevault/notevault/internal/store"
)

// readPassword prompts for a password without echoing it.
func readPassword(prompt string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// confirm asks a yes/no question on the terminal.
func confirm(prompt string) bool {
	var ok bool
	if err := huh.NewConfirm().Title(prompt).Value(&ok).Run(); err != nil {
		return false
	}
	return ok
}

// readBody reads note content from stdin until EOF.
func readBody() (string, error) {
	fmt.Fprintln(os.Stderr, "Enter your note, finish with Ctrl+D:")
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

// unlock runs the password flow for a note and returns the verified
// password. Unprotected notes and session-cached passwords skip the
// prompt; otherwise the operator gets a bounded number of attempts.
func unlock(cipher crypto.Cipher, note *store.Note, session *access.Session) (string, error) {
	flow := access.NewFlow(cipher, note.PasswordDigest, session, 0)

	for flow.State() == access.AwaitingPassword {
		pw, err := readPassword(fmt.Sprintf("Password for %q", note.Title))
		if err != nil {
			return "", err
		}
		if flow.Submit(pw) == access.AwaitingPassword {
			fmt.Fprintf(os.Stderr, "Password is incorrect (%d attempts left)\n", flow.AttemptsLeft())
		}
	}

	return flow.Password()
}
