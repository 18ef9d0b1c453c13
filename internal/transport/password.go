package transport

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordEnv is checked before prompting.
const PasswordEnv = "FUJIBRIDGE_HEATPUMP_PASSWORD"

// PromptPassword returns the remote serial password from PasswordEnv, or
// prompts for it on the terminal without echo. When stdin is not a terminal
// a line is read from it instead.
func PromptPassword() (string, error) {
	if pw := os.Getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd()) //nolint:gosec // File descriptors fit in int
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
