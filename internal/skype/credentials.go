package skype

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CredentialProvider yields the chat account secret each time the session
// authenticates. Providers must be safe to call repeatedly; the login loop
// asks again on every retry so rotated secrets are picked up.
type CredentialProvider interface {
	Secret(ctx context.Context) (string, error)
}

// StaticCredential is a fixed secret, typically from the config file or the
// environment.
type StaticCredential string

func (c StaticCredential) Secret(context.Context) (string, error) {
	if c == "" {
		return "", errors.New("empty password configured")
	}
	return string(c), nil
}

// CommandCredential obtains the secret by executing an external command and
// reading the first line of its standard output. The command string is split
// on whitespace and executed directly, never through a shell.
type CommandCredential struct {
	Command string
}

func (c CommandCredential) Secret(ctx context.Context) (string, error) {
	parts := strings.Fields(c.Command)
	if len(parts) == 0 {
		return "", errors.New("empty password_command configured")
	}
	out, err := exec.CommandContext(ctx, parts[0], parts[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("password_command %q: %w", parts[0], err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("password_command %q produced no output", parts[0])
	}
	return line, nil
}
