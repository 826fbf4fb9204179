package provider

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/perrors"
)

// DefaultCLITimeout bounds a single CLI invocation.
const DefaultCLITimeout = 120 * time.Second

// CLIProvider invokes a reasoning CLI as a subprocess, feeding the prompt
// on stdin and parsing the combined output.
type CLIProvider struct {
	name    string
	command string
	args    []string
	timeout time.Duration
}

// NewCLIProvider creates a CLI provider. Typical usage wraps a codex-style
// binary with an exec subcommand.
func NewCLIProvider(name, command string, args []string, timeout time.Duration) *CLIProvider {
	if timeout <= 0 {
		timeout = DefaultCLITimeout
	}
	return &CLIProvider{
		name:    name,
		command: command,
		args:    args,
		timeout: timeout,
	}
}

// Identity returns the provider name.
func (p *CLIProvider) Identity() string {
	return p.name
}

// IsAvailable reports whether the command exists on PATH.
func (p *CLIProvider) IsAvailable() bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

// Invoke runs the CLI with the rendered prompt on stdin.
func (p *CLIProvider) Invoke(ctx context.Context, req debate.Request, role Role) (debate.Perspective, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	prompt := BuildPrompt(req, role)
	start := time.Now()

	cmd := exec.CommandContext(ctx, p.command, p.args...)
	cmd.Stdin = bytes.NewReader([]byte(prompt))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return debate.Perspective{}, perrors.NewProviderError(
				"invocation timed out", perrors.ErrProviderUnavailable).
				WithProvider(p.name).WithRole(string(role))
		}
		return debate.Perspective{}, perrors.NewProviderError(
			"command failed: "+firstLine(stderr.String()), perrors.ErrProviderUnavailable).
			WithProvider(p.name).WithRole(string(role))
	}

	raw := stdout.String()
	if len(bytes.TrimSpace(stdout.Bytes())) == 0 {
		return debate.Perspective{}, perrors.NewProviderError(
			"empty response", perrors.ErrProviderUnavailable).
			WithProvider(p.name).WithRole(string(role))
	}

	return ParsePerspective(p.name, raw, time.Since(start)), nil
}

// firstLine trims command stderr down to its first line for error context.
func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
