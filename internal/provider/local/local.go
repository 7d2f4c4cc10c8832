// Package local implements the review backend that runs a model through a
// local runner process, `<runner> run <model> <prompt>`, and reads the
// review from standard output.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/anushkapunekar/agentops/internal/provider"
)

const (
	defaultRunner  = "ollama"
	defaultTimeout = 120 * time.Second

	// Linux rejects a single argv entry above 128KiB, so longer prompts go
	// through stdin, which the runner reads when no prompt argument is given.
	maxPromptArgBytes = 96 * 1024

	maxStderrInError = 512
)

func init() {
	provider.Register(string(provider.KindLocal), NewProvider)
}

// Provider implements provider.Backend by spawning the runner.
type Provider struct {
	command []string
	model   string
	timeout time.Duration
}

// NewProvider is the factory registered with the provider registry.
func NewProvider(conf config.Config) (provider.Backend, error) {
	return New(conf)
}

// New builds the backend. LocalRunner may carry leading arguments, e.g.
// "podman exec llm ollama".
func New(conf config.Config) (*Provider, error) {
	runner := strings.TrimSpace(conf.LocalRunner)
	if runner == "" {
		runner = defaultRunner
	}
	command := strings.Fields(runner)
	if len(command) == 0 {
		return nil, fmt.Errorf("local: invalid runner %q", conf.LocalRunner)
	}

	timeout := conf.ProcessTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Provider{
		command: command,
		model:   provider.LocalModel(conf),
		timeout: timeout,
	}, nil
}

func (p *Provider) Kind() provider.Kind { return provider.KindLocal }

func (p *Provider) Name() string { return filepath.Base(p.command[0]) }

// Model is the model passed to the runner.
func (p *Provider) Model() string { return p.model }

// Review runs the model once, bounded by the configured timeout.
func (p *Provider) Review(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append(append([]string{}, p.command[1:]...), "run", p.model)
	viaStdin := len(prompt) > maxPromptArgBytes
	if !viaStdin {
		args = append(args, prompt)
	}

	cmd := exec.CommandContext(ctx, p.command[0], args...)
	if viaStdin {
		cmd.Stdin = strings.NewReader(prompt)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherited the pipes must not hold Wait open after a kill.
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if err != nil {
		return "", p.classify(ctx, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (p *Provider) classify(ctx context.Context, err error, stderr string) error {
	pe := &provider.ProviderError{Provider: p.Name(), Cause: err}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		pe.Code = provider.ErrCodeTimeout
		pe.Message = fmt.Sprintf("%s timed out after %s", p.Name(), p.timeout)
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist):
		pe.Code = provider.ErrCodeProviderUnavailable
		pe.Message = fmt.Sprintf("runner %q not found", p.command[0])
	case errors.As(err, &exitErr):
		pe.Code = provider.ErrCodeUnknown
		pe.Message = fmt.Sprintf("%s exited with status %d", p.Name(), exitErr.ExitCode())
		if s := strings.TrimSpace(stderr); s != "" {
			if len(s) > maxStderrInError {
				s = s[:maxStderrInError] + "..."
			}
			pe.Message += ": " + s
		}
	default:
		pe.Code = provider.ErrCodeUnknown
		pe.Message = fmt.Sprintf("failed to run %s", p.Name())
	}
	return pe
}
