package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anushkapunekar/agentops/internal/config"
)

// DefaultLocalModel is run by the local backend when the configured model
// belongs to the hosted family.
const DefaultLocalModel = "mistral"

// failurePrefix starts every comment produced when no backend answered.
const failurePrefix = "AI review unavailable: "

var hostedFamilyPrefixes = []string{"gpt-", "o1", "o3", "o4", "chatgpt-"}

// ErrNoBackend is reported when an Adapter has nothing to call.
var ErrNoBackend = &ProviderError{
	Code:     ErrCodeProviderUnavailable,
	Message:  "no review backend configured",
	Provider: "adapter",
}

// IsHostedModel reports whether model names a hosted chat-completion model.
func IsHostedModel(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, p := range hostedFamilyPrefixes {
		if strings.HasPrefix(m, p) {
			return true
		}
	}
	return false
}

// LocalModel returns the model the local backend runs for conf.
func LocalModel(conf config.Config) string {
	if conf.LocalModel != "" {
		return conf.LocalModel
	}
	if conf.Model != "" && !IsHostedModel(conf.Model) {
		return conf.Model
	}
	return DefaultLocalModel
}

// Result is the outcome of one review invocation.
type Result struct {
	// Text is the review comment. It is never a raw error value; when every
	// backend failed it holds a short failure marker.
	Text string

	// Backend is the kind that produced Text, or the last kind tried when
	// all backends failed.
	Backend Kind

	// Err is the last backend error when no backend succeeded.
	Err error
}

// Failed reports whether every backend failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Adapter calls backends in order until one answers.
type Adapter struct {
	backends []Backend
	logger   *slog.Logger
}

// NewAdapter returns an Adapter that tries backends in the given order.
func NewAdapter(logger *slog.Logger, backends ...Backend) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{backends: backends, logger: logger}
}

// NewAdapterFromConfig builds the adapter from the global registry.
func NewAdapterFromConfig(conf config.Config, logger *slog.Logger) (*Adapter, error) {
	return globalRegistry.Adapter(conf, logger)
}

// Adapter applies the selection rule: the hosted backend goes first when an
// API key is configured and the model is a hosted-family model, and the
// local backend is always last. A hosted backend that cannot be built is
// skipped.
func (r *Registry) Adapter(conf config.Config, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var backends []Backend
	if conf.HostedAPIKey != "" && IsHostedModel(conf.Model) {
		hosted, err := r.Get(string(KindHosted), conf)
		if err != nil {
			logger.Warn("hosted backend unavailable, using local only",
				"model", conf.Model, "error", err)
		} else {
			backends = append(backends, hosted)
		}
	}

	local, err := r.Get(string(KindLocal), conf)
	if err != nil {
		return nil, fmt.Errorf("provider: failed to build local backend: %w", err)
	}
	backends = append(backends, local)

	return NewAdapter(logger, backends...), nil
}

// Kinds lists the backend kinds in the order they are tried.
func (a *Adapter) Kinds() []Kind {
	kinds := make([]Kind, 0, len(a.backends))
	for _, b := range a.backends {
		kinds = append(kinds, b.Kind())
	}
	return kinds
}

// Review runs prompt through the backends. It always returns text and never
// panics on a misbehaving backend.
func (a *Adapter) Review(ctx context.Context, prompt string) Result {
	if len(a.backends) == 0 {
		return Result{Text: FailureText(ErrNoBackend), Err: ErrNoBackend}
	}

	var lastErr error
	var lastKind Kind
	for i, b := range a.backends {
		text, err := a.invoke(ctx, b, prompt)
		if err == nil {
			return Result{Text: text, Backend: b.Kind()}
		}
		lastErr, lastKind = err, b.Kind()

		if i < len(a.backends)-1 {
			a.logger.Warn("review backend failed, falling back",
				"backend", b.Name(), "next", a.backends[i+1].Name(), "error", err)
		} else {
			a.logger.Error("review backend failed", "backend", b.Name(), "error", err)
		}
	}
	return Result{Text: FailureText(lastErr), Backend: lastKind, Err: lastErr}
}

func (a *Adapter) invoke(ctx context.Context, b Backend, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ProviderError{
				Code:     ErrCodeUnknown,
				Message:  fmt.Sprintf("backend panicked: %v", r),
				Provider: b.Name(),
			}
		}
	}()
	return b.Review(ctx, prompt)
}

// FailureText renders err as the comment posted when no backend answered.
func FailureText(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		if pe.Provider != "" {
			return failurePrefix + pe.Provider + ": " + pe.Message
		}
		return failurePrefix + pe.Message
	}
	return failurePrefix + err.Error()
}

// IsFailureText reports whether text is a marker produced by FailureText.
func IsFailureText(text string) bool {
	return strings.HasPrefix(text, failurePrefix)
}
