// Package llm holds the advisory LLM provider clients. The broker owns
// policy (when to call, what context to attach, how usage is accounted);
// this package owns only the wire mechanics and classifies transport
// failures so callers can branch on kind instead of message content.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dietbot/internal/config"
)

// Client is the interface every provider implements.
type Client interface {
	// Advise sends the system directive and user turn and returns the
	// answer text, or a classified *Error on transport failure.
	Advise(ctx context.Context, system, user string) (string, error)
}

// ErrorKind classifies a transport-level failure.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindAuth        ErrorKind = "auth"
	KindRateLimited ErrorKind = "rate_limited"
	KindMalformed   ErrorKind = "malformed"
	KindGeneric     ErrorKind = "generic"
)

// Error is a classified transport failure. A call that returns one never
// consumed quota.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("llm %s error", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// New builds the provider client named by the configuration.
func New(cfg *config.Config, logger *zap.Logger) (Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.LLM.Provider {
	case "mistral":
		return NewMistralClient(cfg.LLM, cfg.GetLLMTimeout(), logger), nil
	case "gemini":
		return NewGeminiClient(cfg.LLM, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
