// Package assist talks to the AI collaborator that drafts pipelines and
// answers design questions. The engine never depends on it: generated text is
// parsed here and handed back to callers as plain strings.
package assist

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/config"
)

// Defaults for the OpenAI-compatible provider.
const (
	DefaultTimeout    = 120 * time.Second
	DefaultMaxRetries = 3
	DefaultMaxTokens  = 4000
)

// ErrNoAPIKey is returned when the selected provider has no key configured.
var ErrNoAPIKey = errors.New("AI API key is not configured")

// Client completes a prompt with an optional system instruction.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Close() error
}

// NewClient builds the client for settings.AIProvider.
func NewClient(ctx context.Context, s *config.Settings) (Client, error) {
	switch s.AIProvider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, s.GeminiAPIKey, s.GeminiModel)
	case config.ProviderOpenAI, "":
		return NewOpenAIClient(OpenAIOptions{
			BaseURL: s.APIBase,
			APIKey:  s.APIKey,
			Model:   s.APIChatModel,
		})
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", s.AIProvider)
	}
}

// IsTimeout reports whether err came from the provider taking too long.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
