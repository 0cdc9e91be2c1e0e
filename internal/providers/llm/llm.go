package llm

import (
	"context"

	"github.com/yoockh/yoointerview/internal/models"
)

type Provider interface {
	// StreamChat streams the assistant reply to history as text increments.
	// Both channels are closed when the stream ends; errs carries at most one
	// error. Cancelling ctx stops the stream.
	StreamChat(ctx context.Context, system string, history []models.Message) (chunks <-chan string, errs <-chan error)
	// Complete returns a single non-streamed reply to prompt.
	Complete(ctx context.Context, system, prompt string) (string, error)
	Close() error
}
