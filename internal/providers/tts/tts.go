package tts

import (
	"context"
	"regexp"
	"strings"
)

type Provider interface {
	// Synthesize returns a complete WAV file for text.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

var markup = regexp.MustCompile(`[#*_]`)

// CleanText strips markdown emphasis characters the voice would read aloud.
func CleanText(text string) string {
	return strings.TrimSpace(markup.ReplaceAllString(text, ""))
}
