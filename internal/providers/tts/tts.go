package tts

import "context"

type Provider interface {
	// Synthesize returns encoded speech and its mime type.
	Synthesize(ctx context.Context, text, language, voice string) (audio []byte, mimeType string, err error)
	Close() error
}
