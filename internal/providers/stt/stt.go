package stt

import "context"

type Provider interface {
	// Transcribe recognizes one complete utterance. The container is sniffed from
	// the audio bytes.
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
	Close() error
}
