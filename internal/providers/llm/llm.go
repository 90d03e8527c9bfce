package llm

import "context"

type Provider interface {
	// StreamAnswer returns incremental text chunks. system may be empty.
	StreamAnswer(ctx context.Context, system, prompt string) (chunks <-chan string, errs <-chan error)
	// Complete returns the whole answer at once.
	Complete(ctx context.Context, system, prompt string) (string, error)
	Close() error
}
