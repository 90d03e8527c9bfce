package llm

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

// model builds a per-call handle; the system instruction differs per agent.
func (v *VertexGemini) model(system string) *vertexgenai.GenerativeModel {
	m := v.client.GenerativeModel(v.modelName)
	if system != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(system)}}
	}
	return m
}

func (v *VertexGemini) StreamAnswer(ctx context.Context, system, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		it := v.model(system).GenerateContentStream(ctx, vertexgenai.Text(prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			for _, t := range texts(resp) {
				select {
				case out <- t:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return out, errs
}

func (v *VertexGemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := v.model(system).GenerateContent(ctx, vertexgenai.Text(prompt))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(texts(resp), "")), nil
}

func texts(resp *vertexgenai.GenerateContentResponse) []string {
	var out []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok && t != "" {
				out = append(out, string(t))
			}
		}
	}
	return out
}
