package tts

import (
	"context"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

type GoogleTTS struct {
	c *texttospeech.Client
}

func NewGoogleTTS(ctx context.Context) (*GoogleTTS, error) {
	c, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleTTS{c: c}, nil
}

func (g *GoogleTTS) Close() error { return g.c.Close() }

func (g *GoogleTTS) Synthesize(ctx context.Context, text, language, voice string) ([]byte, string, error) {
	if language == "" {
		language = "en-US"
	}
	params := &texttospeechpb.VoiceSelectionParams{LanguageCode: language}
	// Realtime voice ids ("alloy") mean nothing here; only full Google names are passed.
	if strings.Count(voice, "-") >= 2 {
		params.Name = voice
	}

	resp, err := g.c.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice:       params,
		AudioConfig: &texttospeechpb.AudioConfig{AudioEncoding: texttospeechpb.AudioEncoding_MP3},
	})
	if err != nil {
		return nil, "", err
	}
	return resp.AudioContent, "audio/mpeg", nil
}
