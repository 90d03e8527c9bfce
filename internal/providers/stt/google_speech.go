package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/yoockh/yoomeet/internal/media"
)

type GoogleSpeech struct {
	c *speech.Client
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

// recognitionFormat maps a sniffed container to the encoding and rate Speech expects.
func recognitionFormat(audio []byte) (speechpb.RecognitionConfig_AudioEncoding, int32, error) {
	switch media.Sniff(audio) {
	case media.MimeWAV:
		return speechpb.RecognitionConfig_LINEAR16, int32(media.WAVSampleRate(audio)), nil
	case media.MimeOggOpus:
		return speechpb.RecognitionConfig_OGG_OPUS, media.SampleRate, nil
	case media.MimeWebM:
		return speechpb.RecognitionConfig_WEBM_OPUS, media.SampleRate, nil
	case media.MimeMP3:
		return speechpb.RecognitionConfig_MP3, 0, nil
	default:
		return 0, 0, fmt.Errorf("stt: unrecognized audio container")
	}
}

// language example: "en-US", "id-ID"
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, language string) (string, float64, error) {
	if language == "" {
		language = "en-US"
	}
	enc, rate, err := recognitionFormat(audio)
	if err != nil {
		return "", 0, err
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   enc,
			SampleRateHertz:            rate,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", 0, err
	}

	// Results are consecutive segments; join the top alternative of each.
	var text string
	var conf float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if text != "" {
			text += " "
		}
		text += alt.Transcript
		if c := float64(alt.Confidence); conf == 0 || c < conf {
			conf = c
		}
	}
	return text, conf, nil
}
