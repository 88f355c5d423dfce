package audio

import (
	"context"
	"io"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// speechClient is the slice of the speech provider the adapters consume.
// It exists so tests can substitute a fake without a live provider.
type speechClient interface {
	transcribe(ctx context.Context, file *os.File) (string, error)
	synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// ProviderConfig configures the OpenAI-backed speech client.
type ProviderConfig struct {
	APIKey             string
	TranscriptionModel string
	SpeechModel        string
	Voice              string
}

// openAIClient implements speechClient on the OpenAI SDK.
type openAIClient struct {
	client             openai.Client
	transcriptionModel openai.AudioModel
	speechModel        openai.SpeechModel
	voice              openai.AudioSpeechNewParamsVoice
}

func newOpenAIClient(cfg ProviderConfig) *openAIClient {
	transcriptionModel := openai.AudioModelWhisper1
	if cfg.TranscriptionModel != "" {
		transcriptionModel = openai.AudioModel(cfg.TranscriptionModel)
	}
	speechModel := openai.SpeechModelTTS1
	if cfg.SpeechModel != "" {
		speechModel = openai.SpeechModel(cfg.SpeechModel)
	}
	voice := openai.AudioSpeechNewParamsVoice("nova")
	if cfg.Voice != "" {
		voice = openai.AudioSpeechNewParamsVoice(cfg.Voice)
	}

	return &openAIClient{
		client:             openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		transcriptionModel: transcriptionModel,
		speechModel:        speechModel,
		voice:              voice,
	}
}

func (c *openAIClient) transcribe(ctx context.Context, file *os.File) (string, error) {
	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: c.transcriptionModel,
		File:  file,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *openAIClient) synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	resp, err := c.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: c.speechModel,
		Voice: c.voice,
		Input: text,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
