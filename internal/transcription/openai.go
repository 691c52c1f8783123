package transcription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"quickscribe/internal/logger"
	"quickscribe/internal/types"
)

// OpenAI sends the audio to an OpenAI-compatible transcription endpoint.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
	log      *logger.Logger
}

func NewOpenAI(apiKey, baseURL, model, language string, log *logger.Logger) *OpenAI {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		language: normalizeLanguage(language),
		log:      log,
	}
}

func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	o.log.WithField("model", o.model).Info("sending audio to transcription API")
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: audioPath,
		Language: o.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return types.Transcript{}, fmt.Errorf("openai transcription: %w", err)
	}

	segments := make([]types.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, types.Segment{
			Start: seconds(s.Start),
			End:   seconds(s.End),
			Text:  s.Text,
		})
	}
	// some compatible servers answer verbose_json without segments
	if len(segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		segments = append(segments, types.Segment{End: seconds(resp.Duration), Text: resp.Text})
	}
	return types.NewTranscript(resp.Language, segments), nil
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
