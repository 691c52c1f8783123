//go:build whisper

package transcription

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mutablelogic/go-whisper/pkg/schema"
	whisper "github.com/mutablelogic/go-whisper/pkg/whisper"

	"quickscribe/internal/config"
	"quickscribe/internal/logger"
	"quickscribe/internal/types"
)

// Native runs whisper.cpp in-process through go-whisper.
type Native struct {
	models   *ModelStore
	profile  Profile
	language string
	log      *logger.Logger
}

func newNative(models *ModelStore, profile Profile, language string, log *logger.Logger) (Transcriber, error) {
	return &Native{models: models, profile: profile, language: normalizeLanguage(language), log: log}, nil
}

func (n *Native) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	if _, err := n.models.Ensure(ctx, n.profile.Model); err != nil {
		return types.Transcript{}, fmt.Errorf("model setup failed: %w", err)
	}

	var opts []whisper.Opt
	if n.profile.Device != config.DeviceCUDA {
		opts = append(opts, whisper.OptNoGPU())
	}
	opts = append(opts, whisper.OptLog(func(line string) { n.log.Debug(line) }))

	manager, err := whisper.New(n.models.Dir(), opts...)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("create whisper manager: %w", err)
	}
	defer manager.Close()

	id := ModelID(n.profile.Model)
	model := manager.GetModelById(id)
	if model == nil {
		return types.Transcript{}, fmt.Errorf("model %s not found in %s", id, n.models.Dir())
	}

	var segments []types.Segment
	err = manager.WithModel(model, func(task *whisper.Task) error {
		if n.language != "" {
			if err := task.SetLanguage(n.language); err != nil {
				return fmt.Errorf("set language: %w", err)
			}
		}
		f, err := os.Open(audioPath)
		if err != nil {
			return fmt.Errorf("open audio: %w", err)
		}
		defer f.Close()
		return task.TranscribeReader(ctx, f, func(seg *schema.Segment) {
			segments = append(segments, types.Segment{
				Start: time.Duration(seg.Start),
				End:   time.Duration(seg.End),
				Text:  seg.Text,
			})
		})
	})
	if err != nil {
		return types.Transcript{}, err
	}
	return types.NewTranscript(n.language, segments), nil
}
