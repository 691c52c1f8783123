package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"quickscribe/internal/config"
	"quickscribe/internal/logger"
	"quickscribe/internal/types"
)

// WhisperCpp decodes audio with ffmpeg and runs the whisper.cpp CLI on it.
type WhisperCpp struct {
	ffmpegPath  string
	whisperPath string
	models      *ModelStore
	profile     Profile
	language    string
	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	removeAll   func(path string) error
	log         *logger.Logger
}

func NewWhisperCpp(ffmpegPath, whisperPath string, models *ModelStore, profile Profile, language string, log *logger.Logger) *WhisperCpp {
	return &WhisperCpp{
		ffmpegPath:  ffmpegPath,
		whisperPath: whisperPath,
		models:      models,
		profile:     profile,
		language:    language,
		runner:      &execRunner{},
		mkdirTemp:   os.MkdirTemp,
		removeAll:   os.RemoveAll,
		log:         log,
	}
}

// whisper.cpp -oj output, reduced to the fields we read.
type cppOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (w *WhisperCpp) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	modelPath, err := w.models.Ensure(ctx, w.profile.Model)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("load model %s: %w", w.profile.Model, err)
	}

	tempDir, err := w.mkdirTemp("", "quickscribe-*")
	if err != nil {
		return types.Transcript{}, fmt.Errorf("create workspace: %w", err)
	}
	defer w.removeAll(tempDir)

	wavPath := filepath.Join(tempDir, "audio-16k-mono.wav")
	if res, err := w.runner.Run(ctx, w.ffmpegPath, buildFFmpegArgs(audioPath, wavPath)...); err != nil {
		return types.Transcript{}, fmt.Errorf("decode audio: %w: %s", err, lastLine(res.Stderr))
	}

	outBase := filepath.Join(tempDir, "transcript")
	args := buildWhisperArgs(modelPath, wavPath, outBase, w.language, w.profile)
	w.log.WithField("command", w.whisperPath+" "+strings.Join(args, " ")).Debug("running whisper.cpp")
	if res, err := w.runner.Run(ctx, w.whisperPath, args...); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp: %w: %s", err, lastLine(res.Stderr))
	}

	raw, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return types.Transcript{}, fmt.Errorf("read whisper output: %w", err)
	}
	return parseCppOutput(raw)
}

func parseCppOutput(raw []byte) (types.Transcript, error) {
	var out cppOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("parse whisper output: %w", err)
	}
	segments := make([]types.Segment, 0, len(out.Transcription))
	for _, s := range out.Transcription {
		segments = append(segments, types.Segment{
			Start: time.Duration(s.Offsets.From) * time.Millisecond,
			End:   time.Duration(s.Offsets.To) * time.Millisecond,
			Text:  s.Text,
		})
	}
	return types.NewTranscript(out.Result.Language, segments), nil
}

// buildFFmpegArgs converts any container to 16 kHz mono PCM, whisper's input format.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

// buildWhisperArgs maps the profile onto whisper.cpp flags. The batch size
// becomes the processor count, bounded by the host's CPUs.
func buildWhisperArgs(modelPath, audioPath, outBase, language string, p Profile) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
		"-np",
		"-p", strconv.Itoa(lo.Clamp(p.BatchSize, 1, runtime.NumCPU())),
	}
	if p.Device != config.DeviceCUDA {
		args = append(args, "-ng")
	}
	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

// normalizeLanguage maps "auto" and empty language to no CLI override.
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
