package transcription

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"quickscribe/internal/config"
	"quickscribe/internal/logger"
	"quickscribe/internal/types"
)

// Transcriber turns an audio file into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (types.Transcript, error)
}

// Profile is the model/batch trade-off picked from the available hardware.
type Profile struct {
	Device      string `json:"device"`
	Model       string `json:"model"`
	ComputeType string `json:"compute_type"`
	BatchSize   int    `json:"batch_size"`
}

// SelectProfile picks the large model for accelerated hosts and the smallest one
// otherwise. A non-empty modelOverride replaces the model name only.
func SelectProfile(accelerated bool, modelOverride string) Profile {
	p := Profile{Device: config.DeviceCPU, Model: "tiny", ComputeType: "float32", BatchSize: 4}
	if accelerated {
		p = Profile{Device: config.DeviceCUDA, Model: "large-v2", ComputeType: "float16", BatchSize: 16}
	}
	if m := strings.TrimSpace(modelOverride); m != "" {
		p.Model = m
	}
	return p
}

// DetectAccelerator resolves the device setting. "auto" asks nvidia-smi.
func DetectAccelerator(ctx context.Context, device string, runner commandRunner) bool {
	switch device {
	case config.DeviceCUDA:
		return true
	case config.DeviceCPU:
		return false
	}
	res, err := runner.Run(ctx, "nvidia-smi", "-L")
	if err != nil {
		return false
	}
	return strings.Contains(res.Stdout, "GPU")
}

// Options carries process-level collaborators shared by the backends.
type Options struct {
	Progress   io.Writer
	HTTPClient *http.Client
}

// New builds the configured backend and reports the profile it will use.
func New(ctx context.Context, cfg config.Transcription, log *logger.Logger, opts Options) (Transcriber, Profile, error) {
	log = log.WithComponent("transcription")
	runner := &execRunner{}

	switch cfg.Backend {
	case config.BackendOpenAI:
		p := Profile{Device: "remote", Model: cfg.OpenAIModel}
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.Language, log), p, nil
	case config.BackendWhisperCpp, "":
		p := SelectProfile(DetectAccelerator(ctx, cfg.Device, runner), cfg.Model)
		logProfile(log, p)
		models := NewModelStore(cfg.ModelDir, opts.HTTPClient, opts.Progress)
		return NewWhisperCpp(cfg.FFmpegBin, cfg.WhisperBin, models, p, cfg.Language, log), p, nil
	case config.BackendNative:
		p := SelectProfile(DetectAccelerator(ctx, cfg.Device, runner), cfg.Model)
		logProfile(log, p)
		models := NewModelStore(cfg.ModelDir, opts.HTTPClient, opts.Progress)
		t, err := newNative(models, p, cfg.Language, log)
		return t, p, err
	default:
		return nil, Profile{}, fmt.Errorf("unknown transcription backend: %s", cfg.Backend)
	}
}

func logProfile(log *logger.Logger, p Profile) {
	entry := log.WithField("model", p.Model).WithField("compute_type", p.ComputeType).WithField("batch_size", p.BatchSize)
	if p.Device == config.DeviceCUDA {
		entry.Info("GPU detected: loading full whisper model")
		return
	}
	entry.Info("No GPU detected: loading smallest whisper model")
}
