package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"quickscribe/internal/delivery"
	"quickscribe/internal/logger"
	"quickscribe/internal/transcription"
	"quickscribe/internal/types"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ErrNoInput is reported when neither a URL nor a local path was resolved.
var ErrNoInput = errors.New("No input file provided")

type Stage string

const (
	StageInput      Stage = "input"
	StageAudio      Stage = "audio"
	StageTranscribe Stage = "transcribe"
	StageDocument   Stage = "document"
	StageDelivery   Stage = "delivery"
)

var stagePrefix = map[Stage]string{
	StageInput:      "Failed to read input",
	StageAudio:      "Failed to get audio",
	StageTranscribe: "Transcription failed",
	StageDocument:   "DOCX generation failed",
	StageDelivery:   "Email sending failed",
}

// StageError records which stage failed. Its message is the one shown to the user.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if errors.Is(e.Err, ErrNoInput) {
		return ErrNoInput.Error()
	}
	return fmt.Sprintf("%s: %v", stagePrefix[e.Stage], e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type Resolver interface {
	Resolve(ctx context.Context) (types.JobConfig, error)
}

type Acquirer interface {
	Acquire(ctx context.Context, job types.JobConfig) (types.AudioAsset, error)
}

type DocumentWriter interface {
	Write(tr types.Transcript) (string, error)
}

// TranscriberLoader builds the transcriber when the transcribe stage starts,
// so model loading failures surface as transcription failures.
type TranscriberLoader func(ctx context.Context) (transcription.Transcriber, error)

// Deps wires the stages together.
type Deps struct {
	Resolver    Resolver
	Acquirer    Acquirer
	Transcriber TranscriberLoader
	Writer      DocumentWriter
	Sender      delivery.Sender
}

type Pipeline struct {
	deps      Deps
	keepAudio bool
	status    *StatusWriter
	log       *logger.Logger
}

// New builds a pipeline that prints status objects to out. log is expected to be
// the run-scoped logger shared with the stage implementations.
func New(deps Deps, keepAudio bool, out io.Writer, log *logger.Logger) *Pipeline {
	return &Pipeline{
		deps:      deps,
		keepAudio: keepAudio,
		status:    NewStatusWriter(out),
		log:       log,
	}
}

// Run executes resolve, acquire, transcribe, write and deliver in order and
// returns the process exit code. Only delivery failures leave it at ExitOK.
func (p *Pipeline) Run(ctx context.Context) int {
	job, docPath, err := p.produce(ctx)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			p.log.WithError(se.Err).WithField("stage", se.Stage).Error("pipeline aborted")
		}
		p.status.Error(err.Error())
		return ExitFailure
	}

	p.deliver(ctx, job, docPath)
	return ExitOK
}

func (p *Pipeline) produce(ctx context.Context) (types.JobConfig, string, error) {
	job, err := p.deps.Resolver.Resolve(ctx)
	if err != nil {
		return job, "", &StageError{Stage: StageInput, Err: err}
	}
	if !job.HasSource() {
		return job, "", &StageError{Stage: StageInput, Err: ErrNoInput}
	}

	asset, err := p.deps.Acquirer.Acquire(ctx, job)
	if err != nil {
		return job, "", &StageError{Stage: StageAudio, Err: err}
	}
	p.log.WithField("path", asset.Path).WithField("temporary", asset.Temporary).Info("audio ready")

	tr, err := p.transcribe(ctx, asset.Path)
	p.release(asset)
	if err != nil {
		return job, "", &StageError{Stage: StageTranscribe, Err: err}
	}
	p.log.WithField("segments", len(tr.Segments)).WithField("language", tr.Language).Info("transcription complete")

	docPath, err := p.deps.Writer.Write(tr)
	if err != nil {
		return job, "", &StageError{Stage: StageDocument, Err: err}
	}
	return job, docPath, nil
}

func (p *Pipeline) transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	t, err := p.deps.Transcriber(ctx)
	if err != nil {
		return types.Transcript{}, err
	}
	return t.Transcribe(ctx, audioPath)
}

// release drops downloaded audio once transcription is over, unless kept for debugging.
func (p *Pipeline) release(asset types.AudioAsset) {
	if !asset.Temporary {
		return
	}
	if p.keepAudio {
		p.log.WithField("path", asset.Path).Info("keeping downloaded audio")
		return
	}
	if err := asset.Cleanup(); err != nil {
		p.log.WithError(err).Warn("could not remove downloaded audio")
	}
}

func (p *Pipeline) deliver(ctx context.Context, job types.JobConfig, docPath string) {
	if job.Email == "" {
		p.status.Success("No email provided. Transcript saved at: " + docPath)
		return
	}
	if err := p.deps.Sender.Send(ctx, docPath, job.Email); err != nil {
		se := &StageError{Stage: StageDelivery, Err: err}
		p.log.WithError(err).Warn("delivery failed, document kept on disk")
		p.status.Error(se.Error())
		return
	}
	p.status.Success("Transcript sent to " + job.Email)
}
