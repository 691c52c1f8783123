package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"quickscribe/internal/audio"
	"quickscribe/internal/config"
	"quickscribe/internal/delivery"
	"quickscribe/internal/document"
	"quickscribe/internal/input"
	"quickscribe/internal/logger"
	"quickscribe/internal/pipeline"
	"quickscribe/internal/transcription"
	"quickscribe/internal/types"
)

func main() {
	_ = godotenv.Load() // loads .env

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath     string
	local          string
	url            string
	email          string
	outputDir      string
	backend        string
	device         string
	model          string
	keepAudio      bool
	nonInteractive bool
	segmentsXLSX   bool
	progress       bool
}

// usageError marks failures that happen before the pipeline starts.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	code := pipeline.ExitOK
	cmd := newRootCmd(stdin, stdout, stderr, &code)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return pipeline.ExitUsage
	}
	return code
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer, code *int) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "quickscribe",
		Short: "Transcribe a recording into a DOCX and optionally email it",
		Long: `quickscribe fetches a recording (Zoom URL or local MP3/MP4), transcribes it with
whisper, writes transcript.docx to the output directory and, when a customer email
is known, sends the document through the configured SMTP relay.

Settings come from defaults, an optional YAML file, the environment (.env is
loaded first) and finally these flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return usageError{err}
			}
			*code = run(cmd.Context(), cfg, stdin, stdout, stderr)
			return nil
		},
	}
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML config file (env QUICKSCRIBE_CONFIG)")
	f.StringVar(&opts.local, "local", "", "local MP3/MP4 file (env LOCAL_FILE)")
	f.StringVar(&opts.url, "url", "", "recording URL (env ZOOM_URL)")
	f.StringVar(&opts.email, "email", "", "customer email to send the transcript to (env CUSTOMER_EMAIL)")
	f.StringVar(&opts.outputDir, "output-dir", "", "directory for transcript.docx (env OUTPUT_DIR)")
	f.StringVar(&opts.backend, "backend", "", "transcription backend: whispercpp, openai or native (env TRANSCRIBE_BACKEND)")
	f.StringVar(&opts.device, "device", "", "auto, cpu or cuda (env WHISPER_DEVICE)")
	f.StringVar(&opts.model, "model", "", "whisper model override (env WHISPER_MODEL)")
	f.BoolVar(&opts.keepAudio, "keep-audio", false, "keep downloaded audio after transcription (env KEEP_AUDIO)")
	f.BoolVar(&opts.nonInteractive, "non-interactive", false, "never prompt for missing input (env QUICKSCRIBE_NON_INTERACTIVE)")
	f.BoolVar(&opts.segmentsXLSX, "segments-xlsx", false, "also write transcript_segments.xlsx (env SEGMENTS_XLSX)")
	f.BoolVar(&opts.progress, "progress", false, "force download progress bars on stderr")
	return cmd
}

// loadConfig layers flags that were explicitly set over file and environment.
func loadConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv("QUICKSCRIBE_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	changed := cmd.Flags().Changed
	set := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	set("local", &cfg.Job.LocalFile, opts.local)
	set("url", &cfg.Job.SourceURL, opts.url)
	set("email", &cfg.Job.CustomerEmail, opts.email)
	set("output-dir", &cfg.Output.Dir, opts.outputDir)
	set("backend", &cfg.Transcription.Backend, opts.backend)
	set("device", &cfg.Transcription.Device, opts.device)
	set("model", &cfg.Transcription.Model, opts.model)
	if changed("keep-audio") {
		cfg.Audio.Keep = opts.keepAudio
	}
	if changed("non-interactive") {
		cfg.Job.NonInteractive = opts.nonInteractive
	}
	if changed("segments-xlsx") {
		cfg.Output.SegmentsXLSX = opts.segmentsXLSX
	}
	if changed("progress") {
		cfg.Audio.Progress = opts.progress
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, stdin io.Reader, stdout, stderr io.Writer) int {
	log := logger.NewWithOutput(stderr, cfg.Log.Environment, cfg.Log.Level).WithRun("")
	log.WithField("service", "quickscribe").WithField("backend", cfg.Transcription.Backend).Info("starting run")

	sender, err := delivery.NewSMTPSender(cfg.SMTP, log)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return pipeline.ExitUsage
	}

	var progressOut io.Writer
	if cfg.Audio.Progress || (!cfg.Job.NonInteractive && isTerminal(stderr)) {
		progressOut = stderr
	}

	defaults := types.JobConfig{
		Email:     cfg.Job.CustomerEmail,
		SourceURL: cfg.Job.SourceURL,
		LocalPath: cfg.Job.LocalFile,
	}
	p := pipeline.New(pipeline.Deps{
		Resolver: input.NewResolver(defaults, cfg.Job.NonInteractive, stdin, stderr, log),
		Acquirer: audio.NewAcquirer(log, audio.WithTempDir(cfg.Audio.TempDir), audio.WithProgress(progressOut)),
		Transcriber: func(ctx context.Context) (transcription.Transcriber, error) {
			t, _, err := transcription.New(ctx, cfg.Transcription, log, transcription.Options{Progress: progressOut})
			return t, err
		},
		Writer: document.NewWriter(cfg.Output.Dir, cfg.Output.SegmentsXLSX, log),
		Sender: sender,
	}, cfg.Audio.Keep, stdout, log)

	code := p.Run(ctx)
	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("run interrupted")
	}
	return code
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}
