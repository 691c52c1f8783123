package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"quickscribe/internal/logger"
	"quickscribe/internal/types"
)

const (
	promptChoice = "Do you want to use a local file or Zoom URL? [local/zoom]: "
	promptLocal  = "Enter local MP3/MP4 path: "
	promptURL    = "Enter Zoom recording URL: "
	promptEmail  = "Enter customer email (leave blank to skip sending email): "
)

// Resolver decides which recipient and source a run works on.
type Resolver struct {
	defaults       types.JobConfig
	nonInteractive bool
	in             *bufio.Reader
	out            io.Writer
	log            *logger.Logger
}

// NewResolver reads answers from in and writes prompts to out.
func NewResolver(defaults types.JobConfig, nonInteractive bool, in io.Reader, out io.Writer, log *logger.Logger) *Resolver {
	return &Resolver{
		defaults:       defaults,
		nonInteractive: nonInteractive,
		in:             bufio.NewReader(in),
		out:            out,
		log:            log.WithComponent("input"),
	}
}

// Resolve returns the configured job when it is complete, otherwise asks for it.
// Path existence and URL shape are not checked here.
func (r *Resolver) Resolve(ctx context.Context) (types.JobConfig, error) {
	d := r.defaults
	if d.Email != "" && d.HasSource() {
		r.log.Info("using configured email and source")
		return d, nil
	}
	if r.nonInteractive {
		r.log.Info("interactive prompts disabled, using configured values")
		return d, nil
	}

	fmt.Fprintln(r.out, "Interactive mode: provide input manually.")
	var job types.JobConfig

	choice, err := r.ask(ctx, promptChoice)
	if errors.Is(err, io.EOF) {
		r.log.Info("no interactive input, using configured values")
		return d, nil
	}
	if err != nil {
		return types.JobConfig{}, err
	}
	if strings.ToLower(choice) == "local" {
		if job.LocalPath, err = r.answer(ctx, promptLocal); err != nil {
			return types.JobConfig{}, err
		}
	} else {
		if job.SourceURL, err = r.answer(ctx, promptURL); err != nil {
			return types.JobConfig{}, err
		}
	}
	if job.Email, err = r.answer(ctx, promptEmail); err != nil {
		return types.JobConfig{}, err
	}

	r.log.WithField("local", job.LocalPath != "").WithField("email", job.Email != "").Info("interactive input collected")
	return job, nil
}

// ask prints the prompt and returns the trimmed answer. It returns io.EOF only
// when the input is exhausted before anything was typed.
func (r *Resolver) ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(r.out, prompt)
	line, err := r.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		if line == "" {
			return "", io.EOF
		}
		err = nil
	}
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// answer is ask with EOF counted as a blank answer.
func (r *Resolver) answer(ctx context.Context, prompt string) (string, error) {
	s, err := r.ask(ctx, prompt)
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return s, err
}
