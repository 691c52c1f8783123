package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"quickscribe/internal/logger"
	"quickscribe/internal/progress"
	"quickscribe/internal/types"
)

// TempSuffix is the fixed suffix of downloaded recordings.
const TempSuffix = ".mp4"

// Acquirer turns a job's source into a file on local storage.
type Acquirer struct {
	client   *http.Client
	tempDir  string
	progress io.Writer
	log      *logger.Logger
}

// Option customizes an Acquirer.
type Option func(*Acquirer)

// WithHTTPClient replaces the default client. The default has no timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Acquirer) { a.client = c }
}

// WithTempDir sets where downloads land; empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(a *Acquirer) { a.tempDir = dir }
}

// WithProgress renders a download bar on w.
func WithProgress(w io.Writer) Option {
	return func(a *Acquirer) { a.progress = w }
}

func NewAcquirer(log *logger.Logger, opts ...Option) *Acquirer {
	a := &Acquirer{
		client: &http.Client{},
		log:    log.WithComponent("audio"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire returns the local path unchanged or downloads the URL to a temp file.
// Local paths are not checked for existence.
func (a *Acquirer) Acquire(ctx context.Context, job types.JobConfig) (types.AudioAsset, error) {
	if job.LocalPath != "" {
		a.log.WithField("path", job.LocalPath).Info("using local audio file")
		return types.AudioAsset{Path: job.LocalPath}, nil
	}
	if job.SourceURL == "" {
		return types.AudioAsset{}, fmt.Errorf("no audio source")
	}
	return a.download(ctx, job.SourceURL)
}

func (a *Acquirer) download(ctx context.Context, url string) (types.AudioAsset, error) {
	log := a.log.WithField("url", url)
	log.Info("downloading recording")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.AudioAsset{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return types.AudioAsset{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.AudioAsset{}, fmt.Errorf("%d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), url)
	}

	f, err := os.CreateTemp(a.tempDir, "quickscribe-*"+TempSuffix)
	if err != nil {
		return types.AudioAsset{}, fmt.Errorf("create temp file: %w", err)
	}
	n, err := progress.Copy(f, resp.Body, resp.ContentLength, "download", a.progress)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return types.AudioAsset{}, fmt.Errorf("write %s: %w", f.Name(), err)
	}

	log.WithField("path", f.Name()).WithField("bytes", n).Info("recording downloaded")
	return types.AudioAsset{Path: f.Name(), Temporary: true}, nil
}
