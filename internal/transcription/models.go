package transcription

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"quickscribe/internal/progress"
)

// DefaultModelBaseURL hosts the ggml conversions of the whisper checkpoints.
const DefaultModelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// ModelStore resolves ggml model files in a directory, downloading missing ones.
type ModelStore struct {
	dir      string
	baseURL  string
	client   *http.Client
	progress io.Writer
}

func NewModelStore(dir string, client *http.Client, progressOut io.Writer) *ModelStore {
	if client == nil {
		client = &http.Client{}
	}
	return &ModelStore{dir: dir, baseURL: DefaultModelBaseURL, client: client, progress: progressOut}
}

// Dir is the directory models are stored in.
func (s *ModelStore) Dir() string { return s.dir }

// ModelID maps a model name such as "tiny" to its ggml id "ggml-tiny".
func ModelID(name string) string {
	return "ggml-" + strings.TrimSuffix(strings.TrimPrefix(name, "ggml-"), ".bin")
}

// Ensure returns the path of the named model, fetching it first when absent.
// A name that points at an existing file is used as is.
func (s *ModelStore) Ensure(ctx context.Context, name string) (string, error) {
	if strings.HasSuffix(name, ".bin") || strings.ContainsRune(name, filepath.Separator) {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	file := ModelID(name) + ".bin"
	path := filepath.Join(s.dir, file)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create models dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+file, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download model %s: %w", file, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download model %s: HTTP %d", file, resp.StatusCode)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create model file: %w", err)
	}
	_, err = progress.Copy(f, resp.Body, resp.ContentLength, file, s.progress)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename model: %w", err)
	}
	return path, nil
}
