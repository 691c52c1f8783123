//go:build !whisper

package transcription

import (
	"errors"

	"quickscribe/internal/logger"
)

func newNative(_ *ModelStore, _ Profile, _ string, _ *logger.Logger) (Transcriber, error) {
	return nil, errors.New("native whisper backend not compiled (build with: go build -tags whisper)")
}
