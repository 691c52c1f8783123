package pipeline

import (
	"encoding/json"
	"io"

	"quickscribe/internal/types"
)

// StatusWriter prints one JSON status object per line.
type StatusWriter struct {
	enc *json.Encoder
}

func NewStatusWriter(w io.Writer) *StatusWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &StatusWriter{enc: enc}
}

func (s *StatusWriter) Success(message string) { s.write("success", message) }

func (s *StatusWriter) Error(message string) { s.write("error", message) }

func (s *StatusWriter) write(status, message string) {
	_ = s.enc.Encode(types.Status{Status: status, Message: message})
}
