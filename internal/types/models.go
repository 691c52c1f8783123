package types

import (
	"os"
	"strings"
	"time"
)

// JobConfig is the resolved input of one run.
type JobConfig struct {
	Email     string `json:"email,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
	LocalPath string `json:"local_path,omitempty"`
}

// HasSource reports whether a URL or a local path was supplied.
func (j JobConfig) HasSource() bool {
	return j.SourceURL != "" || j.LocalPath != ""
}

// AudioAsset points at the audio file handed to the transcriber.
type AudioAsset struct {
	Path      string `json:"path"`
	Temporary bool   `json:"temporary"`
}

// Cleanup removes downloaded assets. Local files are never touched.
func (a AudioAsset) Cleanup() error {
	if !a.Temporary || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
	Text     string    `json:"text"`
}

// JoinSegments concatenates segment texts in order, each followed by a newline.
func JoinSegments(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// NewTranscript builds a Transcript whose Text is derived from segments.
func NewTranscript(language string, segments []Segment) Transcript {
	return Transcript{Language: language, Segments: segments, Text: JoinSegments(segments)}
}

// Status is the informal key/value object printed on success and failure paths.
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
