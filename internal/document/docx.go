package document

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fumiama/go-docx"

	"quickscribe/internal/logger"
	"quickscribe/internal/types"
)

const (
	// FileName is fixed; each run overwrites the previous document.
	FileName = "transcript.docx"
	Heading  = "Transcript"

	// TitleStyle is the paragraph style of the heading, as in Word's level-0 heading.
	TitleStyle = "Title"

	// ContentType is the MIME type of FileName.
	ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Writer renders transcripts into the output directory.
type Writer struct {
	dir          string
	segmentsXLSX bool
	log          *logger.Logger
}

func NewWriter(dir string, segmentsXLSX bool, log *logger.Logger) *Writer {
	return &Writer{dir: dir, segmentsXLSX: segmentsXLSX, log: log.WithComponent("document")}
}

// Write saves the transcript as <dir>/transcript.docx and returns its path.
func (w *Writer) Write(tr types.Transcript) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(w.dir, FileName)
	if err := writeDocx(path, tr.Text); err != nil {
		return "", err
	}
	w.log.WithField("path", path).WithField("segments", len(tr.Segments)).Info("document saved")

	if w.segmentsXLSX {
		xlsxPath := filepath.Join(w.dir, SegmentsFileName)
		if err := writeSegments(xlsxPath, tr.Segments); err != nil {
			return "", err
		}
		w.log.WithField("path", xlsxPath).Info("segment workbook saved")
	}
	return path, nil
}

func writeDocx(path, text string) error {
	theme, err := newThemeFS()
	if err != nil {
		return err
	}
	doc := docx.New().UseTemplate(themeName, docx.DefaultTemplateFilesList, theme)

	doc.AddParagraph().Style(TitleStyle).AddText(Heading)
	doc.AddParagraph().AddText(text)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", FileName, err)
	}
	if _, err := doc.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", FileName, err)
	}
	return f.Close()
}
