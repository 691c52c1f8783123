package document

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fumiama/go-docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"quickscribe/internal/logger"
	"quickscribe/internal/types"
)

// readParagraphs returns the text of every paragraph in the document body.
func readParagraphs(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	doc, err := docx.Parse(f, info.Size())
	require.NoError(t, err)

	var out []string
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			out = append(out, p.String())
		}
	}
	return out
}

func TestWriteCreatesDirAndDocument(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	w := NewWriter(dir, false, logger.Discard())

	tr := types.NewTranscript("en", []types.Segment{
		{Start: 0, End: time.Second, Text: "first line"},
		{Start: time.Second, End: 2 * time.Second, Text: "second line"},
	})
	path, err := w.Write(tr)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	paras := readParagraphs(t, path)
	require.Len(t, paras, 2)
	assert.Equal(t, Heading, paras[0])
	assert.Equal(t, "first line\nsecond line\n", paras[1])

	_, err = os.Stat(filepath.Join(dir, SegmentsFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteHeadingUsesDefinedTitleStyle(t *testing.T) {
	path, err := NewWriter(t.TempDir(), false, logger.Discard()).Write(types.NewTranscript("", nil))
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	doc, err := docx.Parse(f, info.Size())
	require.NoError(t, err)
	heading, ok := doc.Document.Body.Items[0].(*docx.Paragraph)
	require.True(t, ok)
	require.NotNil(t, heading.Properties)
	require.NotNil(t, heading.Properties.Style)
	assert.Equal(t, TitleStyle, heading.Properties.Style.Val)

	zr, err := zip.NewReader(f, info.Size())
	require.NoError(t, err)
	styles, err := zr.Open("word/styles.xml")
	require.NoError(t, err)
	defer styles.Close()
	raw, err := io.ReadAll(styles)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `w:styleId="Title"`)
	assert.Contains(t, string(raw), `w:styleId="a"`, "default styles kept")
}

func TestThemeFSServesDefaultFiles(t *testing.T) {
	theme, err := newThemeFS()
	require.NoError(t, err)
	for _, name := range docx.DefaultTemplateFilesList {
		f, err := theme.Open("xml/" + themeName + "/" + name)
		require.NoError(t, err, name)
		_, err = f.Stat()
		assert.NoError(t, err, name)
		require.NoError(t, f.Close())
	}
	_, err = theme.Open("xml/default/word/styles.xml")
	assert.Error(t, err)
}

func TestWriteZeroSegments(t *testing.T) {
	w := NewWriter(t.TempDir(), false, logger.Discard())
	path, err := w.Write(types.NewTranscript("", nil))
	require.NoError(t, err)

	paras := readParagraphs(t, path)
	require.Len(t, paras, 2)
	assert.Equal(t, Heading, paras[0])
	assert.Equal(t, "", paras[1])
}

func TestWriteOverwrites(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, false, logger.Discard())

	_, err := w.Write(types.NewTranscript("", []types.Segment{{Text: "old"}}))
	require.NoError(t, err)
	path, err := w.Write(types.NewTranscript("", []types.Segment{{Text: "new"}}))
	require.NoError(t, err)

	assert.Equal(t, "new\n", readParagraphs(t, path)[1])
}

func TestWriteFailsWhenDirIsFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := NewWriter(blocker, false, logger.Discard()).Write(types.Transcript{})
	require.Error(t, err)
}

func TestWriteSegmentsWorkbook(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, true, logger.Discard())

	_, err := w.Write(types.NewTranscript("en", []types.Segment{
		{Start: 0, End: 1500 * time.Millisecond, Text: "hello"},
		{Start: 1500 * time.Millisecond, End: 3 * time.Second, Text: "world"},
	}))
	require.NoError(t, err)

	f, err := excelize.OpenFile(filepath.Join(dir, SegmentsFileName))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SegmentsSheet}, f.GetSheetList())
	rows, err := f.GetRows(SegmentsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Start", "End", "Text"}, rows[0])
	assert.Equal(t, []string{"0", "1.5", "hello"}, rows[1])
	assert.Equal(t, []string{"1.5", "3", "world"}, rows[2])
}
