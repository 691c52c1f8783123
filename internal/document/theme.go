package document

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/fumiama/go-docx"
)

const themeName = "quickscribe"

// titleStyle mirrors Word's built-in Title paragraph style, which the default
// go-docx theme lacks.
const titleStyle = `<w:style w:type="paragraph" w:styleId="Title">` +
	`<w:name w:val="Title"/><w:basedOn w:val="a"/><w:next w:val="a"/><w:uiPriority w:val="10"/><w:qFormat/>` +
	`<w:pPr><w:spacing w:after="80" w:line="240" w:lineRule="auto"/><w:contextualSpacing/></w:pPr>` +
	`<w:rPr><w:b/><w:bCs/><w:kern w:val="28"/><w:sz w:val="56"/><w:szCs w:val="56"/></w:rPr>` +
	`</w:style>`

// themeFS serves go-docx's default theme with titleStyle added to word/styles.xml.
type themeFS struct {
	styles []byte
}

func newThemeFS() (themeFS, error) {
	raw, err := fs.ReadFile(docx.TemplateXMLFS, "xml/default/word/styles.xml")
	if err != nil {
		return themeFS{}, fmt.Errorf("read default styles: %w", err)
	}
	i := bytes.LastIndex(raw, []byte("</w:styles>"))
	if i < 0 {
		return themeFS{}, fmt.Errorf("default styles: missing </w:styles>")
	}
	styles := make([]byte, 0, len(raw)+len(titleStyle))
	styles = append(styles, raw[:i]...)
	styles = append(styles, titleStyle...)
	styles = append(styles, raw[i:]...)
	return themeFS{styles: styles}, nil
}

func (t themeFS) Open(name string) (fs.File, error) {
	rel, ok := strings.CutPrefix(name, "xml/"+themeName+"/")
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if rel == "word/styles.xml" {
		return memFile{Reader: bytes.NewReader(t.styles), name: path.Base(rel)}, nil
	}
	return docx.TemplateXMLFS.Open("xml/default/" + rel)
}

type memFile struct {
	*bytes.Reader
	name string
}

func (f memFile) Close() error { return nil }

func (f memFile) Stat() (fs.FileInfo, error) { return f, nil }

func (f memFile) Name() string       { return f.name }
func (f memFile) Size() int64        { return f.Reader.Size() }
func (f memFile) Mode() fs.FileMode  { return 0o444 }
func (f memFile) ModTime() time.Time { return time.Time{} }
func (f memFile) IsDir() bool        { return false }
func (f memFile) Sys() any           { return nil }
