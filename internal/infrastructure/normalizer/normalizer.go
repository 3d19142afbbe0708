package normalizer

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/loandesk/loan-doc-processor/internal/core/domain"
)

// Normalizer converts uploaded bytes into the uniform representation the
// extraction stage consumes. Dispatch is by filename extension; declared MIME
// types are untrustworthy for this purpose.
type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Normalize(_ context.Context, filename string, data []byte) (domain.NormalizedDocument, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "pdf":
		text, err := extractPDFText(data)
		if err != nil {
			return domain.NormalizedDocument{}, domain.WrapError(domain.ErrEmptyDocument, "read pdf", err)
		}
		return textDocument(filename, text)
	case "docx":
		text, err := extractDocxText(data)
		if err != nil {
			return domain.NormalizedDocument{}, domain.WrapError(domain.ErrEmptyDocument, "read docx", err)
		}
		return textDocument(filename, text)
	case "png":
		return imageDocument(filename, data, "image/png")
	case "jpg", "jpeg":
		return imageDocument(filename, data, "image/jpeg")
	default:
		return domain.NormalizedDocument{}, domain.WrapError(domain.ErrUnsupportedFormat, "normalize document", fmt.Errorf("extension %q", ext))
	}
}

func textDocument(filename, text string) (domain.NormalizedDocument, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.NormalizedDocument{}, domain.WrapError(domain.ErrEmptyDocument, "normalize document", fmt.Errorf("no text extracted from %s", filename))
	}
	return domain.NormalizedDocument{Filename: filename, Text: text}, nil
}

func imageDocument(filename string, data []byte, mime string) (domain.NormalizedDocument, error) {
	if len(data) == 0 {
		return domain.NormalizedDocument{}, domain.WrapError(domain.ErrEmptyDocument, "normalize document", fmt.Errorf("empty image %s", filename))
	}
	return domain.NormalizedDocument{
		Filename:   filename,
		PageImages: [][]byte{data},
		ImageMIME:  mime,
	}, nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// extractDocxText walks word/document.xml of the OOXML package and collects
// the text runs, one line per paragraph.
func extractDocxText(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	var document *zip.File
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			document = file
			break
		}
	}
	if document == nil {
		return "", fmt.Errorf("word/document.xml not found")
	}

	content, err := document.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer content.Close()

	decoder := xml.NewDecoder(content)
	var builder strings.Builder
	inTextRun := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode document.xml: %w", err)
		}
		switch element := token.(type) {
		case xml.StartElement:
			if element.Name.Local == "t" {
				inTextRun = true
			}
		case xml.EndElement:
			switch element.Name.Local {
			case "t":
				inTextRun = false
			case "p":
				builder.WriteString("\n")
			}
		case xml.CharData:
			if inTextRun {
				builder.Write(element)
			}
		}
	}
	return builder.String(), nil
}
