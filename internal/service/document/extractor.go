// Package document turns uploaded files into plain text and splits that text
// into overlapping fragments.
package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Supported extensions, lower-case with the leading dot.
const (
	ExtPDF  = ".pdf"
	ExtDOCX = ".docx"
	ExtDOC  = ".doc"
)

// ErrUnsupportedFormat is returned for extensions outside the allow-set.
var ErrUnsupportedFormat = errors.New("unsupported file type, only PDF, DOCX, or DOC files are allowed")

// Extension returns the lower-cased extension of filename if it is
// supported.
func Extension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ExtPDF, ExtDOCX, ExtDOC:
		return ext, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Extractor converts supported binary formats to text.
type Extractor struct {
	antiwordPath string
}

// NewExtractor creates an Extractor. antiwordPath locates the binary used for
// legacy .doc files.
func NewExtractor(antiwordPath string) *Extractor {
	if antiwordPath == "" {
		antiwordPath = "antiword"
	}
	return &Extractor{antiwordPath: antiwordPath}
}

// Extract returns the text content of data, interpreted according to ext.
func (e *Extractor) Extract(ctx context.Context, ext string, data []byte) (string, error) {
	switch ext {
	case ExtPDF:
		return extractPDF(data)
	case ExtDOCX:
		return extractDOCX(data)
	case ExtDOC:
		return e.extractDOC(ctx, data)
	default:
		return "", ErrUnsupportedFormat
	}
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// extractDOCX walks word/document.xml and emits one line per paragraph.
func extractDOCX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var body *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("open docx: word/document.xml not found")
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("open docx body: %w", err)
	}
	defer rc.Close()

	var (
		out    strings.Builder
		inText bool
	)
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				out.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}
	return out.String(), nil
}

func (e *Extractor) extractDOC(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*.doc")
	if err != nil {
		return "", fmt.Errorf("stage doc: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("stage doc: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("stage doc: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.antiwordPath, tmp.Name())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("antiword failed, ensure antiword is installed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.ToValidUTF8(stdout.String(), ""), nil
}
