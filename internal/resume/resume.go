// Package resume turns an uploaded resume into plain text.
package resume

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrEmpty       = errors.New("resume contains no readable text")
	ErrUnsupported = errors.New("unsupported resume format")
	ErrUnreadable  = errors.New("resume could not be read")
)

var pdfMagic = []byte("%PDF-")

// Extract returns the text of a PDF or plain text resume. The format is taken
// from the file extension, falling back to content sniffing.
func Extract(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(filename)); {
	case ext == ".pdf" || bytes.HasPrefix(data, pdfMagic):
		text, err = fromPDF(data)
	case ext == "" || ext == ".txt" || ext == ".md" || ext == ".text":
		text, err = fromText(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

func fromText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", ErrUnsupported)
	}
	return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
}

// fromPDF reports every parser failure as ErrUnreadable. The pdf package
// panics on some malformed inputs.
func fromPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", ErrUnreadable, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", ErrUnreadable, err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", ErrUnreadable, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", ErrUnreadable, err)
	}
	return buf.String(), nil
}
