// Package pdfdoc extracts per-page text from PDF rulebooks.
package pdfdoc

import (
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ErrInvalidDocument indicates the input is not a parseable PDF.
var ErrInvalidDocument = errors.New("not a parseable PDF document")

// Page is the text of one PDF page. Number is 0-indexed.
type Page struct {
	Number int
	Text   string
	Source string
}

// Loader turns a readable PDF byte stream into per-page text blocks.
// Load is the production implementation; tests may substitute their own.
type Loader func(r io.ReaderAt, size int64, source string) ([]Page, error)

// Validate checks that the stream is a structurally well-formed PDF.
func Validate(r io.ReaderAt, size int64) error {
	_, err := newReader(r, size)
	return err
}

// Load parses the PDF and extracts the text of every page in order.
// Pages whose text layer cannot be decoded yield empty text rather than
// failing the whole document; extraction quality is a pass-through from
// the PDF text layer (no OCR).
func Load(r io.ReaderAt, size int64, source string) ([]Page, error) {
	reader, err := newReader(r, size)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		pages = append(pages, Page{
			Number: i - 1,
			Text:   pageText(p),
			Source: source,
		})
	}
	return pages, nil
}

func newReader(r io.ReaderAt, size int64) (reader *pdf.Reader, err error) {
	// The underlying parser panics on some malformed files instead of
	// returning an error.
	defer func() {
		if p := recover(); p != nil {
			reader = nil
			err = fmt.Errorf("%w: %v", ErrInvalidDocument, p)
		}
	}()

	reader, err = pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return reader, nil
}

func pageText(p pdf.Page) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	text, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
