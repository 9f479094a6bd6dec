// Package extract turns uploaded PDF bytes into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned for payloads that do not carry a PDF header.
var ErrNotPDF = errors.New("not a PDF document")

// Result is the extracted text of a document and its page count.
type Result struct {
	Text      string
	PageCount int
}

// IsPDFName reports whether a filename has a .pdf extension.
func IsPDFName(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".pdf")
}

// PDF extracts plain text from an in-memory PDF. Libraries used:
// github.com/ledongthuc/pdf.
func PDF(ctx context.Context, data []byte) (res Result, err error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return Result{}, ErrNotPDF
	}

	// The reader panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("extract pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("extract pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return Result{}, fmt.Errorf("extract pdf: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return Result{}, fmt.Errorf("extract pdf: %w", err)
	}

	return Result{
		Text:      buf.String(),
		PageCount: reader.NumPage(),
	}, nil
}
