package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// PDFToText shells out to poppler's pdftotext, reading the document from
// stdin and the text from stdout.
type PDFToText struct {
	Binary string
}

func NewPDFToText() *PDFToText { return &PDFToText{Binary: "pdftotext"} }

func (p *PDFToText) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", errors.New("document: empty pdf")
	}
	cmd := exec.CommandContext(ctx, p.Binary, "-layout", "-enc", "UTF-8", "-", "-")
	cmd.Stdin = bytes.NewReader(pdf)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("document: pdftotext: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return normalize(stdout.String()), nil
}

// normalize collapses the layout padding pdftotext emits into single spaces
// while keeping one newline per non-empty line.
func normalize(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\f", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if f := strings.Fields(l); len(f) > 0 {
			out = append(out, strings.Join(f, " "))
		}
	}
	return strings.Join(out, "\n")
}
