package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/akolanti/GoDocRAG/internal/domain/commonModels"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

const pageExtractTimeout = 10 * time.Second

func extractText(ctx context.Context, path string, contentType commonModels.DocType) ([]rawPage, error) {
	switch contentType {
	case commonModels.PDF:
		return extractPDFPages(ctx, path)
	case commonModels.DOCX, commonModels.TXT:
		return extractFlatText(path)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
}

// extractPDFPages keeps the 1-based page numbers the highlight renderer needs. Pages that fail
// or come back blank are skipped, the rest of the document still indexes.
func extractPDFPages(ctx context.Context, path string) ([]rawPage, error) {
	f, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := f.NumPage()
	pages := make([]rawPage, 0, numPages)
	skipped := 0
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := f.Page(i)
		if page.V.IsNull() {
			skipped++
			continue
		}
		content, err := pageText(ctx, page)
		if err != nil {
			logger.Warn("Skipping unreadable page", "page", i, "error", err)
			skipped++
			continue
		}
		content = normalizePageText(content)
		if content == "" {
			skipped++
			continue
		}
		pages = append(pages, rawPage{Number: i, Content: content})
	}
	logger.Debug("Extracted pdf", "pages", numPages, "skipped", skipped)
	return pages, nil
}

// pageText bounds one page's extraction. The pdf reader panics on some malformed content
// streams, which is turned into an error.
func pageText(ctx context.Context, page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("malformed page: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	timer := time.NewTimer(pageExtractTimeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-timer.C:
		return "", fmt.Errorf("page extraction timed out after %s", pageExtractTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// extractFlatText handles .docx, .odt, .rtf and plain text. These carry no page layout, so the
// whole text lands on page 1.
func extractFlatText(path string) ([]rawPage, error) {
	text, err := cat.File(path)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	text = normalizePageText(text)
	if text == "" {
		return nil, nil
	}
	return []rawPage{{Number: 1, Content: text}}, nil
}

// normalizePageText drops control characters and collapses runs of blank lines and spaces.
func normalizePageText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.FieldsFunc(line, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsControl(r)
		}), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
