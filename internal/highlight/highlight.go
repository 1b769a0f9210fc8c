// Package highlight renders a source PDF with highlight annotations over cited regions.
package highlight

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
)

const keyPrefix = "pdf_hl:"

var (
	ErrInvalidRequest = errors.New("invalid highlight request")
	ErrFetchFailed    = errors.New("fetching pdf failed")
)

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cache is the byte cache in front of rendering. Reads fail open.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Rect is a PDF user-space rectangle with a bottom-left origin.
type Rect struct {
	LLX, LLY, URX, URY float64
}

// Document is an opened PDF that highlights can be added to.
type Document interface {
	PageCount() int
	PageHeight(page int) (float64, error)
	AddHighlight(page int, r Rect) error
	Bytes() ([]byte, error)
}

type Opener interface {
	Open(pdf []byte) (Document, error)
}

type Renderer struct {
	client Doer
	cache  Cache
	opener Opener
	ttl    time.Duration
	logger *logger_i.Logger
}

// NewRenderer accepts a nil cache, which renders every request.
func NewRenderer(client Doer, cache Cache, opener Opener, ttl time.Duration) *Renderer {
	return &Renderer{
		client: client,
		cache:  cache,
		opener: opener,
		ttl:    ttl,
		logger: logger_i.NewLogger("PDF Highlight"),
	}
}

// CacheKey is pdf_hl:<sha1(url)[:10]>:p<page>:<sha1(sorted bboxes json)[:10]>.
func CacheKey(documentURL string, page int, bboxes []ragModel.BBox) string {
	sorted := slices.Clone(bboxes)
	slices.SortFunc(sorted, func(a, b ragModel.BBox) int {
		for i := range a {
			if a[i] != b[i] {
				if a[i] < b[i] {
					return -1
				}
				return 1
			}
		}
		return 0
	})
	encoded, _ := json.Marshal(sorted)
	return keyPrefix + sha1Prefix([]byte(documentURL)) + ":p" + strconv.Itoa(page) + ":" + sha1Prefix(encoded)
}

func sha1Prefix(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])[:10]
}

// toPDFRect normalizes a top-left origin bbox and flips it into PDF space for a page of the
// given height.
func toPDFRect(box ragModel.BBox, pageHeight float64) Rect {
	x0, x1 := min(box[0], box[2]), max(box[0], box[2])
	y0, y1 := min(box[1], box[3]), max(box[1], box[3])
	return Rect{LLX: x0, LLY: pageHeight - y1, URX: x1, URY: pageHeight - y0}
}

func (r Rect) empty() bool {
	return r.URX <= r.LLX || r.URY <= r.LLY
}

// GetHighlightedPDF returns the document with every bbox on page highlighted. Validation that
// needs no download happens before the fetch.
func (h *Renderer) GetHighlightedPDF(ctx context.Context, documentURL string, page int, bboxes []ragModel.BBox) ([]byte, error) {
	log := h.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	if len(bboxes) == 0 {
		return nil, fmt.Errorf("%w: no bboxes provided", ErrInvalidRequest)
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: page %d out of range", ErrInvalidRequest, page)
	}
	if documentURL == "" {
		return nil, fmt.Errorf("%w: document url is required", ErrInvalidRequest)
	}

	key := CacheKey(documentURL, page, bboxes)
	if h.cache != nil {
		cached, ok := h.cache.Get(ctx, key)
		metrics.RecordCacheLookup(metrics.CacheHighlight, ok)
		if ok {
			log.Debug("Highlighted pdf served from cache", "key", key)
			return cached, nil
		}
	}

	raw, err := h.fetch(ctx, documentURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := h.render(raw, page, bboxes)
	metrics.CaptureExecutionMetrics("pdf_highlight", time.Since(start))
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, key, out, h.ttl); err != nil {
			log.Warn("Failed to cache highlighted pdf", "key", key, "error", err)
		}
	}
	return out, nil
}

func (h *Renderer) render(raw []byte, page int, bboxes []ragModel.BBox) ([]byte, error) {
	doc, err := h.opener.Open(raw)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	if page > doc.PageCount() {
		return nil, fmt.Errorf("%w: page %d out of range (document has %d)", ErrInvalidRequest, page, doc.PageCount())
	}
	height, err := doc.PageHeight(page)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", page, err)
	}

	for _, box := range bboxes {
		rect := toPDFRect(box, height)
		if rect.empty() {
			continue
		}
		if err := doc.AddHighlight(page, rect); err != nil {
			return nil, fmt.Errorf("add highlight: %w", err)
		}
	}
	return doc.Bytes()
}

func (h *Renderer) fetch(ctx context.Context, documentURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	start := time.Now()
	resp, err := h.client.Do(req)
	metrics.CaptureExecutionMetrics("pdf_fetch", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return body, nil
}
