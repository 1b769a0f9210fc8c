package highlight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/GoDocRAG/internal/cache/ragCache"
	"github.com/akolanti/GoDocRAG/internal/data/redisStore"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocument struct {
	pages  int
	height float64
	added  []Rect
}

func (d *fakeDocument) PageCount() int                  { return d.pages }
func (d *fakeDocument) PageHeight(int) (float64, error) { return d.height, nil }
func (d *fakeDocument) AddHighlight(page int, r Rect) error {
	d.added = append(d.added, r)
	return nil
}
func (d *fakeDocument) Bytes() ([]byte, error) { return []byte("%PDF-highlighted"), nil }

type fakeOpener struct {
	doc    *fakeDocument
	OnOpen func(pdf []byte) error
}

func (o *fakeOpener) Open(pdf []byte) (Document, error) {
	if o.OnOpen != nil {
		if err := o.OnOpen(pdf); err != nil {
			return nil, err
		}
	}
	return o.doc, nil
}

func pdfServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("%PDF-1.7 original"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestRenderer(t *testing.T, doc *fakeDocument) (*Renderer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := ragCache.New(redisStore.NewTestStore(client), ragCache.DefaultTTLs())
	return NewRenderer(http.DefaultClient, cache, &fakeOpener{doc: doc}, time.Hour), mr
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("https://x/doc.pdf", 3, []ragModel.BBox{{1, 2, 3, 4}, {0, 0, 1, 1}})
	b := CacheKey("https://x/doc.pdf", 3, []ragModel.BBox{{0, 0, 1, 1}, {1, 2, 3, 4}})

	assert.Equal(t, a, b, "bbox order must not change the key")
	assert.Regexp(t, regexp.MustCompile(`^pdf_hl:[0-9a-f]{10}:p3:[0-9a-f]{10}$`), a)
	assert.NotEqual(t, a, CacheKey("https://x/doc.pdf", 4, []ragModel.BBox{{1, 2, 3, 4}, {0, 0, 1, 1}}))
	assert.NotEqual(t, a, CacheKey("https://x/other.pdf", 3, []ragModel.BBox{{1, 2, 3, 4}, {0, 0, 1, 1}}))
}

func TestToPDFRect(t *testing.T) {
	assert.Equal(t, Rect{LLX: 10, LLY: 730, URX: 110, URY: 780}, toPDFRect(ragModel.BBox{10, 20, 110, 70}, 800))
	// reversed corners are normalized first
	assert.Equal(t, Rect{LLX: 10, LLY: 730, URX: 110, URY: 780}, toPDFRect(ragModel.BBox{110, 70, 10, 20}, 800))
	assert.True(t, toPDFRect(ragModel.BBox{5, 5, 5, 9}, 800).empty())
}

func TestGetHighlightedPDF_RendersAndCaches(t *testing.T) {
	doc := &fakeDocument{pages: 5, height: 800}
	renderer, mr := newTestRenderer(t, doc)
	srv, hits := pdfServer(t, http.StatusOK)
	url := srv.URL + "/doc.pdf"
	boxes := []ragModel.BBox{{10, 20, 110, 70}, {3, 3, 3, 3}}

	out, err := renderer.GetHighlightedPDF(context.Background(), url, 2, boxes)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-highlighted"), out)
	assert.Equal(t, []Rect{{LLX: 10, LLY: 730, URX: 110, URY: 780}}, doc.added, "empty rects are skipped")

	key := CacheKey(url, 2, boxes)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	again, err := renderer.GetHighlightedPDF(context.Background(), url, 2, boxes)
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.EqualValues(t, 1, hits.Load(), "second request is served from cache")
}

func TestGetHighlightedPDF_Validation(t *testing.T) {
	doc := &fakeDocument{pages: 2, height: 800}
	renderer, _ := newTestRenderer(t, doc)
	srv, hits := pdfServer(t, http.StatusOK)

	_, err := renderer.GetHighlightedPDF(context.Background(), srv.URL, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = renderer.GetHighlightedPDF(context.Background(), srv.URL, 0, []ragModel.BBox{{1, 1, 2, 2}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.EqualValues(t, 0, hits.Load(), "nothing is fetched for requests that are invalid up front")

	_, err = renderer.GetHighlightedPDF(context.Background(), srv.URL, 3, []ragModel.BBox{{1, 1, 2, 2}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, doc.added)
}

func TestGetHighlightedPDF_FetchFailure(t *testing.T) {
	renderer, mr := newTestRenderer(t, &fakeDocument{pages: 1, height: 800})
	srv, _ := pdfServer(t, http.StatusNotFound)

	_, err := renderer.GetHighlightedPDF(context.Background(), srv.URL+"/missing.pdf", 1, []ragModel.BBox{{1, 1, 2, 2}})
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Empty(t, mr.Keys())
}

func TestGetHighlightedPDF_OpenFailure(t *testing.T) {
	srv, _ := pdfServer(t, http.StatusOK)
	opener := &fakeOpener{OnOpen: func(pdf []byte) error { return errors.New("not a pdf") }}
	renderer := NewRenderer(http.DefaultClient, nil, opener, time.Hour)

	_, err := renderer.GetHighlightedPDF(context.Background(), srv.URL, 1, []ragModel.BBox{{1, 1, 2, 2}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
}
