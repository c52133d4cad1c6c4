package enrichment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmind/internal/adapters/retry"
	"tripmind/internal/agents"
	"tripmind/internal/extract"
	"tripmind/pkg/errors"
)

func fastRetry() *retry.Middleware {
	return retry.New(retry.Config{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Strategy: retry.StrategyFixed})
}

func fixedNow() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

func tavilyServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tv-key", r.Header.Get("Authorization"))

		var req tavilyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "basic", req.SearchDepth)
		assert.Equal(t, 5, req.MaxResults)
		assert.True(t, req.IncludeAnswer)

		_ = json.NewEncoder(w).Encode(TavilyResponse{
			Query:   req.Query,
			Answer:  "answer for " + req.Query,
			Results: []TavilyResult{{Title: "Doi Suthep", URL: "https://example.com/doi", Content: "temple on the hill"}},
		})
	}))
}

func newTavily(t *testing.T, url string) *TavilyClient {
	t.Helper()
	c, err := NewTavilyClient(ClientConfig{APIKey: "tv-key", BaseURL: url, Retry: fastRetry()})
	require.NoError(t, err)
	return c
}

func chiangMai() extract.Fields {
	f := extract.Defaults()
	f.Destination = "เชียงใหม่"
	return f
}

func TestEnricher_WebBlock(t *testing.T) {
	var hits atomic.Int32
	srv := tavilyServer(t, &hits)
	defer srv.Close()

	e := NewEnricher(Deps{Tavily: newTavily(t, srv.URL), Cache: NewMemoryCache(time.Minute), Now: fixedNow})

	block, ok := e.Enrich(context.Background(), agents.HandlerActivity, chiangMai())
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(block, WebHeader))
	assert.Contains(t, block, "--- สถานที่ท่องเที่ยวยอดนิยมใน เชียงใหม่ 2026 ---")
	assert.Contains(t, block, "--- ประสบการณ์ท้องถิ่นที่ไม่เหมือนใครใน เชียงใหม่ ---")
	assert.Contains(t, block, "Doi Suthep")
	assert.Equal(t, int32(4), hits.Load())

	// second call is served from the cache
	again, ok := e.Enrich(context.Background(), agents.HandlerActivity, chiangMai())
	require.True(t, ok)
	assert.Equal(t, block, again)
	assert.Equal(t, int32(4), hits.Load())
}

func TestEnricher_SkipsUnknownDestination(t *testing.T) {
	var hits atomic.Int32
	srv := tavilyServer(t, &hits)
	defer srv.Close()

	e := NewEnricher(Deps{Tavily: newTavily(t, srv.URL)})

	for _, dest := range []string{extract.DefaultDestination, extract.Unspecified} {
		f := extract.Defaults()
		f.Destination = dest
		block, ok := e.Enrich(context.Background(), agents.HandlerActivity, f)
		assert.False(t, ok)
		assert.Empty(t, block)
	}
	assert.Zero(t, hits.Load())
}

func TestEnricher_OtherHandlersGetNothing(t *testing.T) {
	var hits atomic.Int32
	srv := tavilyServer(t, &hits)
	defer srv.Close()

	e := NewEnricher(Deps{Tavily: newTavily(t, srv.URL)})

	for _, h := range []agents.HandlerID{agents.HandlerRestaurant, agents.HandlerAccommodation, agents.HandlerGeneral} {
		_, ok := e.Enrich(context.Background(), h, chiangMai())
		assert.False(t, ok, h)
	}
	// trip_planner uses video search which is not configured here
	_, ok := e.Enrich(context.Background(), agents.HandlerTripPlanner, chiangMai())
	assert.False(t, ok)
	assert.Zero(t, hits.Load())
}

func TestEnricher_WebFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := NewEnricher(Deps{Tavily: newTavily(t, srv.URL)})

	block, ok := e.Enrich(context.Background(), agents.HandlerActivity, chiangMai())
	assert.False(t, ok)
	assert.Empty(t, block)
}

func TestEnricher_VideoBlock(t *testing.T) {
	var searches, details atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "yt-key", q.Get("key"))
		switch r.URL.Path {
		case "/search":
			searches.Add(1)
			assert.Equal(t, "id,snippet", q.Get("part"))
			assert.Equal(t, "video", q.Get("type"))
			assert.Equal(t, "3", q.Get("maxResults"))
			assert.Equal(t, "medium", q.Get("videoDuration"))
			assert.Equal(t, "th", q.Get("relevanceLanguage"))
			assert.Contains(t, q.Get("q"), "เชียงใหม่")
			_, _ = w.Write([]byte(`{"items":[{"id":{"videoId":"abc"}},{"id":{"videoId":"def"}}]}`))
		case "/videos":
			details.Add(1)
			assert.Equal(t, "abc,def", q.Get("id"))
			_, _ = w.Write([]byte(`{"items":[
				{"id":"abc","snippet":{"title":"เที่ยวเชียงใหม่ 3 วัน","description":"line one\nline two","channelTitle":"Trip TH"},"statistics":{"viewCount":"1234567"}},
				{"id":"def","snippet":{"title":"Old city walk","channelTitle":"Walker"},"statistics":{"viewCount":"42"}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	yt, err := NewYouTubeClient(ClientConfig{APIKey: "yt-key", BaseURL: srv.URL, Retry: fastRetry()})
	require.NoError(t, err)
	e := NewEnricher(Deps{YouTube: yt, Language: "th", Cache: NewMemoryCache(time.Minute), Now: fixedNow})

	block, ok := e.Enrich(context.Background(), agents.HandlerTripPlanner, chiangMai())
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(block, VideoHeader))
	assert.Contains(t, block, "เที่ยวเชียงใหม่ 3 วัน (Trip TH, 1,234,567 views)")
	assert.Contains(t, block, "https://www.youtube.com/watch?v=abc")
	assert.Contains(t, block, "line one line two")
	assert.Contains(t, block, "Old city walk (Walker, 42 views)")

	_, ok = e.Enrich(context.Background(), agents.HandlerTripPlanner, chiangMai())
	require.True(t, ok)
	assert.Equal(t, int32(1), searches.Load())
	assert.Equal(t, int32(1), details.Load())
}

func TestEnricher_Search(t *testing.T) {
	var hits atomic.Int32
	srv := tavilyServer(t, &hits)
	defer srv.Close()

	e := NewEnricher(Deps{Tavily: newTavily(t, srv.URL), Cache: NewMemoryCache(time.Minute)})

	text, err := e.Search(context.Background(), "ร้านข้าวซอย")
	require.NoError(t, err)
	assert.Contains(t, text, "answer for ร้านข้าวซอย")
	assert.Contains(t, text, "- Doi Suthep (https://example.com/doi): temple on the hill")

	_, err = e.Search(context.Background(), "  ")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestEnricher_SearchNotConfigured(t *testing.T) {
	e := NewEnricher(Deps{})
	_, err := e.Search(context.Background(), "anything")
	assert.True(t, errors.Is(err, errors.ErrNotConfigured))
}

func TestTavilyClient_RetriesServerError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer srv.Close()

	res, err := newTavily(t, srv.URL).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Answer)
	assert.Equal(t, int32(2), hits.Load())
}

func TestNewClients_RequireKey(t *testing.T) {
	_, err := NewTavilyClient(ClientConfig{})
	assert.True(t, errors.Is(err, errors.ErrNotConfigured))
	_, err = NewYouTubeClient(ClientConfig{})
	assert.True(t, errors.Is(err, errors.ErrNotConfigured))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)

	c.Set(context.Background(), "k", "v")
	v, ok := c.Get(context.Background(), "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
