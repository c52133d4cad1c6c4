package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"tripmind/internal/adapters/config"
	"tripmind/internal/adapters/ratelimit"
	"tripmind/internal/adapters/retry"
	"tripmind/internal/agents"
	"tripmind/internal/extract"
	"tripmind/internal/metrics"
	"tripmind/pkg/errors"
	"tripmind/pkg/logger"
	"tripmind/pkg/templates"
)

const (
	WebHeader   = "Additional information from real-time search:"
	VideoHeader = "ข้อมูลเพิ่มเติมจาก YouTube:"

	resultRunes      = 1000
	descriptionRunes = 200
	toolResultRunes  = 2000
	maxVideos        = 3
)

// Enricher adds real-time search results to handler prompts.
// activity gets web search, trip_planner gets video search.
type Enricher struct {
	tavily   *TavilyClient
	youtube  *YouTubeClient
	cache    Cache
	language string
	now      func() time.Time
	log      *logger.Logger
}

// Deps holds the collaborators of an Enricher. Nil clients disable their source.
type Deps struct {
	Tavily   *TavilyClient
	YouTube  *YouTubeClient
	Cache    Cache
	Language string
	Now      func() time.Time
}

func NewEnricher(deps Deps) *Enricher {
	e := &Enricher{
		tavily:   deps.Tavily,
		youtube:  deps.YouTube,
		cache:    deps.Cache,
		language: deps.Language,
		now:      deps.Now,
		log:      logger.Get().With("component", "enrichment"),
	}
	if e.cache == nil {
		e.cache = noCache{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// NewFromConfig builds the clients whose API keys are configured
func NewFromConfig(cfg config.EnrichmentConfig, cache Cache) *Enricher {
	limiters := ratelimit.NewEnrichmentLimiters(cfg.RequestsPerMinute)
	rc := retry.DefaultConfig()
	rc.MaxRetries = cfg.MaxRetries
	mw := retry.New(rc)

	deps := Deps{Cache: cache, Language: cfg.Language}
	log := logger.Get().With("component", "enrichment")

	tl, _ := limiters.Get(ratelimit.KeyTavily)
	if t, err := NewTavilyClient(ClientConfig{APIKey: cfg.TavilyAPIKey, Timeout: cfg.Timeout, Limiter: tl, Retry: mw}); err == nil {
		deps.Tavily = t
	} else {
		log.Infow("web search disabled", "reason", err)
	}

	yl, _ := limiters.Get(ratelimit.KeyYouTube)
	if y, err := NewYouTubeClient(ClientConfig{APIKey: cfg.YouTubeAPIKey, Timeout: cfg.Timeout, Limiter: yl, Retry: mw}); err == nil {
		deps.YouTube = y
	} else {
		log.Infow("video search disabled", "reason", err)
	}

	return NewEnricher(deps)
}

// Enrich returns the enrichment block for handler. ok is false when the
// handler has no source, the destination is unknown, or nothing was found.
func (e *Enricher) Enrich(ctx context.Context, handler agents.HandlerID, fields extract.Fields) (string, bool) {
	switch handler {
	case agents.HandlerActivity:
		return e.webBlock(ctx, fields)
	case agents.HandlerTripPlanner:
		return e.videoBlock(ctx, fields)
	default:
		return "", false
	}
}

// Search runs a single web search for the search_web tool
func (e *Enricher) Search(ctx context.Context, query string) (string, error) {
	if e.tavily == nil {
		return "", errors.Wrap(errors.ErrNotConfigured, "web search")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, "empty search query")
	}

	key := "search:" + query
	if v, ok := e.cache.Get(ctx, key); ok {
		metrics.RecordEnrichment("tavily", "cached", 0, nil)
		return v, nil
	}

	start := time.Now()
	res, err := e.tavily.Search(ctx, query)
	metrics.RecordEnrichment("tavily", "", time.Since(start), err)
	if err != nil {
		return "", err
	}
	if res.Empty() {
		return "", nil
	}

	text := templates.TruncateRunes(res.Text(), toolResultRunes)
	e.cache.Set(ctx, key, text)
	return text, nil
}

func (e *Enricher) webQueries(destination string) []string {
	return []string{
		fmt.Sprintf("สถานที่ท่องเที่ยวยอดนิยมใน %s %d", destination, e.now().Year()),
		fmt.Sprintf("กิจกรรมทางวัฒนธรรมที่น่าสนใจใน %s", destination),
		fmt.Sprintf("กิจกรรมท่องเที่ยวธรรมชาติและกลางแจ้งใน %s", destination),
		fmt.Sprintf("ประสบการณ์ท้องถิ่นที่ไม่เหมือนใครใน %s", destination),
	}
}

func (e *Enricher) webBlock(ctx context.Context, fields extract.Fields) (string, bool) {
	if e.tavily == nil {
		return "", false
	}
	if !fields.HasDestination() {
		metrics.RecordEnrichment("tavily", "skipped", 0, nil)
		return "", false
	}

	key := "web:" + fields.Destination
	if v, ok := e.cache.Get(ctx, key); ok {
		metrics.RecordEnrichment("tavily", "cached", 0, nil)
		return v, true
	}

	queries := e.webQueries(fields.Destination)
	results := make([]string, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			start := time.Now()
			res, err := e.tavily.Search(gctx, q)
			metrics.RecordEnrichment("tavily", "", time.Since(start), err)
			if err != nil {
				e.log.Warnw("web search failed", "query", q, "error", err)
				return nil
			}
			if !res.Empty() {
				results[i] = templates.TruncateRunes(res.Text(), resultRunes)
			}
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	b.WriteString(WebHeader)
	found := 0
	for i, r := range results {
		if r == "" {
			continue
		}
		found++
		fmt.Fprintf(&b, "\n\n--- %s ---\n%s", queries[i], r)
	}
	if found == 0 {
		e.log.Infow("web search found nothing", "destination", fields.Destination)
		return "", false
	}

	block := b.String()
	e.cache.Set(ctx, key, block)
	e.log.Debugw("web enrichment ready", "destination", fields.Destination, "sections", found, "size", humanize.Bytes(uint64(len(block))))
	return block, true
}

func (e *Enricher) videoQuery(destination string) string {
	return fmt.Sprintf("สถานที่เที่ยว ที่พัก ที่กิน แนะนำการเดินทาง %d %s", e.now().Year(), destination)
}

func (e *Enricher) videoBlock(ctx context.Context, fields extract.Fields) (string, bool) {
	if e.youtube == nil {
		return "", false
	}
	if !fields.HasDestination() {
		metrics.RecordEnrichment("youtube", "skipped", 0, nil)
		return "", false
	}

	key := "video:" + fields.Destination
	if v, ok := e.cache.Get(ctx, key); ok {
		metrics.RecordEnrichment("youtube", "cached", 0, nil)
		return v, true
	}

	start := time.Now()
	videos, err := e.youtube.SearchVideos(ctx, e.videoQuery(fields.Destination), e.language, maxVideos)
	metrics.RecordEnrichment("youtube", "", time.Since(start), err)
	if err != nil {
		e.log.Warnw("video search failed", "destination", fields.Destination, "error", err)
		return "", false
	}
	if len(videos) == 0 {
		return "", false
	}

	block := formatVideos(videos)
	e.cache.Set(ctx, key, block)
	return block, true
}

func formatVideos(videos []Video) string {
	var b strings.Builder
	b.WriteString(VideoHeader)
	for _, v := range videos {
		fmt.Fprintf(&b, "\n- %s (%s, %s views)\n  %s", v.Title, v.Channel, humanize.Comma(int64(v.Views)), v.URL())
		if desc := strings.TrimSpace(v.Description); desc != "" {
			fmt.Fprintf(&b, "\n  %s", strings.ReplaceAll(templates.TruncateRunes(desc, descriptionRunes), "\n", " "))
		}
	}
	return b.String()
}

// WebSearchEnabled reports whether a Tavily key is configured
func (e *Enricher) WebSearchEnabled() bool { return e.tavily != nil }
