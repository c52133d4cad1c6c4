package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"tripmind/pkg/errors"
)

const (
	DefaultTavilyURL = "https://api.tavily.com/search"

	tavilyMaxResults  = 5
	tavilySearchDepth = "basic"
)

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

// TavilyResult is one hit of a web search
type TavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// TavilyResponse is the search payload returned by Tavily
type TavilyResponse struct {
	Query   string         `json:"query"`
	Answer  string         `json:"answer"`
	Results []TavilyResult `json:"results"`
}

// Empty reports whether the search found nothing usable
func (r *TavilyResponse) Empty() bool {
	return r == nil || (strings.TrimSpace(r.Answer) == "" && len(r.Results) == 0)
}

// Text renders the answer and hits as plain text for a prompt
func (r *TavilyResponse) Text() string {
	var b strings.Builder
	if r.Answer != "" {
		b.WriteString(r.Answer)
		b.WriteString("\n")
	}
	for _, res := range r.Results {
		fmt.Fprintf(&b, "- %s (%s): %s\n", res.Title, res.URL, strings.TrimSpace(res.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

// TavilyClient calls the Tavily search API
type TavilyClient struct {
	api      apiClient
	apiKey   string
	endpoint string
}

// NewTavilyClient creates a Tavily client. An empty key is rejected.
func NewTavilyClient(cfg ClientConfig) (*TavilyClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrNotConfigured, "tavily api key")
	}
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = DefaultTavilyURL
	}
	return &TavilyClient{
		api:      newAPIClient("tavily", cfg),
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
	}, nil
}

// Search runs a basic-depth search with a generated answer
func (c *TavilyClient) Search(ctx context.Context, query string) (*TavilyResponse, error) {
	body, err := json.Marshal(tavilyRequest{
		Query:         query,
		SearchDepth:   tavilySearchDepth,
		MaxResults:    tavilyMaxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal tavily request")
	}

	var out TavilyResponse
	err = c.api.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
