package enrichment

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tripmind/pkg/errors"
)

const DefaultYouTubeURL = "https://www.googleapis.com/youtube/v3"

// Video is a YouTube video with the statistics used for ranking hints
type Video struct {
	ID          string
	Title       string
	Description string
	Channel     string
	PublishedAt string
	Views       uint64
	Likes       uint64
}

// URL returns the watch URL
func (v Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type ytVideosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
			LikeCount string `json:"likeCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// YouTubeClient calls the YouTube Data API v3
type YouTubeClient struct {
	api     apiClient
	apiKey  string
	baseURL string
}

// NewYouTubeClient creates a YouTube client. An empty key is rejected.
func NewYouTubeClient(cfg ClientConfig) (*YouTubeClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrNotConfigured, "youtube api key")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultYouTubeURL
	}
	return &YouTubeClient{
		api:     newAPIClient("youtube", cfg),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
	}, nil
}

// SearchVideos finds medium-length videos for query and loads their details
func (c *YouTubeClient) SearchVideos(ctx context.Context, query, language string, max int) ([]Video, error) {
	q := url.Values{}
	q.Set("part", "id,snippet")
	q.Set("q", query)
	q.Set("type", "video")
	q.Set("maxResults", strconv.Itoa(max))
	q.Set("videoDuration", "medium")
	if language != "" {
		q.Set("relevanceLanguage", language)
	}
	q.Set("key", c.apiKey)

	var search ytSearchResponse
	if err := c.api.do(ctx, c.get("/search", q), &search); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vq := url.Values{}
	vq.Set("part", "snippet,statistics")
	vq.Set("id", strings.Join(ids, ","))
	vq.Set("key", c.apiKey)

	var details ytVideosResponse
	if err := c.api.do(ctx, c.get("/videos", vq), &details); err != nil {
		return nil, err
	}

	videos := make([]Video, 0, len(details.Items))
	for _, item := range details.Items {
		views, _ := strconv.ParseUint(item.Statistics.ViewCount, 10, 64)
		likes, _ := strconv.ParseUint(item.Statistics.LikeCount, 10, 64)
		videos = append(videos, Video{
			ID:          item.ID,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Channel:     item.Snippet.ChannelTitle,
			PublishedAt: item.Snippet.PublishedAt,
			Views:       views,
			Likes:       likes,
		})
	}
	return videos, nil
}

func (c *YouTubeClient) get(path string, q url.Values) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	}
}
