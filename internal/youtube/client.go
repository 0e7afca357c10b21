package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/config"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/observability"
)

const (
	upstream   = "youtube"
	maxResults = 5
)

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title      string `json:"title"`
		Thumbnails struct {
			Medium struct {
				URL string `json:"url"`
			} `json:"medium"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

// Client searches the YouTube Data API v3 for weather videos.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func NewClient(cfg config.VideoConfig, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Search returns up to five videos for "<query> weather", in upstream order.
// The slice is never nil; on failure it is empty and the error says why.
func (c *Client) Search(ctx context.Context, query string) ([]models.Video, error) {
	start := time.Now()
	videos, err := c.search(ctx, query)
	c.metrics.UpstreamDuration.WithLabelValues(upstream).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(upstream, "error").Inc()
		c.logger.Warn("video search failed", "query", query, "error", err)
		return []models.Video{}, err
	}
	c.metrics.UpstreamRequests.WithLabelValues(upstream, "success").Inc()
	return videos, nil
}

func (c *Client) search(ctx context.Context, query string) ([]models.Video, error) {
	params := url.Values{
		"part":       {"snippet"},
		"q":          {query + " weather"},
		"type":       {"video"},
		"maxResults": {strconv.Itoa(maxResults)},
		"key":        {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("youtube API error: status %d: %s", resp.StatusCode, body)
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	videos := make([]models.Video, 0, maxResults)
	for _, item := range data.Items {
		if len(videos) == maxResults {
			break
		}
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, models.Video{
			Title:        item.Snippet.Title,
			VideoID:      item.ID.VideoID,
			ThumbnailURL: item.Snippet.Thumbnails.Medium.URL,
		})
	}

	return videos, nil
}
