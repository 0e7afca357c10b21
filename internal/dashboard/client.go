package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
)

// APIError is a non-2xx answer from the weather API.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Detail)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to the weather API on behalf of the dashboard.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Weather(ctx context.Context, location string) (models.Observation, error) {
	var obs models.Observation
	err := c.getJSON(ctx, "/get_weather/", url.Values{"location": {location}}, &obs)
	return obs, err
}

func (c *Client) Records(ctx context.Context) ([]models.Observation, error) {
	var records []models.Observation
	if err := c.getJSON(ctx, "/read_records/", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) DeleteRecord(ctx context.Context, id int64) error {
	params := url.Values{"record_id": {strconv.FormatInt(id, 10)}}
	return c.getJSON(ctx, "/delete_record/", params, nil)
}

func (c *Client) UpdateCondition(ctx context.Context, id int64, condition string) error {
	u := c.baseURL + "/update_condition/" + strconv.FormatInt(id, 10) + "?" + url.Values{"condition": {condition}}.Encode()
	resp, err := c.do(ctx, http.MethodPut, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// Export copies the downloaded table in the given format ("csv" or "json") to w.
func (c *Client) Export(ctx context.Context, format string, w io.Writer) error {
	u := c.baseURL + "/download_data/?" + url.Values{"format": {format}}.Encode()
	resp, err := c.do(ctx, http.MethodGet, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("error writing export: %w", err)
	}
	return nil
}

// Videos returns related videos. A search the API could not complete comes
// back as an empty list plus an error.
func (c *Client) Videos(ctx context.Context, query string) ([]models.Video, error) {
	var body struct {
		Videos []models.Video `json:"videos"`
		Error  string         `json:"error"`
	}
	if err := c.getJSON(ctx, "/search_videos/", url.Values{"query": {query}}, &body); err != nil {
		return []models.Video{}, err
	}
	if body.Videos == nil {
		body.Videos = []models.Video{}
	}
	if body.Error != "" {
		return body.Videos, fmt.Errorf("video search: %s", body.Error)
	}
	return body.Videos, nil
}

// Overview is what the current-weather screen shows.
type Overview struct {
	Weather  models.Observation
	Videos   []models.Video
	VideoErr error
}

// Overview fetches the weather and the related videos concurrently. Only a
// weather failure fails the call.
func (c *Client) Overview(ctx context.Context, location string) (*Overview, error) {
	var ov Overview
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		obs, err := c.Weather(gctx, location)
		if err != nil {
			return err
		}
		ov.Weather = obs
		return nil
	})
	g.Go(func() error {
		ov.Videos, ov.VideoErr = c.Videos(gctx, location)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ov, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding resp.Body: %w", err)
	}
	return nil
}

// do returns the response for 2xx answers; anything else becomes an *APIError.
func (c *Client) do(ctx context.Context, method, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error doing request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var body struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
		return nil, &APIError{Status: resp.StatusCode, Detail: body.Detail}
	}

	return resp, nil
}
