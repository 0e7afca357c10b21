package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/config"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/observability"
)

const (
	upstream = "weatherapi"

	// consecutive transport failures before the breaker opens
	tripAfter = 5
)

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrTransport        = errors.New("weather service unreachable")

	// errAbandoned marks requests the caller gave up on; they say nothing
	// about upstream health.
	errAbandoned = errors.New("request abandoned")
)

// WeatherAPI error codes that describe the q parameter rather than the account.
var locationErrorCodes = map[int]bool{
	1003: true, // parameter q not provided
	1006: true, // no location found matching q
}

type currentResponse struct {
	Location struct {
		Name      string `json:"name"`
		Region    string `json:"region"`
		Country   string `json:"country"`
		Localtime string `json:"localtime"` // "2024-01-15 14:30"
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		WindKph   float64 `json:"wind_kph"`
		PrecipMm  float64 `json:"precip_mm"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type rawResponse struct {
	status int
	body   []byte
}

// Client fetches current conditions from WeatherAPI.com. Each call makes a
// single attempt, throttled to the configured upstream quota.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func NewClient(cfg config.WeatherConfig, metrics *observability.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), int(math.Max(1, math.Ceil(cfg.RPS)))),
		metrics: metrics,
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        upstream,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errAbandoned)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if to == gobreaker.StateOpen {
				c.metrics.BreakerOpen.Set(1)
			} else {
				c.metrics.BreakerOpen.Set(0)
			}
		},
	})

	return c
}

// Current returns the latest observation for location. Failures wrap
// ErrLocationNotFound when the upstream rejects the location, ErrTransport
// when it cannot be reached or refuses the API key, and are plain errors
// otherwise.
func (c *Client) Current(ctx context.Context, location string) (models.Observation, error) {
	start := time.Now()
	obs, err := c.current(ctx, location)
	c.metrics.UpstreamDuration.WithLabelValues(upstream).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		c.metrics.UpstreamRequests.WithLabelValues(upstream, "success").Inc()
	case errors.Is(err, ErrLocationNotFound):
		c.metrics.UpstreamRequests.WithLabelValues(upstream, "not_found").Inc()
	default:
		c.metrics.UpstreamRequests.WithLabelValues(upstream, "error").Inc()
		c.logger.Warn("weather fetch failed", "location", location, "error", err)
	}
	return obs, err
}

func (c *Client) current(ctx context.Context, location string) (models.Observation, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return models.Observation{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	params := url.Values{
		"key": {c.apiKey},
		"q":   {location},
		"aqi": {"no"},
	}
	u := c.baseURL + "/current.json?" + params.Encode()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, u)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.Observation{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if err != nil {
		return models.Observation{}, err
	}
	raw := result.(*rawResponse)

	var data currentResponse
	if err := json.Unmarshal(raw.body, &data); err != nil {
		if raw.status < 200 || raw.status >= 300 {
			return models.Observation{}, fmt.Errorf("%w: unexpected status code: %d", ErrTransport, raw.status)
		}
		return models.Observation{}, fmt.Errorf("error decoding weather response: %w", err)
	}

	if data.Error != nil {
		if locationErrorCodes[data.Error.Code] {
			return models.Observation{}, fmt.Errorf("%w: %s", ErrLocationNotFound, data.Error.Message)
		}
		// key, quota and upstream-side failures
		return models.Observation{}, fmt.Errorf("%w: status %d, code %d: %s",
			ErrTransport, raw.status, data.Error.Code, data.Error.Message)
	}
	if raw.status < 200 || raw.status >= 300 {
		return models.Observation{}, fmt.Errorf("%w: unexpected status code: %d", ErrTransport, raw.status)
	}

	return data.toObservation()
}

// do performs the request. Only failures to reach a healthy upstream are
// returned as errors, so only those count against the breaker. Failures
// caused by the caller's own context are tagged errAbandoned.
func (c *Client) do(ctx context.Context, u string) (*rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, fmt.Errorf("reading body: %w", err))
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: unexpected status code: %d - status: %s", ErrTransport, resp.StatusCode, resp.Status)
	}

	return &rawResponse{status: resp.StatusCode, body: body}, nil
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w: %w", ErrTransport, errAbandoned, ctxErr)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

func (r *currentResponse) toObservation() (models.Observation, error) {
	date, err := models.ParseLocalTime(r.Location.Localtime)
	if err != nil {
		return models.Observation{}, fmt.Errorf("error parsing localtime: %w", err)
	}

	return models.Observation{
		Location:        r.Location.Name,
		Region:          r.Location.Region,
		Country:         r.Location.Country,
		Condition:       r.Current.Condition.Text,
		TemperatureC:    r.Current.TempC,
		WindSpeedKph:    r.Current.WindKph,
		PrecipitationMm: r.Current.PrecipMm,
		Date:            date,
	}, nil
}
