package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mu1bokjoa/FloodResponseSystem/internal/circuitbreaker"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/models"
	"github.com/mu1bokjoa/FloodResponseSystem/internal/observability"
)

// DefaultAPIURL is the KMA ultra-short-term observation endpoint.
const DefaultAPIURL = "http://apis.data.go.kr/1360000/VilageFcstInfoService_2.0/getUltraSrtNcst"

const (
	categoryRainfall = "RN1"
	noRainfall       = "강수없음"
	resultCodeOK     = "00"
	maxBodyBytes     = 1 << 20
)

// WeatherClient fetches the observation for a KMA grid cell at one base slot.
// Callers align the slot so it matches the cache key they store under.
type WeatherClient interface {
	GetObservation(ctx context.Context, nx, ny int, baseDate, baseTime string) (models.Observation, error)
}

var (
	ErrInvalidAPIKey       = errors.New("invalid API key")
	ErrProviderUnavailable = errors.New("weather provider unavailable")
	ErrUpstreamFailure     = errors.New("upstream failure")
	ErrMalformedResponse   = errors.New("malformed provider response")
	ErrProviderResult      = errors.New("provider returned error result")
	ErrCircuitOpen         = errors.New("weather provider circuit open")
)

// KMAClient calls getUltraSrtNcst once per observation. There are no retries;
// callers decide how to degrade on error.
type KMAClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
	clock   clockwork.Clock
	breaker *circuitbreaker.CircuitBreaker
}

// Option configures optional KMAClient collaborators.
type Option func(*KMAClient)

// WithCircuitBreaker routes every upstream call through cb.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *KMAClient) { c.breaker = cb }
}

// WithHTTPClient replaces the default http.Client. Its Timeout is overwritten.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *KMAClient) { c.client = hc }
}

func NewKMAClient(apiKey, apiURL string, timeout time.Duration, clock clockwork.Clock, opts ...Option) (*KMAClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	c := &KMAClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client:  &http.Client{},
		clock:   clock,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client.Timeout = timeout
	return c, nil
}

type ncstResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items struct {
				Item []ncstItem `json:"item"`
			} `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

type ncstItem struct {
	Category  string          `json:"category"`
	ObsrValue json.RawMessage `json:"obsrValue"`
}

// GetObservation returns the RN1 rainfall for grid cell (nx, ny) at the given base slot.
func (c *KMAClient) GetObservation(ctx context.Context, nx, ny int, baseDate, baseTime string) (models.Observation, error) {
	obs := models.Observation{NX: nx, NY: ny, BaseDate: baseDate, BaseTime: baseTime}

	call := func() error {
		rainfall, err := c.callAPI(ctx, obs)
		obs.Rainfall = rainfall
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Call(ctx, call)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			observability.WeatherAPICallsTotal.WithLabelValues("circuit_open").Inc()
			err = fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
	} else {
		err = call()
	}
	if err != nil {
		return models.Observation{}, err
	}

	obs.FetchedAt = c.clock.Now()
	return obs, nil
}

func (c *KMAClient) callAPI(ctx context.Context, obs models.Observation) (float64, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, obs)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return 0, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("%w: read response body: %w", ErrProviderUnavailable, err)
	}

	var apiResp ncstResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	header := apiResp.Response.Header
	if header.ResultCode != resultCodeOK {
		return 0, fmt.Errorf("%w: resultCode=%q resultMsg=%q", ErrProviderResult, header.ResultCode, header.ResultMsg)
	}

	return rainfallFromItems(apiResp.Response.Body.Items.Item), nil
}

func (c *KMAClient) buildRequest(ctx context.Context, obs models.Observation) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("serviceKey", c.apiKey)
	params.Set("pageNo", "1")
	params.Set("numOfRows", "100")
	params.Set("dataType", "JSON")
	params.Set("base_date", obs.BaseDate)
	params.Set("base_time", obs.BaseTime)
	params.Set("nx", strconv.Itoa(obs.NX))
	params.Set("ny", strconv.Itoa(obs.NY))
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// rainfallFromItems picks the first RN1 item. Absent, "강수없음", unparsable,
// non-finite or negative values all read as 0.0.
func rainfallFromItems(items []ncstItem) float64 {
	for _, item := range items {
		if item.Category != categoryRainfall {
			continue
		}
		return parseRainfall(item.ObsrValue)
	}
	return 0
}

func parseRainfall(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Numeric obsrValue.
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if s == "" || s == noRainfall {
		return 0
	}
	s = strings.TrimSuffix(s, "mm")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
