package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/smiglya/Project.vsm/internal/config"
)

// ErrNotFound is returned when the feed has no data for the requested
// train and date. Callers treat this as a skip, not a failure.
var ErrNotFound = errors.New("feed: mileage data not found")

// MileageData is one train-day reading from the external mileage feed.
// TotalMileage may be absent; callers then derive it from the previous
// record's total plus the daily delta.
type MileageData struct {
	TrainID      string `json:"train_id"`
	Date         string `json:"date"`
	DailyMileage int    `json:"daily_mileage"`
	TotalMileage *int64 `json:"total_mileage"`
}

// Client calls the external mileage feed API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a feed client from config
func NewClient(cfg *config.FeedConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.GetTimeout()},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.GetRetryDelay(),
	}
}

// FetchMileage requests a train's reading for a date. Transient errors
// are retried with exponential backoff; a 404 response is returned as
// ErrNotFound immediately.
func (c *Client) FetchMileage(ctx context.Context, trainName, depotName string, date time.Time) (*MileageData, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := c.fetchOnce(ctx, trainName, depotName, date)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("feed: %d attempts failed: %w", c.maxRetries+1, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, trainName, depotName string, date time.Time) (*MileageData, error) {
	endpoint, err := url.Parse(c.baseURL + "/mileage")
	if err != nil {
		return nil, fmt.Errorf("feed: bad base URL: %w", err)
	}
	q := endpoint.Query()
	q.Set("train_id", trainName)
	q.Set("date", date.Format("2006-01-02"))
	if depotName != "" {
		q.Set("depot", depotName)
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed: API error %d: %s", resp.StatusCode, string(body))
	}

	var data MileageData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("feed: decode response: %w", err)
	}
	return &data, nil
}
