// Package client is a typed HTTP client for the slotbook API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slotbook/internal/availability"
	"slotbook/internal/confirmation"
	"slotbook/internal/domain"
	"slotbook/internal/grounds"
	"slotbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// Client calls the slotbook HTTP API. Only the static sports list is cached;
// slot views are always fetched fresh.
type Client struct {
	baseURL    string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// BookingResult is returned by Book and Batch.
type BookingResult struct {
	Batch        *models.BookingBatch  `json:"batch"`
	Confirmation *confirmation.Payload `json:"confirmation"`
	Summary      string                `json:"summary"`
	QRURL        string                `json:"qr_url"`
}

// APIError is a non-2xx answer. It unwraps to the matching domain sentinel so
// errors.Is(err, domain.ErrConflict) works across the wire.
type APIError struct {
	Status  int      `json:"-"`
	Kind    string   `json:"kind"`
	Message string   `json:"error"`
	Field   string   `json:"field"`
	Slots   []string `json:"slots"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Kind {
	case "validation":
		return domain.ErrValidation
	case "conflict":
		return domain.ErrConflict
	case "not_found":
		return domain.ErrNotFound
	}
	return nil
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache configures optional Redis caching of the sports list.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) Sports(ctx context.Context) ([]grounds.Sport, error) {
	const cacheKey = "slotbook:client:sports"
	var wrap struct {
		Sports []grounds.Sport `json:"sports"`
	}

	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Sports, nil
	}
	if err := c.doGet(ctx, "/api/v1/sports", nil, &wrap); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Sports, nil
}

func (c *Client) DaySlots(ctx context.Context, date, sport string) ([]availability.SlotView, error) {
	var wrap struct {
		Slots []availability.SlotView `json:"slots"`
	}
	q := url.Values{"date": {date}, "sport": {sport}}
	if err := c.doGet(ctx, "/api/v1/slots", q, &wrap); err != nil {
		return nil, err
	}
	return wrap.Slots, nil
}

func (c *Client) Book(ctx context.Context, req models.BookingRequest) (*BookingResult, error) {
	var res BookingResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/bookings", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Batch(ctx context.Context, date, batchID string) (*BookingResult, error) {
	var res BookingResult
	path := fmt.Sprintf("/api/v1/bookings/%s/%s", url.PathEscape(date), url.PathEscape(batchID))
	if err := c.doGet(ctx, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) AdminDay(ctx context.Context, date string) (*availability.AdminDay, error) {
	var view availability.AdminDay
	if err := c.doGet(ctx, "/api/v1/admin/slots", url.Values{"date": {date}}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) Cancel(ctx context.Context, req models.CancelRequest) (*models.CancelResult, error) {
	var res models.CancelResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/admin/cancel", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ToggleBlock(ctx context.Context, date, slot string) (*models.BlockState, error) {
	var state models.BlockState
	body := map[string]string{"date": date, "slot": slot}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/admin/blocks/toggle", body, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Export streams the xlsx workbook for from..to into w.
func (c *Client) Export(ctx context.Context, from, to string, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/admin/export", url.Values{"from": {from}, "to": {to}}, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	return http.NewRequestWithContext(ctx, method, endpoint, body)
}

func (c *Client) doGet(ctx context.Context, path string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, method, path, nil, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	// тело может быть не JSON (например, 405 от mux)
	_ = json.NewDecoder(resp.Body).Decode(apiErr)
	return apiErr
}
