// Package notifications reads the paginated notification list over REST,
// either exhaustively (to seed the unread badge) or one page at a time for the
// notification pane.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/umar/livesync/internal/models"
)

const GenericErrorText = "Something went wrong. Please try again later."

// Fetcher is the page-fetch primitive shared by both paginator modes.
type Fetcher interface {
	FetchPage(ctx context.Context, page int) (models.Page, error)
	MarkAllRead(ctx context.Context) error
}

// APIError is a non-2xx response. Message holds the server-provided text, if
// any.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("notifications api: status %d", e.Status)
	}
	return fmt.Sprintf("notifications api: status %d: %s", e.Status, e.Message)
}

// UserMessage returns the text to show for err: the server's message when it
// sent one, the generic fallback otherwise.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericErrorText
}

type ClientOptions struct {
	BaseURL    string
	Credential string
	HTTPClient *http.Client
	// RPS paces outgoing requests; zero disables pacing.
	RPS    float64
	Burst  int
	Logger *slog.Logger
}

type Client struct {
	baseURL    string
	credential string
	http       *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewClient(opts ClientOptions) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		credential: opts.Credential,
		http:       opts.HTTPClient,
		logger:     opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return c
}

type listResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Pagination    struct {
		TotalPages  int `json:"totalPages"`
		CurrentPage int `json:"currentPage"`
	} `json:"pagination"`
}

// FetchPage reads GET /notifications?page=N.
func (c *Client) FetchPage(ctx context.Context, page int) (models.Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))

	var body listResponse
	if err := c.do(ctx, http.MethodGet, "/notifications?"+q.Encode(), &body); err != nil {
		return models.Page{}, fmt.Errorf("fetch notifications page %d: %w", page, err)
	}

	items := body.Notifications
	if items == nil {
		items = []models.Notification{}
	}
	current := body.Pagination.CurrentPage
	if current <= 0 {
		current = page
	}
	return models.Page{Items: items, Page: current, TotalPages: body.Pagination.TotalPages}, nil
}

// MarkAllRead calls PUT /notifications/all.
func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPut, "/notifications/all", nil); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return readAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Error
		if apiErr.Message == "" {
			apiErr.Message = payload.Message
		}
	}
	return apiErr
}
