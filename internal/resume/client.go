package resume

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
)

// Snapshot is the server's view of a user's progress on one video.
type Snapshot struct {
	Seconds     int
	Completed   bool
	CompletedAt *time.Time
}

type ProgressClient interface {
	Load(ctx context.Context, videoID string) (Snapshot, error)
	Save(ctx context.Context, videoID string, seconds int, completed bool) error
}

// HTTPClient talks to the /video/progress endpoints with a bearer token.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type progressPayload struct {
	Success         bool       `json:"success"`
	Error           string     `json:"error,omitempty"`
	Seconds         int        `json:"seconds"`
	Completado      bool       `json:"completado"`
	FechaCompletado *time.Time `json:"fecha_completado"`
}

func (c *HTTPClient) Load(ctx context.Context, videoID string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.progressURL(videoID), nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("create load request: %w", err)
	}

	var payload progressPayload
	if err := c.do(req, &payload); err != nil {
		return Snapshot{}, fmt.Errorf("load progress: %w", err)
	}
	return Snapshot{
		Seconds:     payload.Seconds,
		Completed:   payload.Completado,
		CompletedAt: payload.FechaCompletado,
	}, nil
}

func (c *HTTPClient) Save(ctx context.Context, videoID string, seconds int, completed bool) error {
	body, err := json.Marshal(map[string]any{"seconds": seconds, "completado": completed})
	if err != nil {
		return fmt.Errorf("marshal save request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.progressURL(videoID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var payload progressPayload
	if err := c.do(req, &payload); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	if !payload.Success {
		return fmt.Errorf("save progress: server reported failure: %s", payload.Error)
	}
	return nil
}

func (c *HTTPClient) progressURL(videoID string) string {
	return c.baseURL + "/video/progress/" + url.PathEscape(videoID)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
