package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/yourusername/ytrelay-go/internal/domain"
)

// apiError is a non-2xx response from the server
type apiError struct {
	Status int
	Detail string
}

func (e *apiError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

type startResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type streamRequest struct {
	URL     string `json:"url"`
	Mode    string `json:"mode,omitempty"`
	Quality *int   `json:"quality,omitempty"`
}

// apiClient talks to a running ytrelay server
type apiClient struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		dialer:  websocket.DefaultDialer,
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &apiError{Status: resp.StatusCode}

	var body struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil && body.Detail != "" {
		apiErr.Detail = body.Detail
	} else {
		apiErr.Detail = strings.TrimSpace(string(data))
	}
	return apiErr
}

func (c *apiClient) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) postJSON(ctx context.Context, path string, body, out any) error {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// Info fetches metadata and the quality list
func (c *apiClient) Info(ctx context.Context, mediaURL string) (*domain.MediaInfo, error) {
	var info domain.MediaInfo
	if err := c.postJSON(ctx, "/api/v1/download/info", map[string]string{"url": mediaURL}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Start schedules a background download
func (c *apiClient) Start(ctx context.Context, mediaURL string, quality *int) (*startResponse, error) {
	body := map[string]any{"url": mediaURL}
	if quality != nil {
		body["quality"] = *quality
	}

	var out startResponse
	if err := c.postJSON(ctx, "/api/v1/download/start", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stream relays media into w and returns the attachment name the server
// suggested.
func (c *apiClient) Stream(ctx context.Context, req streamRequest, w io.Writer) (string, int64, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/download/stream", req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	return attachmentName(resp.Header.Get("Content-Disposition")), n, err
}

// Fetch downloads a finished background file. The server deletes it after a
// complete transfer.
func (c *apiClient) Fetch(ctx context.Context, filename string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/download/file/"+url.PathEscape(filename), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

// Watch subscribes to a task's progress and calls fn for every event until a
// terminal one arrives, which is also returned.
func (c *apiClient) Watch(ctx context.Context, taskID string, fn func(domain.ProgressEvent)) (domain.ProgressEvent, error) {
	wsURL, err := c.websocketURL("/ws/" + url.PathEscape(taskID))
	if err != nil {
		return domain.ProgressEvent{}, err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return domain.ProgressEvent{}, fmt.Errorf("failed to subscribe: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var event domain.ProgressEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.ProgressEvent{}, ctxErr
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return domain.ProgressEvent{}, errors.New("server closed the progress stream before the task ended")
			}
			return domain.ProgressEvent{}, fmt.Errorf("progress stream: %w", err)
		}
		if fn != nil {
			fn(event)
		}
		if event.IsTerminal() {
			return event, nil
		}
	}
}

func (c *apiClient) websocketURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
