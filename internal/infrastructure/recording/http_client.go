package recording

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
)

// HTTPClient talks to an external recording service over its REST API.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) ports.RecordingService {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type startRequest struct {
	StreamKey domain.StreamKey `json:"stream_key"`
	Owner     domain.UserID    `json:"owner"`
}

type stopRequest struct {
	StreamKey domain.StreamKey `json:"stream_key"`
}

type recordingResponse struct {
	Started bool   `json:"started"`
	Stopped bool   `json:"stopped"`
	Error   string `json:"error"`
}

func (c *HTTPClient) Start(ctx context.Context, key domain.StreamKey, owner domain.UserID) (bool, error) {
	var resp recordingResponse
	if err := c.post(ctx, "/recordings/start", startRequest{StreamKey: key, Owner: owner}, &resp); err != nil {
		return false, err
	}
	if resp.Error != "" {
		return false, fmt.Errorf("recording start rejected: %s", resp.Error)
	}
	return resp.Started, nil
}

func (c *HTTPClient) Stop(ctx context.Context, key domain.StreamKey) (bool, error) {
	var resp recordingResponse
	if err := c.post(ctx, "/recordings/stop", stopRequest{StreamKey: key}, &resp); err != nil {
		return false, err
	}
	if resp.Error != "" {
		return false, fmt.Errorf("recording stop rejected: %s", resp.Error)
	}
	return resp.Stopped, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("recording service unreachable: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 500 {
		return fmt.Errorf("recording service error: status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
