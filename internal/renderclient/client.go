// Package renderclient calls the render service over HTTP and decodes its
// streamed diagnostics.
package renderclient

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

	"bmsrender/internal/diag"
	"bmsrender/internal/render"
)

// RenderRequest is the body of the render operation.
type RenderRequest struct {
	URL string `json:"url"`
}

// Client issues render requests against a render service instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a client. The timeout bounds the whole render call, so it
// has to cover the longest pipeline invocation.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Render submits one render attempt and returns the authoritative
// diagnostics parsed from the final line of the streamed response.
func (c *Client) Render(ctx context.Context, operationID, sourceURL string) (*diag.Diagnostics, error) {
	body, err := json.Marshal(RenderRequest{URL: sourceURL})
	if err != nil {
		return nil, render.Wrap(render.ErrValidation, "dispatch", "encode request", err)
	}

	endpoint := c.baseURL + "/render/" + url.PathEscape(operationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, render.Wrap(render.ErrValidation, "dispatch", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, render.Wrap(render.ErrNetwork, "dispatch", "call render service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		detail := fmt.Sprintf("render service returned %d", resp.StatusCode)
		if trimmed := strings.TrimSpace(string(payload)); trimmed != "" {
			detail += ": " + trimmed
		}
		return nil, render.Wrap(render.ErrNetwork, "dispatch", detail, nil)
	}

	var result diag.Diagnostics
	if err := DecodeLastJSON(resp.Body, &result); err != nil {
		return nil, render.Wrap(render.ErrParse, "dispatch", "decode streamed result", err)
	}
	return &result, nil
}
