package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the console API HTTP client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	verbose    bool
	logOut     io.Writer
}

// NewClient creates a new API client.
func NewClient(baseURL, token string, verbose bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		verbose: verbose,
		logOut:  io.Discard,
	}
}

// envelope is the response body of every API call.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Post sends body to path and returns the data of a successful envelope.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	if body == nil {
		body = struct{}{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.verbose {
		fmt.Fprintf(c.logOut, ">>> POST %s\n", url)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if c.verbose {
		fmt.Fprintf(c.logOut, "<<< %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if resp.StatusCode >= 400 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return env.Data, nil
}

// APIError represents a failed API call.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Missing    []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if len(e.Missing) > 0 {
		msg += " (missing: " + strings.Join(e.Missing, ", ") + ")"
	}
	return msg
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed struct {
		Message string `json:"message"`
		Data    struct {
			Error   string   `json:"error"`
			Missing []string `json:"missing"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.Data.Error
		apiErr.Message = parsed.Message
		apiErr.Missing = parsed.Data.Missing
	}

	if apiErr.Message == "" {
		switch statusCode {
		case http.StatusUnauthorized:
			apiErr.Message = "unauthorized: invalid or missing token"
		case http.StatusNotFound:
			apiErr.Message = "resource not found"
		case http.StatusTooManyRequests:
			apiErr.Message = "rate limited, retry later"
		}
	}
	return apiErr
}
