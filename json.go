package mokka

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Marshaler serializes request bodies for the JSON convenience methods.
type Marshaler interface {
	Marshal(v interface{}) ([]byte, error)
}

// Unmarshaler deserializes response bodies for the JSON convenience methods.
type Unmarshaler interface {
	Unmarshal(data []byte, v interface{}) error
}

type jsonMarshaler struct{}

func (jsonMarshaler) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

type jsonUnmarshaler struct{}

func (jsonUnmarshaler) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// TypedResponse carries the response metadata alongside the fully read body
// for callers that want both the decoded value and the raw exchange. The
// body has already been consumed and closed.
type TypedResponse struct {
	Response   *http.Response
	StatusCode int
	Header     http.Header
	Body       []byte
}

// GetJSON issues a GET to url and unmarshals the response body into out.
// Non-2xx statuses are reported as errors of type ErrorTypeStatus; an empty
// body leaves out untouched.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	_, err := c.GetTyped(ctx, url, out)
	return err
}

// PostJSON marshals body, issues a POST to url and unmarshals the response
// into out. A nil body sends no payload.
func (c *Client) PostJSON(ctx context.Context, url string, body, out interface{}) error {
	_, err := c.PostTyped(ctx, url, body, out)
	return err
}

// GetTyped is GetJSON returning the response metadata alongside the decoded
// value.
func (c *Client) GetTyped(ctx context.Context, url string, out interface{}) (*TypedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.doTyped(req, out)
}

// PostTyped is PostJSON returning the response metadata alongside the
// decoded value.
func (c *Client) PostTyped(ctx context.Context, url string, body, out interface{}) (*TypedResponse, error) {
	var reader io.Reader
	if body != nil {
		data, err := c.marshaler.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.doTyped(req, out)
}

// DoJSON executes req through the full pipeline and unmarshals the response
// body into out.
func (c *Client) DoJSON(req *http.Request, out interface{}) error {
	_, err := c.doTyped(req, out)
	return err
}

func (c *Client) doTyped(req *http.Request, out interface{}) (*TypedResponse, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	typed := &TypedResponse{
		Response:   resp,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return typed, &ClientError{
			Type:       ErrorTypeStatus,
			Message:    fmt.Sprintf("HTTP error %d", resp.StatusCode),
			Method:     req.Method,
			URL:        req.URL.String(),
			Endpoint:   endpointFromRequest(req),
			StatusCode: resp.StatusCode,
			Timestamp:  time.Now(),
		}
	}

	if out == nil || len(data) == 0 {
		return typed, nil
	}
	if err := c.unmarshaler.Unmarshal(data, out); err != nil {
		return typed, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return typed, nil
}
