package mokka

import (
	"fmt"
	"net/http"
	"time"
)

// applyRequestInterceptors runs the configured request interceptors in
// registration order. Each interceptor may return a replacement request;
// a nil return keeps the current one. The first error aborts the chain.
func (c *Client) applyRequestInterceptors(req *http.Request) (*http.Request, error) {
	for _, interceptor := range c.requestInterceptors {
		next, err := interceptor(req)
		if err != nil {
			return req, err
		}
		if next != nil {
			req = next
		}
	}
	return req, nil
}

// applyResponseInterceptors runs the configured response interceptors in
// registration order. Each interceptor may return a replacement response;
// a nil return keeps the current one. The first error aborts the chain,
// returning the latest response so the caller can release its body.
func (c *Client) applyResponseInterceptors(resp *http.Response) (*http.Response, error) {
	for _, interceptor := range c.responseInterceptors {
		next, err := interceptor(resp)
		if next != nil {
			resp = next
		}
		if err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// SetHeaders returns a request interceptor that sets the given headers on
// every outgoing request. The request is cloned so the caller's copy is
// left untouched.
func SetHeaders(headers map[string]string) RequestInterceptor {
	return func(req *http.Request) (*http.Request, error) {
		if len(headers) == 0 {
			return req, nil
		}
		clone := req.Clone(req.Context())
		for name, value := range headers {
			clone.Header.Set(name, value)
		}
		return clone, nil
	}
}

// PromoteHTTPErrors returns a response interceptor that converts matching
// status codes into errors of type ErrorTypeStatus. With no codes given,
// every non-2xx response is promoted. A promoted response is released by
// the pipeline; callers get the error alone, carrying the status code and
// request metadata.
func PromoteHTTPErrors(codes ...int) ResponseInterceptor {
	match := func(status int) bool {
		if len(codes) == 0 {
			return status < 200 || status >= 300
		}
		for _, code := range codes {
			if status == code {
				return true
			}
		}
		return false
	}

	return func(resp *http.Response) (*http.Response, error) {
		if resp == nil || !match(resp.StatusCode) {
			return resp, nil
		}

		clientErr := &ClientError{
			Type:       ErrorTypeStatus,
			Message:    fmt.Sprintf("HTTP error %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Timestamp:  time.Now(),
		}
		if resp.Request != nil {
			clientErr.Method = resp.Request.Method
			if resp.Request.URL != nil {
				clientErr.URL = resp.Request.URL.String()
				clientErr.Endpoint = endpointFromRequest(resp.Request)
			}
		}
		return resp, clientErr
	}
}
