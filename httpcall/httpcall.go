// Package httpcall performs JSON-RPC 2.0 calls over HTTP and shapes the
// responses for the retry interceptor.
package httpcall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vietddude/redial/retry"
)

// Client is a thin JSON-RPC client. It does not retry on its own; wrap its
// attempts with a retry.Interceptor.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a Client for the given endpoint.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Attempt returns a retry.Attempt that performs one call of method, using
// the attempt payload as params. Connection-level failures surface as
// errors; rate limits and server errors come back as structural results.
func (c *Client) Attempt(method string) retry.Attempt {
	return func(ctx context.Context, callID string, payload any) (retry.Result, error) {
		body, err := json.Marshal(rpcRequest{
			JSONRPC: "2.0",
			Method:  method,
			Params:  payload,
			ID:      1,
		})
		if err != nil {
			return retry.Result{}, fmt.Errorf("marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return retry.Result{}, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// url.Error satisfies net.Error, so the interceptor
			// classifies this as a transport failure.
			return retry.Result{}, fmt.Errorf("rpc call: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			res := retry.Result{Code: resp.StatusCode}
			if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
				res.RetryAfter = d
				res.HasRetryAfter = true
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			return res, nil
		}

		if resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return retry.Result{Code: resp.StatusCode}, nil
		}

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return retry.Result{Code: resp.StatusCode}, nil
		}

		var rpcResp rpcResponse
		if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
			return retry.Result{}, fmt.Errorf("decode response: %w", err)
		}

		if rpcResp.Error != nil {
			// Protocol-level error in a well-formed response:
			// terminal, not retried.
			return retry.Result{Code: resp.StatusCode, Body: rpcResp.Error}, nil
		}

		return retry.Result{OK: true, Body: rpcResp.Result}, nil
	}
}

// parseRetryAfter understands the delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
