// Package upstream wraps the free A-share data feed's HTTP+JSON endpoints
// behind one method per logical dataset (spec.md §4.1), adapted from the
// teacher's TushareClient request/response shape but generalized: parsers
// now read through frame.Frame's name-based column accessors instead of
// each hand-rolling a fieldMap.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"leeksaver/internal/errkind"
	"leeksaver/internal/frame"
)

// Client talks to the upstream feed's single JSON-RPC-style endpoint,
// mirroring TushareClient's {api_name, token, params, fields} request
// shape.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// New builds a Client. timeout bounds each individual HTTP round trip;
// the Rate Gate layers its own overall call deadline on top.
func New(token, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type apiRequest struct {
	APIName string                 `json:"api_name"`
	Token   string                 `json:"token"`
	Params  map[string]interface{} `json:"params"`
	Fields  string                 `json:"fields"`
}

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type apiData struct {
	Fields []string        `json:"fields"`
	Items  [][]interface{} `json:"items"`
}

// call posts one request and returns the parsed columnar frame. It does
// not retry — retry is the Rate Gate's job, one layer up.
func (c *Client) call(ctx context.Context, apiName, fields string, params map[string]interface{}) (*frame.Frame, error) {
	req := apiRequest{APIName: apiName, Token: c.token, Params: params, Fields: fields}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errkind.New(errkind.Unknown, "upstream.call", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errkind.New(errkind.Unknown, "upstream.call", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errkind.New(errkind.DeadlineExceeded, "upstream.call", err)
		}
		return nil, errkind.New(errkind.UpstreamUnavailable, "upstream.call", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errkind.New(errkind.RateLimited, "upstream.call", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 500 {
		return nil, errkind.New(errkind.UpstreamUnavailable, "upstream.call", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, errkind.New(errkind.Unknown, "upstream.call", fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errkind.New(errkind.UpstreamUnavailable, "upstream.call", err)
	}
	if parsed.Code == 40203 || parsed.Code == 40101 {
		return nil, errkind.New(errkind.RateLimited, "upstream.call", fmt.Errorf("%s", parsed.Msg))
	}
	if parsed.Code != 0 {
		return nil, errkind.New(errkind.UpstreamUnavailable, "upstream.call", fmt.Errorf("%s", parsed.Msg))
	}

	var data apiData
	if len(parsed.Data) > 0 {
		if err := json.Unmarshal(parsed.Data, &data); err != nil {
			return nil, errkind.New(errkind.SchemaDrift, "upstream.call", err)
		}
	}
	if len(data.Items) == 0 {
		return nil, errkind.New(errkind.Empty, "upstream.call", nil)
	}

	return &frame.Frame{Fields: data.Fields, Items: data.Items}, nil
}
