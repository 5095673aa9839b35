// Package wecom implements the TokenFetcher and APIClient ports against the
// WeCom server API using resty.
package wecom

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ericfisherdev/wecomkit/internal/domain/model"
	"github.com/ericfisherdev/wecomkit/internal/domain/port/driven"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://qyapi.weixin.qq.com"

// Compile-time interface satisfaction checks.
var (
	_ driven.TokenFetcher = (*Client)(nil)
	_ driven.APIClient    = (*Client)(nil)
)

// Client talks to the WeCom server API. It never logs credential values.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewClient creates a Client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "wecomkit/1.0")

	return &Client{http: httpClient, logger: logger}
}

// FetchAccessToken calls /cgi-bin/gettoken.
func (c *Client) FetchAccessToken(ctx context.Context, corpID, secret string) (model.FetchResult, error) {
	return c.fetch(ctx, "gettoken", "/cgi-bin/gettoken", "access_token", map[string]string{
		"corpid":     corpID,
		"corpsecret": secret,
	})
}

// FetchAgentTicket calls /cgi-bin/ticket/get?type=agent_config.
func (c *Client) FetchAgentTicket(ctx context.Context, accessToken string) (model.FetchResult, error) {
	return c.fetch(ctx, "ticket/get", "/cgi-bin/ticket/get", "ticket", map[string]string{
		"access_token": accessToken,
		"type":         "agent_config",
	})
}

// FetchCorpTicket calls /cgi-bin/get_jsapi_ticket.
func (c *Client) FetchCorpTicket(ctx context.Context, accessToken string) (model.FetchResult, error) {
	return c.fetch(ctx, "get_jsapi_ticket", "/cgi-bin/get_jsapi_ticket", "ticket", map[string]string{
		"access_token": accessToken,
	})
}

func (c *Client) fetch(ctx context.Context, op, path, valueField string, params map[string]string) (model.FetchResult, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return model.FetchResult{}, &model.CredentialFetchError{Op: op, Err: err}
	}
	c.logger.Debug("wecom credential fetch", "op", op, "status", resp.StatusCode(), "duration", time.Since(start))

	if resp.IsError() {
		return model.FetchResult{}, &model.CredentialFetchError{
			Op:  op,
			Err: fmt.Errorf("unexpected http status %d", resp.StatusCode()),
		}
	}

	var doc map[string]any
	if err := json.Unmarshal(resp.Body(), &doc); err != nil {
		return model.FetchResult{}, &model.CredentialFetchError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	if code := intField(doc, "errcode"); code != 0 {
		msg, _ := doc["errmsg"].(string)
		return model.FetchResult{}, &model.CredentialFetchError{Op: op, Code: code, Message: msg}
	}

	value, _ := doc[valueField].(string)
	return model.FetchResult{
		Value:     value,
		ExpiresIn: intField(doc, "expires_in"),
		Fields:    doc,
	}, nil
}

// apiStatus is the errcode envelope every API response carries.
type apiStatus struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Do sends an authorized request and decodes the response into out.
func (c *Client) Do(ctx context.Context, method, path, accessToken string, query url.Values, body, out any) error {
	req := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetQueryParam("access_token", accessToken)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.Debug("wecom api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode(),
		"duration", time.Since(start),
	)

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected http status %d", method, path, resp.StatusCode())
	}

	var status apiStatus
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if status.ErrCode != 0 {
		return &model.APIError{Path: path, Code: status.ErrCode, Message: status.ErrMsg}
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("%s %s: decode result: %w", method, path, err)
		}
	}
	return nil
}

func intField(doc map[string]any, key string) int {
	if f, ok := doc[key].(float64); ok {
		return int(f)
	}
	return 0
}
