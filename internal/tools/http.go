package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	xerrors "omni-agent/internal/errors"
)

const maxErrorBody = 512

// HTTPClient 所有适配器共享的 JSON over HTTP 客户端
type HTTPClient struct {
	http    *http.Client
	headers http.Header
}

// NewHTTPClient 创建客户端，timeout 为单次请求的上限
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{http: &http.Client{Timeout: timeout}}
}

// WithHeader 返回附加了固定请求头的副本
func (c *HTTPClient) WithHeader(key, value string) *HTTPClient {
	h := c.headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(key, value)
	return &HTTPClient{http: c.http, headers: h}
}

// Do 发送请求并把 JSON 响应解码到 out（out 为 nil 时丢弃响应体）。
// 非 2xx、传输错误和解码错误都返回 UPSTREAM_FAILURE。
func (c *HTTPClient) Do(ctx context.Context, method, endpoint string, query url.Values, body any, out any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeUpstreamFailure, err, fmt.Sprintf("%s %s", method, endpoint))
	}
	defer resp.Body.Close()

	slog.Debug("upstream call",
		slog.String("method", method),
		slog.String("url", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return xerrors.New(xerrors.CodeUpstreamFailure,
			fmt.Sprintf("%s %s returned %d: %s", method, endpoint, resp.StatusCode, upstreamMessage(snippet)),
			xerrors.WithMeta(xerrors.MetaStatus, strconv.Itoa(resp.StatusCode)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "decode response")
	}
	return nil
}

// upstreamMessage 优先取响应中的 error/message 字段
func upstreamMessage(body []byte) string {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if s, ok := payload.Error.(string); ok && s != "" {
			return s
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response"
	}
	return text
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
