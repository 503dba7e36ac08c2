package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrRequestFailed   = errors.New("upstream request failed")
	ErrResponseInvalid = errors.New("upstream response invalid")
	ErrUnauthorized    = errors.New("upstream unauthorized")
	ErrNotFound        = errors.New("upstream resource not found")
)

const defaultTimeout = 12 * time.Second

// Client 上游平台 API 客户端
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient 创建上游客户端
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout:    timeout,
		httpClient: http.DefaultClient,
	}
}

// errorEnvelope 上游错误响应
type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorEnvelope) text() string {
	if strings.TrimSpace(e.Message) != "" {
		return strings.TrimSpace(e.Message)
	}
	return strings.TrimSpace(e.Error)
}

// doJSON 发送 JSON 请求并返回响应体
// 非 2xx 状态统一映射到哨兵错误，错误消息取自上游错误包络
func (c *Client) doJSON(ctx context.Context, method, endpoint, token string, payload interface{}) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal request failed", ErrRequestFailed)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	var envelope errorEnvelope
	_ = json.Unmarshal(respBody, &envelope)
	message := envelope.text()
	if message == "" {
		message = fmt.Sprintf("status %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, message)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, message)
	default:
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, message)
	}
}

func (c *Client) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// unwrapData 剥离 {"data": ...} 包络，无包络时原样返回
func unwrapData(body []byte) json.RawMessage {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data
	}
	return body
}
