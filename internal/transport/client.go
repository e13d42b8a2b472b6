package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxBodySize = 1 << 20 // 1 MiB

	// NetworkErrorMessage — общий текст для отказов сети; детали уходят только в лог.
	NetworkErrorMessage = "Network error: backend is unreachable"
)

// Doer — минимальный контракт http.Client. Позволяет подложить Guard или заглушку в тестах.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer получает факт каждого запроса (метрики).
type Observer interface {
	ObserveRequest(endpoint string, outcome string, d time.Duration)
}

type Client struct {
	baseURL  *url.URL
	http     Doer
	logger   *zap.Logger
	observer Observer
}

// Options описывают запрос. Пустой Method означает GET.
type Options struct {
	Method string
	Query  url.Values
	Header http.Header
	Body   io.Reader
}

// New создает клиент. Повторов нет: каждый вызывающий сам решает, что делать с отказом.
func New(baseURL string, doer Doer, logger *zap.Logger, observer Observer) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.New("transport: backend base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("transport: base URL %q must be absolute", base)
	}
	if doer == nil {
		doer = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  u,
		http:     doer,
		logger:   logger.Named("transport"),
		observer: observer,
	}, nil
}

// BaseURL адрес бэкенда без завершающего слэша.
func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	u.Fragment = ""
	return u.String()
}

// Request выполняет вызов и нормализует итог в Outcome[T]. Паники и ошибки наружу не выходят.
func Request[T any](ctx context.Context, c *Client, path string, opts Options) Outcome[T] {
	body, failure := c.do(ctx, path, opts)
	if failure != nil {
		return Fail[T](failure)
	}

	var payload T
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("malformed backend payload", zap.String("path", path), zap.Error(err))
		return Fail[T](&Failure{Kind: KindParse, Message: "Invalid JSON response: " + err.Error()})
	}
	return Success(payload)
}

// PostJSON сериализует тело и отправляет его POST-ом.
func PostJSON[T any](ctx context.Context, c *Client, path string, body any) Outcome[T] {
	data, err := json.Marshal(body)
	if err != nil {
		return Fail[T](&Failure{Kind: KindParse, Message: "Invalid request body: " + err.Error()})
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return Request[T](ctx, c, path, Options{Method: http.MethodPost, Header: h, Body: bytes.NewReader(data)})
}

func (c *Client) do(ctx context.Context, path string, opts Options) ([]byte, *Failure) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	target := c.endpoint(path, opts.Query)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, method, target, opts.Body)
	if err != nil {
		c.observe(path, KindNetwork.String(), start)
		return nil, &Failure{Kind: KindNetwork, Message: NetworkErrorMessage}
	}
	for k, vals := range opts.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	// каждый вызов обязан увидеть текущее состояние сервера
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")
	traceID := uuid.New().String()
	req.Header.Set("X-Trace-ID", traceID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("trace_id", traceID),
			zap.Error(err))
		c.observe(path, KindNetwork.String(), start)
		return nil, &Failure{Kind: KindNetwork, Message: NetworkErrorMessage}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.observe(path, KindNetwork.String(), start)
		return nil, &Failure{Kind: KindNetwork, Message: NetworkErrorMessage}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("Request failed (%d)", resp.StatusCode)
		}
		c.logger.Debug("backend returned error status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("trace_id", traceID))
		c.observe(path, KindHTTP.String(), start)
		return nil, &Failure{Kind: KindHTTP, Message: msg, StatusCode: resp.StatusCode}
	}

	c.observe(path, "success", start)
	return body, nil
}

func (c *Client) observe(path, outcome string, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRequest(path, outcome, time.Since(start))
}
