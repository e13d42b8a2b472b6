// Package idsapi — типизированные вызовы HTTP-поверхности IDS бэкенда.
package idsapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

const (
	pathRoot          = "/"
	pathStats         = "/stats"
	pathStatsReset    = "/stats/reset"
	pathMonitorStart  = "/monitor/start"
	pathMonitorStop   = "/monitor/stop"
	pathMonitorStatus = "/monitor/status"
	pathRecentAlerts  = "/recent/alerts"
	pathPredict       = "/predict"
	pathUploadDataset = "/upload-dataset/"
	pathReplayStart   = "/dataset/test"
	pathReplayStatus  = "/dataset/test/status"
	pathSourceStatus  = "/source/status"
)

// Client оборачивает transport.Client и знает пути, параметры и формы ответов.
// Ретраев нет: итог любого вызова решает вызывающий.
type Client struct {
	t *transport.Client
}

func New(t *transport.Client) *Client {
	return &Client{t: t}
}

// Ping — GET / (проверка готовности бэкенда).
func (c *Client) Ping(ctx context.Context) transport.Outcome[domain.Ack] {
	return ack(transport.Request[domain.Ack](ctx, c.t, pathRoot, transport.Options{}))
}

func (c *Client) Stats(ctx context.Context) transport.Outcome[domain.StatsSnapshot] {
	return transport.Request[domain.StatsSnapshot](ctx, c.t, pathStats, transport.Options{})
}

func (c *Client) ResetStats(ctx context.Context) transport.Outcome[domain.Ack] {
	return ack(transport.Request[domain.Ack](ctx, c.t, pathStatsReset, transport.Options{Method: http.MethodPost}))
}

func (c *Client) StartMonitor(ctx context.Context) transport.Outcome[domain.Ack] {
	return ack(transport.Request[domain.Ack](ctx, c.t, pathMonitorStart, transport.Options{}))
}

func (c *Client) StopMonitor(ctx context.Context) transport.Outcome[domain.Ack] {
	return ack(transport.Request[domain.Ack](ctx, c.t, pathMonitorStop, transport.Options{}))
}

func (c *Client) MonitorStatus(ctx context.Context) transport.Outcome[domain.MonitorStatus] {
	return transport.Request[domain.MonitorStatus](ctx, c.t, pathMonitorStatus, transport.Options{})
}

// RecentAlerts запрашивает последние limit алертов. limit <= 0 заменяется размером страницы по умолчанию.
func (c *Client) RecentAlerts(ctx context.Context, limit int) transport.Outcome[domain.AlertFeed] {
	if limit <= 0 {
		limit = domain.DefaultAlertLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return transport.Request[domain.AlertFeed](ctx, c.t, pathRecentAlerts, transport.Options{Query: q})
}

// Predict отправляет одну запись признаков. features сериализуется как есть.
func (c *Client) Predict(ctx context.Context, features any) transport.Outcome[domain.Prediction] {
	return transport.PostJSON[domain.Prediction](ctx, c.t, pathPredict, features)
}

// UploadDataset — информационная загрузка: бэкенд только считает строки и колонки.
func (c *Client) UploadDataset(ctx context.Context, mode domain.DatasetMode, file transport.FileUpload) transport.Outcome[domain.DatasetInfo] {
	q := url.Values{}
	q.Set("mode", string(mode))
	out := transport.SubmitFile[domain.DatasetInfo](ctx, c.t, pathUploadDataset, q, file)
	if out.OK() && out.Payload().Failed() {
		return transport.Fail[domain.DatasetInfo](appFailure(out.Payload().Message))
	}
	return out
}

func (c *Client) StartReplay(ctx context.Context, file transport.FileUpload, p domain.ReplayParams) transport.Outcome[domain.ReplayStart] {
	q := url.Values{}
	q.Set("max_rows", strconv.Itoa(p.MaxRows))
	q.Set("sleep_ms", strconv.Itoa(p.SleepMs))
	out := transport.SubmitFile[domain.ReplayStart](ctx, c.t, pathReplayStart, q, file)
	if !out.OK() {
		return out
	}
	start := out.Payload()
	if (domain.Ack{Status: start.Status}).Failed() {
		return transport.Fail[domain.ReplayStart](appFailure(""))
	}
	if strings.TrimSpace(start.JobID) == "" {
		return transport.Fail[domain.ReplayStart](&transport.Failure{
			Kind:    transport.KindParse,
			Message: "Invalid JSON response: job_id is missing",
		})
	}
	return out
}

func (c *Client) ReplayStatus(ctx context.Context, jobID string) transport.Outcome[domain.ReplayJob] {
	q := url.Values{}
	q.Set("job_id", jobID)
	return transport.Request[domain.ReplayJob](ctx, c.t, pathReplayStatus, transport.Options{Query: q})
}

func (c *Client) SourceStatus(ctx context.Context) transport.Outcome[domain.SourceStatus] {
	return transport.Request[domain.SourceStatus](ctx, c.t, pathSourceStatus, transport.Options{})
}

// ack превращает {"status": "error"} при HTTP 200 в обычный отказ.
func ack(out transport.Outcome[domain.Ack]) transport.Outcome[domain.Ack] {
	if out.OK() && out.Payload().Failed() {
		return transport.Fail[domain.Ack](appFailure(out.Payload().Message))
	}
	return out
}

func appFailure(msg string) *transport.Failure {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "Backend reported an error"
	}
	return &transport.Failure{Kind: transport.KindHTTP, Message: msg, StatusCode: http.StatusOK}
}
