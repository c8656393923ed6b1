// 包 logger：出站 HTTP 访问日志，统一记录远端请求的关键维度（方法、主机、路径、状态、耗时、字节数）
package logger

import (
	"log/slog"
	"net/http"
	"time"
)

// accessTransport：包装 RoundTripper 以记录每次出站请求
type accessTransport struct {
	next http.RoundTripper
	l    *slog.Logger
}

// AccessTransport：生成出站访问日志 Transport
// 约束：不读取请求/响应体；next 为空时使用 http.DefaultTransport；查询串不入日志
func AccessTransport(l *slog.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &accessTransport{next: next, l: l}
}

func (t *accessTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	dur := time.Since(start)
	if err != nil {
		t.l.Debug("http_access",
			"method", r.Method,
			"host", r.URL.Host,
			"path", r.URL.Path,
			"duration_ms", dur.Milliseconds(),
			"err", err,
		)
		return nil, err
	}
	t.l.Debug("http_access",
		"method", r.Method,
		"host", r.URL.Host,
		"path", r.URL.Path,
		"status", resp.StatusCode,
		"bytes", resp.ContentLength,
		"duration_ms", dur.Milliseconds(),
	)
	return resp, nil
}
