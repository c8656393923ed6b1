package coastline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"place-boundaries/internal/dataset"
	"place-boundaries/internal/logger"
	"place-boundaries/internal/metrics"

	"github.com/paulmach/orb/geojson"
)

// ErrNoSource：未配置远端海岸线图层地址
var ErrNoSource = errors.New("coastline: layer url not configured")

// Fetcher：ArcGIS FeatureServer 图层查询参数
type Fetcher struct {
	URL           string
	SRID          int
	CategoryField string
	PageSize      int
	MaxAttempts   int
	Backoff       time.Duration
	Client        *http.Client
}

// page：f=geojson 响应中分页相关的字段
type page struct {
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
	Properties            struct {
		ExceededTransferLimit bool `json:"exceededTransferLimit"`
	} `json:"properties"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p page) more() bool { return p.ExceededTransferLimit || p.Properties.ExceededTransferLimit }

// statusError：非 2xx 响应
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return fmt.Sprintf("http %d: %s", e.code, e.body) }

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// 文档注释：分页拉取完整海岸线图层
// 背景：where=1=1、outFields=*、f=geojson，按 resultOffset/resultRecordCount 翻页，直到空页，或短页且服务端未标记 exceededTransferLimit。
// 约束：网络错误、5xx 与 429 按指数退避重试，超过 MaxAttempts 后失败；其他 4xx 立即失败；非面要素跳过。
func (f *Fetcher) Fetch(ctx context.Context, name string) (*dataset.Dataset, error) {
	if f.URL == "" {
		return nil, ErrNoSource
	}
	l := logger.L()
	size := f.PageSize
	if size <= 0 {
		size = 2000
	}
	var all []*geojson.Feature
	for offset := 0; ; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fc, p, err := f.pageWithRetry(ctx, offset, size)
		if err != nil {
			return nil, fmt.Errorf("coastline page offset=%d: %w", offset, err)
		}
		n := len(fc.Features)
		all = append(all, fc.Features...)
		l.Debug("coastline_page", "offset", offset, "features", n, "more", p.more())
		if n == 0 || (!p.more() && n < size) {
			break
		}
		offset += n
	}
	ds, skipped := dataset.FromGeoJSON(name, f.SRID, all, f.categoryField())
	for i := range ds.Features {
		if c := ds.Features[i].Category; c != nil && *c == "" {
			ds.Features[i].Category = nil
		}
	}
	if skipped > 0 {
		l.Debug("coastline_skipped_non_polygon", "count", skipped)
	}
	l.Info("coastline_fetched", "features", len(ds.Features), "skipped", skipped)
	return ds, nil
}

func (f *Fetcher) categoryField() string {
	if f.CategoryField == "" {
		return dataset.FieldCategory
	}
	return f.CategoryField
}

func (f *Fetcher) pageWithRetry(ctx context.Context, offset, size int) (*geojson.FeatureCollection, page, error) {
	attempts := f.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	wait := f.Backoff
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			metrics.CoastlineFetchRetriesTotal.Inc()
			logger.L().Warn("coastline_retry", "offset", offset, "attempt", i+1, "wait_ms", wait.Milliseconds(), "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, page{}, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
		fc, p, err := f.fetchPage(ctx, offset, size)
		if err == nil {
			return fc, p, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}
	return nil, page{}, lastErr
}

func (f *Fetcher) fetchPage(ctx context.Context, offset, size int) (*geojson.FeatureCollection, page, error) {
	q := url.Values{}
	q.Set("where", "1=1")
	q.Set("outFields", "*")
	q.Set("f", "geojson")
	q.Set("outSR", strconv.Itoa(f.SRID))
	q.Set("resultOffset", strconv.Itoa(offset))
	q.Set("resultRecordCount", strconv.Itoa(size))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL+"/query?"+q.Encode(), nil)
	if err != nil {
		return nil, page{}, err
	}
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, page{}, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, page{}, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, page{}, &statusError{code: resp.StatusCode, body: truncate(string(b), 200)}
	}
	var p page
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, page{}, err
	}
	// ArcGIS 在 200 响应体中返回错误
	if p.Error != nil {
		return nil, page{}, &statusError{code: p.Error.Code, body: p.Error.Message}
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, page{}, err
	}
	return fc, p, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
