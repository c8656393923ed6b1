package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// 文档注释：运行日志记录器
// 背景：批处理作业结束（成功或失败）后需要一份完整的运行日志用于归档与告警；记录器包装实际输出的 Handler，
// 在透传的同时把每条记录格式化为一行文本保存在内存中。
// 约束：记录不受输出级别过滤影响以外的限制：仅保存实际被 inner 接受的级别；WithAttrs/WithGroup 派生的
// Handler 共享同一缓冲区。
type Recorder struct {
	inner  slog.Handler
	buf    *lineBuffer
	attrs  []slog.Attr
	groups []string
}

type lineBuffer struct {
	mu    sync.Mutex
	lines []string
}

func NewRecorder(inner slog.Handler) *Recorder {
	return &Recorder{inner: inner, buf: &lineBuffer{}}
}

func (r *Recorder) Enabled(ctx context.Context, lvl slog.Level) bool {
	return r.inner.Enabled(ctx, lvl)
}

func (r *Recorder) Handle(ctx context.Context, rec slog.Record) error {
	var sb strings.Builder
	sb.WriteString(rec.Time.Format("2006-01-02 15:04:05"))
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%-5s", rec.Level.String()))
	sb.WriteString(" ")
	sb.WriteString(rec.Message)
	prefix := ""
	if len(r.groups) > 0 {
		prefix = strings.Join(r.groups, ".") + "."
	}
	for _, a := range r.attrs {
		sb.WriteString(" " + prefix + a.Key + "=" + a.Value.String())
	}
	rec.Attrs(func(a slog.Attr) bool {
		sb.WriteString(" " + prefix + a.Key + "=" + a.Value.String())
		return true
	})
	r.buf.mu.Lock()
	r.buf.lines = append(r.buf.lines, sb.String())
	r.buf.mu.Unlock()
	return r.inner.Handle(ctx, rec)
}

func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := *r
	n.inner = r.inner.WithAttrs(attrs)
	n.attrs = append(append([]slog.Attr{}, r.attrs...), attrs...)
	return &n
}

func (r *Recorder) WithGroup(name string) slog.Handler {
	n := *r
	n.inner = r.inner.WithGroup(name)
	n.groups = append(append([]string{}, r.groups...), name)
	return &n
}

// Lines：返回当前已记录内容的副本
func (r *Recorder) Lines() []string {
	r.buf.mu.Lock()
	defer r.buf.mu.Unlock()
	return append([]string(nil), r.buf.lines...)
}

// WriteFile：把运行日志写入指定路径，目录不存在时创建
// 约束：path 为空时不做任何事；文件内容末尾附带写出时间
func (r *Recorder) WriteFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	lines := r.Lines()
	lines = append(lines, "# written "+time.Now().Format(time.RFC3339))
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
