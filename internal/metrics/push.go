package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// 文档注释：推送指标到 Pushgateway
// 背景：切割作业是一次性批处理，进程结束后无法被抓取，因此在运行结束时主动推送一次。
// 约束：url 为空时跳过；以 run_id 作为分组键，避免并行运行互相覆盖。
func Push(ctx context.Context, url, job, runID string) error {
	if url == "" {
		return nil
	}
	return push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("run_id", runID).
		PushContext(ctx)
}
