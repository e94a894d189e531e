package cache

import (
	"context"
	"time"

	"github.com/KurniaRadhit/Stockmate/internal/report"
)

// ReportCache memoizes computed sales reports. Reports are derived purely
// from confirmed orders, so a short TTL keeps repeated report views cheap
// without risking stale confirmations lingering for long.
type ReportCache interface {
	Get(ctx context.Context, key string) (*report.SalesReport, bool, error)
	Set(ctx context.Context, key string, value *report.SalesReport, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*report.SalesReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *report.SalesReport, _ time.Duration) error {
	return nil
}
