package services

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	ckDashboardMetrics     = "agg_dashboard_metrics_user_%d"
	ckFeeReport            = "agg_fee_report_user_%d"
	ckQuote                = "quote_%s"
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// NewReportCache returns the cache shared by the journal, import and quote services.
func NewReportCache(expiration time.Duration) *cache.Cache {
	if expiration <= 0 {
		expiration = DefaultCacheExpiration
	}
	return cache.New(expiration, CacheCleanupInterval)
}

func invalidateUserCache(c *cache.Cache, userID int64) {
	c.Delete(fmt.Sprintf(ckDashboardMetrics, userID))
	c.Delete(fmt.Sprintf(ckFeeReport, userID))
}
