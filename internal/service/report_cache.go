package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ReportCache keeps rendered report PDFs in Redis keyed by student and
// category so repeated downloads skip regeneration. All methods are
// nil-tolerant: without a Redis client every call is a no-op.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewReportCache constructs the report cache.
func NewReportCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &ReportCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "report_cache").Logger(),
	}
}

func reportCacheKey(studentID uint, category string) string {
	if category == "" {
		category = "full"
	}

	return fmt.Sprintf("marking:report:%d:%s", studentID, category)
}

// Get returns the cached PDF for (student, category), if any.
func (c *ReportCache) Get(ctx context.Context, studentID uint, category string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, reportCacheKey(studentID, category)).Bytes()
	if err != nil {
		return nil, false
	}

	return data, true
}

// Set stores a rendered PDF with the configured TTL.
func (c *ReportCache) Set(ctx context.Context, studentID uint, category string, data []byte) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Set(ctx, reportCacheKey(studentID, category), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to cache report pdf")
	}
}

// Invalidate drops the cached PDFs affected by a grading change: the
// category-scoped report and the full report.
func (c *ReportCache) Invalidate(ctx context.Context, studentID uint, category string) {
	if c == nil || c.client == nil {
		return
	}

	keys := []string{reportCacheKey(studentID, "")}
	if category != "" {
		keys = append(keys, reportCacheKey(studentID, category))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate report cache")
	}
}
