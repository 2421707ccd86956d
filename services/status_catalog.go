package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-crm-backend/cache"
	"clinic-crm-backend/metrics"
	"clinic-crm-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const statusCacheTTL = 10 * time.Minute

// StatusCatalog resolves the live set of lead statuses for a branch: the
// system statuses plus the branch's custom intermediate ones. Results are
// cached in redis when a client is configured.
type StatusCatalog struct {
	db      *gorm.DB
	cache   *cache.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewStatusCatalog(db *gorm.DB, c *cache.Client, m *metrics.Metrics, logger *zap.Logger) *StatusCatalog {
	return &StatusCatalog{db: db, cache: c, metrics: m, logger: logger}
}

// WithDB returns a catalog that reads through db, typically an open
// transaction.
func (s *StatusCatalog) WithDB(db *gorm.DB) *StatusCatalog {
	c := *s
	c.db = db
	return &c
}

func statusCacheKey(branchID uuid.UUID) string {
	return fmt.Sprintf("branch:%s:lead_statuses", branchID)
}

// CustomStatuses returns the branch's tenant-defined statuses.
func (s *StatusCatalog) CustomStatuses(ctx context.Context, branchID uuid.UUID) ([]string, error) {
	key := statusCacheKey(branchID)
	if s.cache != nil {
		var cached []string
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			s.count(true)
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Status cache read failed", zap.String("key", key), zap.Error(err))
		}
		s.count(false)
	}

	var branch models.Branch
	if err := s.db.WithContext(ctx).Select("id", "lead_statuses").First(&branch, "id = ?", branchID).Error; err != nil {
		return nil, ClassifyDBError("load branch statuses", err)
	}
	statuses := branch.LeadStatuses
	if statuses == nil {
		statuses = []string{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, statuses, statusCacheTTL); err != nil {
			s.logger.Warn("Status cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return statuses, nil
}

// LeadStatuses returns system and custom statuses in display order.
func (s *StatusCatalog) LeadStatuses(ctx context.Context, branchID uuid.UUID) ([]string, error) {
	custom, err := s.CustomStatuses(ctx, branchID)
	if err != nil {
		return nil, err
	}
	out := []string{string(models.LeadFresh)}
	out = append(out, custom...)
	for _, st := range models.SystemLeadStatuses {
		if st != models.LeadFresh {
			out = append(out, string(st))
		}
	}
	return out, nil
}

// IsValid reports whether status may be set on a lead of branchID.
func (s *StatusCatalog) IsValid(ctx context.Context, branchID uuid.UUID, status models.LeadStatus) (bool, error) {
	if status.IsSystem() {
		return true, nil
	}
	custom, err := s.CustomStatuses(ctx, branchID)
	if err != nil {
		return false, err
	}
	for _, c := range custom {
		if c == string(status) {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate drops the cached statuses after the branch configuration changes.
func (s *StatusCatalog) Invalidate(ctx context.Context, branchID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statusCacheKey(branchID)); err != nil {
		s.logger.Warn("Status cache invalidation failed", zap.Error(err))
	}
}

func (s *StatusCatalog) count(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.WithLabelValues("lead_statuses").Inc()
	} else {
		s.metrics.CacheMisses.WithLabelValues("lead_statuses").Inc()
	}
}
